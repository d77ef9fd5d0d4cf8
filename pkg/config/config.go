package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	kafkabar "github.com/muhammadchandra19/tickbar/internal/infrastructure/kafka/bar"
	"github.com/muhammadchandra19/tickbar/pkg/questdb"
)

// Config represents the application configuration.
type Config struct {
	App      AppConfig       `envPrefix:"APP_"`
	Pipeline PipelineConfig  `envPrefix:"PIPELINE_"`
	Metrics  MetricsConfig   `envPrefix:"METRICS_"`
	QuestDB  questdb.Config  `envPrefix:"QUESTDB_"`
	Kafka    kafkabar.Config `envPrefix:"KAFKA_"`
}

// AppConfig represents the application configuration.
type AppConfig struct {
	Name        string `env:"NAME" envDefault:"tickbar"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// PipelineConfig locates the pipeline definition.
type PipelineConfig struct {
	File string `env:"FILE" envDefault:"pipeline.yaml"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `env:"ADDR"`
	Path string `env:"PATH" envDefault:"/metrics"`
}

// Load loads the configuration from the environment.
func Load() (*Config, error) {
	return LoadFrom[Config]()
}

// LoadFrom parses T from the environment after loading the given dotenv
// files, or ./.env when none is given. Missing files are ignored.
func LoadFrom[T any](files ...string) (*T, error) {
	// Load .env file if it exists
	_ = godotenv.Load(files...)

	cfg := new(T)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
