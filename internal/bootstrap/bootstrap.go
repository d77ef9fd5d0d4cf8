package bootstrap

import (
	"context"
	"fmt"

	kafkabar "github.com/muhammadchandra19/tickbar/internal/infrastructure/kafka/bar"
	"github.com/muhammadchandra19/tickbar/internal/pipeline"
	"github.com/muhammadchandra19/tickbar/internal/stage"
	"github.com/muhammadchandra19/tickbar/pkg/config"
	"github.com/muhammadchandra19/tickbar/pkg/logger"
	"github.com/muhammadchandra19/tickbar/pkg/questdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Bootstrap holds the infrastructure shared by the stages of a run.
type Bootstrap struct {
	Config   *config.Config
	Logger   logger.Interface
	Registry *prometheus.Registry
	Metrics  *stage.Metrics

	QuestDB questdb.QuestDBClient
}

// BootstrapConfig is the config for the bootstrap.
type BootstrapConfig struct {
	Config *config.Config
	Logger logger.Interface
	// Connect is called to open QuestDB. Defaults to questdb.NewClient.
	Connect func(ctx context.Context, cfg questdb.Config) (questdb.QuestDBClient, error)
}

// Init creates the metrics registry and connects to QuestDB when needs says so.
func Init(ctx context.Context, cfg BootstrapConfig, needs Needs) (*Bootstrap, error) {
	if cfg.Connect == nil {
		cfg.Connect = connect
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}

	b := &Bootstrap{
		Config:   cfg.Config,
		Logger:   cfg.Logger,
		Registry: prometheus.NewRegistry(),
	}
	b.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics, err := stage.NewMetrics(b.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register stage metrics: %w", err)
	}
	b.Metrics = metrics

	if needs.QuestDB {
		client, err := cfg.Connect(ctx, cfg.Config.QuestDB)
		if err != nil {
			return nil, err
		}
		b.QuestDB = client
		b.Logger.InfoContext(ctx, "QuestDB client connected successfully",
			logger.NewField("host", cfg.Config.QuestDB.Host),
			logger.NewField("port", cfg.Config.QuestDB.Port),
		)
	}

	return b, nil
}

func connect(ctx context.Context, cfg questdb.Config) (questdb.QuestDBClient, error) {
	return questdb.NewClient(ctx, cfg)
}

// Deps returns the pipeline collaborators backed by b.
func (b *Bootstrap) Deps() pipeline.Deps {
	return pipeline.Deps{
		Logger:      b.Logger,
		Metrics:     b.Metrics,
		QuestDB:     b.QuestDB,
		KafkaWriter: b.KafkaWriter,
	}
}

// KafkaWriter creates a writer on topic, or on the configured topic when
// topic is empty.
func (b *Bootstrap) KafkaWriter(topic string) kafkabar.MessageWriter {
	cfg := b.Config.Kafka
	if topic != "" {
		cfg.Topic = topic
	}
	return kafkabar.NewWriter(cfg)
}

// Close releases the QuestDB pool.
func (b *Bootstrap) Close() {
	if b.QuestDB != nil {
		b.QuestDB.Close()
	}
}
