package questdb

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const pgWirePort = "8812/tcp"

// TestContainer wraps a QuestDB testcontainer and a client connected to it.
type TestContainer struct {
	Container testcontainers.Container
	Client    *Client
	Config    Config
}

// TestContainerConfig holds configuration for the test container
type TestContainerConfig struct {
	Image          string
	StartupTimeout time.Duration
	ExtraEnvVars   map[string]string
}

// DefaultTestContainerConfig returns a default configuration
func DefaultTestContainerConfig() *TestContainerConfig {
	return &TestContainerConfig{
		Image:          "questdb/questdb:8.1.0",
		StartupTimeout: 2 * time.Minute,
		ExtraEnvVars:   map[string]string{},
	}
}

// NewTestContainer starts QuestDB and connects a client over the PostgreSQL wire port.
func NewTestContainer(ctx context.Context, config *TestContainerConfig) (*TestContainer, error) {
	if config == nil {
		config = DefaultTestContainerConfig()
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        config.Image,
			ExposedPorts: []string{pgWirePort},
			Env:          config.ExtraEnvVars,
			WaitingFor:   wait.ForListeningPort(pgWirePort).WithStartupTimeout(config.StartupTimeout),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start questdb container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, pgWirePort)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	cfg := Config{
		Host:            host,
		Port:            port.Int(),
		Database:        "qdb",
		Username:        "admin",
		Password:        "quest",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
		ConnectTimeout:  10 * time.Second,
	}

	client, err := NewClient(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &TestContainer{
		Container: container,
		Client:    client,
		Config:    cfg,
	}, nil
}

// Close closes the client and terminates the container.
func (tc *TestContainer) Close(ctx context.Context) error {
	if tc.Client != nil {
		tc.Client.Close()
	}
	if tc.Container != nil {
		return tc.Container.Terminate(ctx)
	}
	return nil
}
