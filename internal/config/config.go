// internal/config/config.go
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all engine configuration, loaded from environment variables.
type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Database DatabaseConfig `env:",prefix=DB_"`
	AMQP     AMQPConfig     `env:",prefix=AMQP_"`
	Gateway  GatewayConfig  `env:",prefix=GATEWAY_"`
	Engine   EngineConfig   `env:",prefix=ENGINE_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string `env:"PORT,default=8080"`
	Host         string `env:"HOST,default=0.0.0.0"`
	ReadTimeout  int    `env:"READ_TIMEOUT,default=30"`  // seconds
	WriteTimeout int    `env:"WRITE_TIMEOUT,default=30"` // seconds
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=postgres"`
	Password string `env:"PASSWORD,default=postgres"`
	Name     string `env:"NAME,default=haulcrm"`
	SSLMode  string `env:"SSL_MODE,default=disable"`
	MaxConns int    `env:"MAX_CONNS,default=25"`
	MinConns int    `env:"MIN_CONNS,default=5"`
}

// AMQPConfig holds the lead-event feed settings. An empty URL disables the
// AMQP consumer; events then arrive only through the HTTP endpoint.
type AMQPConfig struct {
	URL        string `env:"URL"`
	EventQueue string `env:"EVENT_QUEUE,default=lead_events"`
}

// GatewayConfig holds dispatch gateway settings. An empty URL selects the
// in-memory logging gateway for local development.
type GatewayConfig struct {
	URL            string `env:"URL"`
	TimeoutSeconds int    `env:"TIMEOUT,default=10"` // seconds
}

// EngineConfig holds scheduler tunables.
type EngineConfig struct {
	SweepIntervalSeconds int `env:"SWEEP_INTERVAL,default=30"` // seconds
	SweepBatchSize       int `env:"SWEEP_BATCH_SIZE,default=200"`
}

// Load loads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}

// GetDatabaseURL returns the PostgreSQL connection URL.
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetServerAddr returns the HTTP listen address.
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// SweepInterval returns the scheduler sweep interval as a duration.
func (c *EngineConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Timeout returns the dispatch timeout as a duration.
func (c *GatewayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
