// internal/db/db.go
package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/haulcrm/campaign-engine/internal/config"
)

// Connect opens the engine's PostgreSQL connection pool and verifies it.
func Connect(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	conn.SetMaxOpenConns(cfg.Database.MaxConns)
	conn.SetMaxIdleConns(cfg.Database.MinConns)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	log.Println("✅ Connected to database")
	return conn, nil
}
