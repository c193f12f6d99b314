package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables used by the session store and the signal
// recorder. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS analysis_sessions (
		endpoint         TEXT PRIMARY KEY,
		analysis_id      TEXT NOT NULL,
		analyses_version TEXT NOT NULL DEFAULT '',
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS signal_log (
		id          UUID PRIMARY KEY,
		client_id   UUID NOT NULL,
		analysis_id TEXT NOT NULL,
		signal      TEXT NOT NULL,
		load        JSONB NOT NULL,
		received_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS signal_log_analysis_idx ON signal_log (analysis_id, received_at)`,
}

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range Schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
