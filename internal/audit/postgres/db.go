// Package postgres provides the optional centralized audit backend, for
// operators running several s3gate instances against one storage root
// (e.g. over NFS) who want one shared audit trail rather than per-instance
// SQLite files.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/prn-tf/s3gate/internal/audit"
)

const initSchema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id            BIGSERIAL PRIMARY KEY,
	timestamp     TIMESTAMPTZ NOT NULL,
	access_key_id TEXT NOT NULL,
	operation     TEXT NOT NULL,
	bucket        TEXT NOT NULL,
	key           TEXT NOT NULL DEFAULT '',
	result_code   INTEGER NOT NULL,
	bytes         BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log (timestamp);
`

// Config holds the connection settings for the Postgres audit backend.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Recorder implements audit.Recorder against a Postgres database.
type Recorder struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New connects to Postgres and ensures the audit_log table exists.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Recorder, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse audit DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create audit connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	if _, err := pool.Exec(ctx, initSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create audit_log table: %w", err)
	}

	r := &Recorder{pool: pool, logger: logger.With().Str("component", "audit").Logger()}
	r.logger.Info().Msg("audit backend ready (postgres)")
	return r, nil
}

func (r *Recorder) Record(ctx context.Context, e audit.Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (timestamp, access_key_id, operation, bucket, key, result_code, bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.Timestamp.UTC(), e.AccessKeyID, e.Operation, e.Bucket, e.Key, e.ResultCode, e.Bytes)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

func (r *Recorder) Health(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Recorder) Close() error {
	r.pool.Close()
	return nil
}

var _ audit.Recorder = (*Recorder)(nil)
