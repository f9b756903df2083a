// Package sqlite provides the embedded default audit backend, using
// modernc.org/sqlite (pure Go, no cgo) for single-binary deployments.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"

	"github.com/prn-tf/s3gate/internal/audit"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds SQLite connection settings for the audit database.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	JournalMode     string
	BusyTimeout     int
	SynchronousMode string
}

func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		JournalMode:     "WAL",
		BusyTimeout:     5000,
		SynchronousMode: "NORMAL",
	}
}

// Recorder implements audit.Recorder against a SQLite database.
type Recorder struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New opens the audit database and applies the embedded migration.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Recorder, error) {
	connStr := fmt.Sprintf(
		"%s?_journal_mode=%s&_busy_timeout=%d&_synchronous=%s&_foreign_keys=ON",
		cfg.Path, cfg.JournalMode, cfg.BusyTimeout, cfg.SynchronousMode,
	)

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	r := &Recorder{db: db, logger: logger.With().Str("component", "audit").Logger()}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	r.logger.Info().Str("path", cfg.Path).Msg("audit backend ready")
	return r, nil
}

func (r *Recorder) migrate(ctx context.Context) error {
	migration, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	if err != nil {
		return fmt.Errorf("read audit migration: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, string(migration)); err != nil {
		return fmt.Errorf("apply audit migration: %w", err)
	}
	return nil
}

func (r *Recorder) Record(ctx context.Context, e audit.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (timestamp, access_key_id, operation, bucket, key, result_code, bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.Timestamp.UTC().Format(time.RFC3339),
		e.AccessKeyID,
		e.Operation,
		e.Bucket,
		e.Key,
		e.ResultCode,
		e.Bytes,
	)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

func (r *Recorder) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Recent returns up to limit audit entries, most recent first. Used by
// the admin CLI's audit query subcommand.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp, access_key_id, operation, bucket, key, result_code, bytes
		FROM audit_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var ts string
		if err := rows.Scan(&ts, &e.AccessKeyID, &e.Operation, &e.Bucket, &e.Key, &e.ResultCode, &e.Bytes); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Recorder) Close() error {
	return r.db.Close()
}

var _ audit.Recorder = (*Recorder)(nil)
