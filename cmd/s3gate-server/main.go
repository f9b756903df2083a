// Package main is the entry point for the s3gate server, a single-node
// S3-compatible object storage server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/s3gate/internal/audit"
	auditpostgres "github.com/prn-tf/s3gate/internal/audit/postgres"
	auditsqlite "github.com/prn-tf/s3gate/internal/audit/sqlite"
	"github.com/prn-tf/s3gate/internal/auth"
	"github.com/prn-tf/s3gate/internal/config"
	"github.com/prn-tf/s3gate/internal/dispatch"
	"github.com/prn-tf/s3gate/internal/domain"
	"github.com/prn-tf/s3gate/internal/lock"
	"github.com/prn-tf/s3gate/internal/metrics"
	"github.com/prn-tf/s3gate/internal/storage"
)

// Version information (set at build time).
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting s3gate server")

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()

	locker := newLocker(ctx, cfg)

	storageBackend, err := storage.NewFSBackend(storage.Config{Root: cfg.Storage.Root}, locker, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage backend")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		log.Info().Msg("prometheus metrics enabled")
	}

	recorder := newAuditRecorder(ctx, cfg)
	defer recorder.Close()

	sweeper := storage.NewSweeper(storageBackend, locker, m, cfg.Storage.MultipartExpiry, cfg.Sweeper.Interval)
	if cfg.Sweeper.Enabled {
		sweeper.Start()
		defer sweeper.Stop()
		log.Info().
			Dur("expiry", cfg.Storage.MultipartExpiry).
			Dur("interval", cfg.Sweeper.Interval).
			Msg("multipart sweeper started")
	}

	credentialStore := config.NewCredentialStore(cfg.CredentialSet())

	d := dispatch.New(dispatch.Config{
		Backend:       storageBackend,
		Metrics:       m,
		Audit:         recorder,
		Logger:        log.Logger,
		DefaultRegion: cfg.Storage.DefaultRegion,
		DefaultACL:    cfg.Storage.DefaultACL.ToDomain(),
		DefaultCORS:   toDomainCORSRules(cfg.Storage.DefaultCORS),
	})

	authConfig := auth.Config{
		Region:           cfg.Auth.Region,
		Service:          cfg.Auth.Service,
		AllowAnonymous:   true,
		SkipPaths:        []string{"/healthz", "/metrics"},
		BucketACLChecker: d,
	}
	authMiddleware := auth.Middleware(credentialStore, authConfig)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      d.Router(authMiddleware),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("region", cfg.Auth.Region).
			Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}

func newLocker(ctx context.Context, cfg *config.Config) lock.Locker {
	if cfg.Lock.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Lock.Redis.Addr(),
			Password:    cfg.Lock.Redis.Password,
			DB:          cfg.Lock.Redis.DB,
			PoolSize:    cfg.Lock.Redis.PoolSize,
			DialTimeout: cfg.Lock.Redis.DialTimeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis lock backend")
		}
		log.Info().Str("addr", cfg.Lock.Redis.Addr()).Msg("using redis lock backend")
		return lock.NewRedisLocker(client)
	}
	log.Info().Msg("using in-memory lock backend")
	return lock.NewMemoryLocker()
}

func newAuditRecorder(ctx context.Context, cfg *config.Config) audit.Recorder {
	if !cfg.Audit.Enabled {
		log.Info().Msg("audit trail disabled")
		return audit.NoopRecorder{}
	}

	if cfg.Audit.Backend == "postgres" {
		rec, err := auditpostgres.New(ctx, auditpostgres.Config{DSN: cfg.Audit.PostgresDSN}, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize postgres audit backend")
		}
		return rec
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Audit.SQLitePath), 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create audit database directory")
	}
	rec, err := auditsqlite.New(ctx, auditsqlite.DefaultConfig(cfg.Audit.SQLitePath), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sqlite audit backend")
	}
	return rec
}

func toDomainCORSRules(rules []config.CORSRuleConfig) []domain.CORSRule {
	out := make([]domain.CORSRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.ToDomain())
	}
	return out
}
