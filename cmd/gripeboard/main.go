package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alphabot-ai/gripeboard/internal/api"
	"github.com/alphabot-ai/gripeboard/internal/auth"
	"github.com/alphabot-ai/gripeboard/internal/config"
	"github.com/alphabot-ai/gripeboard/internal/logging"
	"github.com/alphabot-ai/gripeboard/internal/moderation"
	"github.com/alphabot-ai/gripeboard/internal/ratelimit"
	"github.com/alphabot-ai/gripeboard/internal/session"
	"github.com/alphabot-ai/gripeboard/internal/store"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	app := &cli.Command{
		Name:  "gripeboard",
		Usage: "Community board for product frustrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: serve,
			},
			{
				Name:   "rescore",
				Usage:  "Recompute quality scores and visibility for every submission",
				Action: rescore,
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// deps holds everything the subcommands share.
type deps struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.SQLStore
	sessions auth.SessionStore
	limiter  ratelimit.Limiter
	redis    *redis.Client
}

func (d *deps) Close() {
	if d.redis != nil {
		d.redis.Close()
	}
	if d.store != nil {
		d.store.Close()
	}
	d.logger.Sync() //nolint:errcheck
}

func setup(ctx context.Context, c *cli.Command) (*deps, error) {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, logger: logger}

	switch cfg.DatabaseDriver {
	case "postgres":
		d.store, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
	case "sqlite", "":
		d.store, err = store.NewSQLiteStore(cfg.DatabasePath)
	default:
		err = fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		d.redis = redis.NewClient(opts)
		if err := d.redis.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
	}

	switch cfg.SessionBackend {
	case "redis":
		if d.redis == nil {
			d.Close()
			return nil, errors.New("SESSION_BACKEND=redis requires REDIS_URL")
		}
		d.sessions = session.NewRedisStore(d.redis)
	default:
		d.sessions = d.store
	}

	if d.redis != nil {
		d.limiter = ratelimit.NewRedisLimiter(d.redis)
	} else {
		mem := ratelimit.NewMemoryLimiter()
		mem.StartCleanup(ctx, 5*time.Minute)
		d.limiter = mem
	}

	logger.Info("initialized",
		zap.String("database_driver", cfg.DatabaseDriver),
		zap.String("session_backend", cfg.SessionBackend),
		zap.Bool("redis", d.redis != nil))

	return d, nil
}

func newGate(d *deps) *moderation.Gate {
	m := d.cfg.Moderation
	return moderation.NewGate(d.store,
		moderation.WithPolicy(moderation.DefaultPolicy{
			FlagWeight:       m.FlagWeight,
			HideBelow:        m.HideBelow,
			WhiningFlagLimit: m.WhiningFlagLimit,
		}),
		moderation.WithLogger(d.logger.Named("moderation")),
		moderation.WithConflictRetries(m.ConflictRetries),
		moderation.WithRecomputeOnUpvote(m.RecomputeOnUpvote),
	)
}

func serve(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer d.Close()

	cfg, logger := d.cfg, d.logger

	authService := auth.NewService(d.store, d.sessions, cfg.SessionTTL, logger.Named("auth"))
	apiHandler := api.NewHandler(d.store, authService, newGate(d), d.limiter, cfg, logger.Named("api"))

	mux := http.NewServeMux()
	apiHandler.Register(mux)

	go sweepSessions(ctx, d.store, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      api.LogRequests(logger.Named("http"), mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting gripeboard", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
	return nil
}

// sweepSessions deletes expired SQL sessions hourly. Redis sessions expire on
// their own TTL.
func sweepSessions(ctx context.Context, s store.Store, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.DeleteExpiredSessions(ctx); err != nil {
				logger.Warn("failed to delete expired sessions", zap.Error(err))
			}
		}
	}
}

func rescore(ctx context.Context, c *cli.Command) error {
	d, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer d.Close()

	rescorer := moderation.NewRescorer(newGate(d), d.cfg.Moderation.RescoreWorkers, d.logger.Named("rescore"))
	report, err := rescorer.Run(ctx)
	if err != nil {
		return fmt.Errorf("rescore failed: %w", err)
	}

	d.logger.Info("Rescore complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("changed", report.Changed),
		zap.Int("failed", report.Failed))
	return nil
}
