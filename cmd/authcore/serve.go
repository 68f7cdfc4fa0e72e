package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spintune/authcore"
	"github.com/spintune/authcore/eventpub"
	"github.com/spintune/authcore/httpapi"
	"github.com/spintune/authcore/logging"
	promexport "github.com/spintune/authcore/metrics/export/prometheus"
	"github.com/spintune/authcore/store/memstore"
	"github.com/spintune/authcore/store/pgstore"
)

type serveOptions struct {
	addr            string
	strict          bool
	autoMigrate     bool
	shutdownTimeout time.Duration
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "guarded routes require the latest session")
	cmd.Flags().BoolVar(&opts.autoMigrate, "migrate", false, "apply database migrations before serving")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown budget")
	return cmd
}

func newLogger(cfg authcore.Config) *zap.Logger {
	env := "prod"
	if cfg.Log.Development {
		env = "dev"
	}
	return logging.New(logging.Config{Env: env, Level: cfg.Log.Level, Service: "authcore"})
}

func serve(ctx context.Context, cfg authcore.Config, opts *serveOptions) error {
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	builder := authcore.New().WithConfig(cfg).WithLogger(logger)
	publishers := eventpub.Multi{eventpub.NewLog(logger.Named("events"))}

	// -------- DURABLE STORE --------
	if cfg.Postgres.DSN != "" {
		db, err := pgstore.Open(ctx, pgstore.Config{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer closeDB(db, logger)
		if opts.autoMigrate {
			if err := pgstore.Migrate(ctx, db); err != nil {
				return err
			}
		}
		builder.WithUserStore(pgstore.New(db))
	} else {
		logger.Warn("no postgres DSN configured; users are kept in memory")
		builder.WithUserStore(memstore.New())
	}

	// -------- EPHEMERAL STATE --------
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: redis ping: %v", authcore.ErrStoreUnavailable, err)
		}
		builder.WithRedis(rdb)
		if cfg.Events.RedisChannel != "" {
			publishers = append(publishers, eventpub.NewRedis(rdb, cfg.Events.RedisChannel))
		}
	}

	engine, err := builder.WithEventPublisher(publishers).Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.SecurityReport()
	for _, w := range report.Warnings {
		logger.Warn("security posture", zap.String("warning", w))
	}

	var metrics http.Handler
	if cfg.Metrics.Enabled {
		metrics = promexport.Handler(promexport.NewCollector(engine))
	}

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           httpapi.NewRouter(engine, httpapi.Options{Logger: logger.Named("http"), Strict: opts.strict, Metrics: metrics}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", opts.addr), zap.Bool("strict", opts.strict))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func closeDB(db *sql.DB, logger *zap.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("close database", zap.Error(err))
	}
}
