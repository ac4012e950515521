// Command sandbox runs the reference emergency department service that
// edctl talks to.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/ed-intake/cmd/sandbox/config"
	"github.com/jwalitptl/ed-intake/internal/handler"
	"github.com/jwalitptl/ed-intake/internal/middleware"
	"github.com/jwalitptl/ed-intake/internal/repository"
	"github.com/jwalitptl/ed-intake/internal/repository/memory"
	"github.com/jwalitptl/ed-intake/internal/repository/postgres"
	"github.com/jwalitptl/ed-intake/internal/router"
	"github.com/jwalitptl/ed-intake/internal/service/urgency"
	"github.com/jwalitptl/ed-intake/pkg/auth"
	"github.com/jwalitptl/ed-intake/pkg/logger"
	redisbroker "github.com/jwalitptl/ed-intake/pkg/messaging/redis"
	"github.com/jwalitptl/ed-intake/pkg/security"
)

func main() {
	root := &cobra.Command{
		Use:           "sandbox",
		Short:         "Reference emergency department service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres schema and seed data, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context())
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("sandbox failed")
	}
}

// setup wires the service. The returned cleanup releases the store and
// broker.
func setup(ctx context.Context) (*config.Config, *urgency.Service, *logger.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	lg := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Output: os.Stderr,
		JSON:   cfg.LogJSON,
	})
	log.Logger = *lg.Zerolog()

	var store repository.Store
	switch cfg.Store {
	case config.StorePostgres:
		db, err := postgres.NewDB(postgres.DatabaseConfig{
			DSN:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.MaxOpenConn,
			MaxIdleConns:    cfg.MaxIdleConn,
			ConnMaxLifetime: cfg.ConnMaxLife,
		})
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, nil, err
		}
		store = postgres.NewStore(db)
	default:
		store = memory.NewStore()
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			lg.Error(err, "failed to close store")
		}
	}

	var opts []urgency.Option
	if cfg.RedisURL != "" {
		broker, err := redisbroker.NewRedisBroker(ctx, redisbroker.Config{URL: cfg.RedisURL}, lg.With("component", "broker"))
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, err
		}
		opts = append(opts, urgency.WithBroker(broker))
		closeStore := cleanup
		cleanup = func() {
			closeStore()
			if err := broker.Close(); err != nil {
				lg.Error(err, "failed to close broker")
			}
		}
	}

	svc := urgency.NewService(
		store,
		security.NewBcryptHasher(cfg.BcryptCost),
		auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL),
		lg.With("component", "urgency"),
		opts...,
	)

	seed := urgency.DefaultSeed(cfg.SeedPassword)
	if cfg.SeedPassword == "" {
		seed.Users = nil
	}
	if err := svc.Seed(ctx, seed); err != nil {
		cleanup()
		return nil, nil, nil, nil, fmt.Errorf("failed to seed: %w", err)
	}

	return cfg, svc, lg, cleanup, nil
}

func migrate(ctx context.Context) error {
	_, _, lg, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	lg.Info("schema and seed data are in place")
	return nil
}

func serve(ctx context.Context) error {
	cfg, svc, lg, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := router.NewRouter(
		middleware.NewAuthMiddleware(svc),
		handler.NewHandler(svc),
		router.RouterConfig{
			RateLimit: rate.Limit(cfg.RateLimit),
			RateBurst: cfg.RateBurst,
			Registry:  reg,
			Logger:    lg.With("component", "http"),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("sandbox listening", "addr", cfg.Addr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-quit:
	}
	lg.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	lg.Info("server exited properly")
	return nil
}
