// Package cmd implements the policyforge command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Strob0t/PolicyForge/internal/adapter/jsonl"
	pfnats "github.com/Strob0t/PolicyForge/internal/adapter/nats"
	"github.com/Strob0t/PolicyForge/internal/adapter/postgres"
	"github.com/Strob0t/PolicyForge/internal/adapter/ristretto"
	"github.com/Strob0t/PolicyForge/internal/config"
	"github.com/Strob0t/PolicyForge/internal/logger"
	"github.com/Strob0t/PolicyForge/internal/port/messagequeue"
	"github.com/Strob0t/PolicyForge/internal/port/store"
	"github.com/Strob0t/PolicyForge/internal/service"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "policyforge",
	Short: "Experience-driven policy training for orchestration decisions",
	Long: `PolicyForge records orchestration execution outcomes as experiences,
trains an actor-critic policy on them offline and evaluates the
resulting checkpoints.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the root command with the given context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "path to YAML config file")
}

// env bundles the wired infrastructure a command needs.
type env struct {
	cfg       *config.Config
	log       *slog.Logger
	store     store.Store
	queue     messagequeue.Queue
	collector *service.CollectorService
	features  *service.FeatureService
	cleanup   func()
}

// buildEnv loads configuration and wires the store, queue, cache and
// core services. The returned cleanup must run before exit.
func buildEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var st store.Store
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			cleanup()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		st = postgres.NewStore(pool)
		log.Info("postgres store ready")
	default:
		st = jsonl.New(cfg.Store.Path)
		log.Info("jsonl store ready", "path", cfg.Store.Path)
	}

	var queue messagequeue.Queue = messagequeue.Noop{}
	if cfg.NATS.URL != "" {
		q, err := pfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("nats: %w", err)
		}
		cleanups = append(cleanups, func() { _ = q.Drain() })
		queue = q
	}

	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("cache: %w", err)
	}
	cleanups = append(cleanups, cache.Close)

	return &env{
		cfg:       cfg,
		log:       log,
		store:     st,
		queue:     queue,
		collector: service.NewCollectorService(st, queue, log),
		features:  service.NewFeatureService(cache, log),
		cleanup:   cleanup,
	}, nil
}
