package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/cachewatch/internal/cache"
	"github.com/kiranshivaraju/cachewatch/internal/config"
	"github.com/kiranshivaraju/cachewatch/internal/monitor"
	"github.com/kiranshivaraju/cachewatch/internal/notifier"
	"github.com/kiranshivaraju/cachewatch/internal/source"
	"github.com/kiranshivaraju/cachewatch/internal/store"
)

// openStore builds the fingerprint store selected by STATE_BACKEND. The
// returned close func is never nil.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.State.Backend {
	case config.StateFile:
		return store.NewFileStore(cfg.State.File), func() {}, nil

	case config.StateRedis:
		c, err := cache.NewRedisCache(cfg.State.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: create redis client: %w", store.ErrStoreIO, err)
		}
		key := cfg.State.Key
		if key == "" {
			key = cache.FingerprintsKey(cfg.Database.Table)
		}
		return store.NewRedisStore(c, key), func() { c.Close() }, nil

	case config.StatePostgres:
		if err := store.RunMigrations(cfg.State.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", store.ErrStoreIO, err)
		}
		pool, err := store.Connect(ctx, cfg.State.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", store.ErrStoreIO, err)
		}
		return store.NewPostgresStore(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
}

func newSource(cfg *config.Config) source.Source {
	return source.NewPostgresSource(cfg.Database.DSN(), cfg.Database.Table, cfg.Database.QueryTimeout)
}

func newNotifier(cfg *config.Config) (notifier.Notifier, error) {
	switch cfg.Notifier.Kind {
	case config.NotifierSMTP:
		return notifier.NewSMTPNotifier(cfg.Email, cfg.Database.Table)
	case config.NotifierWebhook:
		return notifier.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Database.Table,
			notifier.WithWebhookTimeout(cfg.Notifier.WebhookTimeout)), nil
	}
	return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier.Kind)
}

// buildMonitor wires store, source and notifier. The store is returned too
// so callers can ping it.
func buildMonitor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*monitor.Monitor, store.Store, source.Source, func(), error) {
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, &monitor.StepError{Step: monitor.StepLoad, Err: err}
	}

	n, err := newNotifier(cfg)
	if err != nil {
		closeStore()
		return nil, nil, nil, nil, fmt.Errorf("create notifier: %w", err)
	}

	src := newSource(cfg)
	m := monitor.New(st, src, n, monitor.WithLogger(logger))
	return m, st, src, closeStore, nil
}
