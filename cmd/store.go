package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/rosterwatch/depthsync/internal/resolver"
	"github.com/rosterwatch/depthsync/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "depthsync.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func loadResolverConfig() (*resolver.Config, error) {
	if cfg.Resolver.ConfigPath == "" {
		return resolver.DefaultConfig(), nil
	}
	return resolver.LoadConfig(cfg.Resolver.ConfigPath)
}
