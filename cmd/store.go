package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
	"github.com/gurs-tools/kataster-cli/internal/resilience"
)

// initStore opens the configured store backend and wraps it with retry
// handling for transient failures.
func initStore(ctx context.Context) (cadastre.Store, error) {
	inner, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	retryCfg := resilience.FromRetryConfig(cfg.Store.RetryAttempts, cfg.Store.RetryBackoffMs, 0, 0, -1)
	return resilience.WrapStore(inner, retryCfg), nil
}

// initWriter opens the configured backend for imports. Writes go straight to
// the store; a half-retried batch is worse than a failed run.
func initWriter(ctx context.Context) (cadastre.Writer, func() error, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := cadastre.NewSQLite(sqliteDSN())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "postgres":
		s, err := cadastre.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func openStore(ctx context.Context) (cadastre.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return cadastre.NewSQLite(sqliteDSN())
	case "postgres":
		return cadastre.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func sqliteDSN() string {
	if cfg.Store.SQLitePath == "" {
		return "kataster.db"
	}
	return cfg.Store.SQLitePath
}

// queryTimeout bounds a single user-facing query against the store.
func queryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	secs := cfg.Store.QueryTimeoutSecs
	if secs <= 0 {
		secs = 10
	}
	return context.WithTimeout(parent, time.Duration(secs)*time.Second)
}
