package db

import (
	"context"
	"fmt"
	"time"

	"grocerystock/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	PingTimeout     time.Duration
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{MaxConns: 20, MinConns: 2, MaxConnIdleTime: 5 * time.Minute, PingTimeout: 5 * time.Second}
}

// PoolOptionsFrom maps the database settings onto pool options. Zero
// durations keep the defaults.
func PoolOptionsFrom(c config.DatabaseConfig) PoolOptions {
	opts := DefaultPoolOptions()
	opts.MaxConns = int32(c.MaxConns)
	opts.MinConns = int32(c.MinConns)
	if c.MaxConnIdleTime > 0 {
		opts.MaxConnIdleTime = c.MaxConnIdleTime
	}
	if c.PingTimeout > 0 {
		opts.PingTimeout = c.PingTimeout
	}
	return opts
}

func NewPool(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
