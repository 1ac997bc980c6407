package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolOptions struct {
	URL      string
	MaxConns int32
	// Retries is how many extra pings are tried while postgres is still starting.
	Retries int
}

// NewPool opens a pgx pool and waits until postgres answers a ping, backing off linearly.
func NewPool(ctx context.Context, opts PoolOptions, log *slog.Logger) (*pgxpool.Pool, error) {
	if log == nil {
		log = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = 10
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := waitForPing(ctx, pool, opts.Retries, log); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func waitForPing(ctx context.Context, p pinger, retries int, log *slog.Logger) error {
	attempts := retries + 1

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = p.Ping(pctx)
		cancel()

		if err == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		wait := time.Duration(attempt) * 200 * time.Millisecond
		log.WarnContext(ctx, "postgres_ping_failed",
			"attempt", attempt,
			"max_attempts", attempts,
			"retry_in", wait,
			"err", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("postgres not reachable after %d attempts: %w", attempts, err)
}
