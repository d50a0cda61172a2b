package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type ConnectOptions struct {
	DSN          string
	MaxRetries   int
	RetryDelay   time.Duration
	MaxOpenConns int
}

// Connect opens a Postgres pool, retrying while the server is still coming up.
func Connect(ctx context.Context, opts ConnectOptions, logger *zap.Logger) (*sqlx.DB, error) {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}

	var lastErr error
	for i := 0; i < opts.MaxRetries; i++ {
		db, err := sqlx.ConnectContext(ctx, "postgres", opts.DSN)
		if err == nil {
			if opts.MaxOpenConns > 0 {
				db.SetMaxOpenConns(opts.MaxOpenConns)
			}
			logger.Info("Successfully connected to PostgreSQL database")
			return db, nil
		}
		lastErr = err
		logger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", opts.MaxRetries),
			zap.Duration("retry_in", opts.RetryDelay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", opts.MaxRetries, lastErr)
}
