package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type ConnConfig struct {
	Driver string
	// DSN is a PostgreSQL connection string or an SQLite file path.
	DSN string
	// ConnectTimeout bounds the whole connect-and-ping retry loop.
	ConnectTimeout time.Duration
	MaxOpenConns   int
}

// Open connects to the configured database, retrying with exponential backoff until
// ConnectTimeout, and returns the pool with a function that closes it.
func Open(ctx context.Context, cfg ConnConfig, log *slog.Logger) (*gorm.DB, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, errors.New("database DSN is empty")
	}
	if log == nil {
		log = slog.Default()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = cfg.ConnectTimeout

	var db *gorm.DB
	connect := func() error {
		var err error
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err = sqlDB.PingContext(pingCtx); err != nil {
			_ = sqlDB.Close()
			return err
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.WarnContext(ctx, "database not ready, retrying", "driver", cfg.Driver, "error", err, "retry_in", wait)
	}
	if err := backoff.RetryNotify(connect, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	switch {
	case cfg.Driver == DriverSQLite:
		// One connection serializes SQLite writers, which NextNumber relies on.
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	log.InfoContext(ctx, "database connection established", "driver", cfg.Driver)
	return db, func() { _ = sqlDB.Close() }, nil
}
