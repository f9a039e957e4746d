package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/txn2/plotwatch/pkg/database/migrate"
	"github.com/txn2/plotwatch/pkg/pagination/sqlstore"
)

// ErrNoDatabase is returned by maintenance commands under the memory driver.
var ErrNoDatabase = errors.New("a database driver is required; memory has nothing to maintain")

// WithDatabase opens the configured database, runs fn and closes it.
func WithDatabase(ctx context.Context, cfg DatabaseConfig, fn func(*sql.DB, migrate.Dialect) error) error {
	db, dialect, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	if db == nil {
		return ErrNoDatabase
	}
	defer func() { _ = db.Close() }()
	return fn(db, dialect)
}

// SweepDurable deletes persisted sessions created more than retention before
// now. Their messages keep their controls; a running bot marks expired
// messages on restore and during its own sweeps.
func SweepDurable(ctx context.Context, db *sql.DB, dialect migrate.Dialect, retention time.Duration, now time.Time) (int64, error) {
	store, err := sqlstore.New(db, dialect)
	if err != nil {
		return 0, fmt.Errorf("creating session store: %w", err)
	}
	n, err := store.DeleteOlderThan(ctx, now.Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("sweeping sessions: %w", err)
	}
	return n, nil
}
