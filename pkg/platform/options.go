package platform

import (
	"database/sql"
	"time"

	"github.com/txn2/plotwatch/pkg/database/migrate"
	"github.com/txn2/plotwatch/pkg/pagination"
)

// Options configures the platform.
type Options struct {
	// Config is the platform configuration.
	Config *Config

	// DB and Dialect replace the configured database. The platform does not
	// close an injected DB.
	DB      *sql.DB
	Dialect migrate.Dialect

	// Gateway replaces the Discord session created from the bot token.
	Gateway Gateway

	// Source replaces the PaissaDB client.
	Source pagination.DatasetSource

	// Now defaults to time.Now.
	Now func() time.Time
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithDB sets the database connection and its dialect.
func WithDB(db *sql.DB, dialect migrate.Dialect) Option {
	return func(o *Options) {
		o.DB = db
		o.Dialect = dialect
	}
}

// WithGateway sets the Discord gateway.
func WithGateway(g Gateway) Option {
	return func(o *Options) {
		o.Gateway = g
	}
}

// WithSource sets the dataset source.
func WithSource(src pagination.DatasetSource) Option {
	return func(o *Options) {
		o.Source = src
	}
}

// WithClock sets the clock.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}
