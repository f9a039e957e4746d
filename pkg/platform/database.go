package platform

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/txn2/plotwatch/pkg/database/migrate"
)

const pingTimeout = 5 * time.Second

// OpenDatabase opens and pings the configured database. The memory driver
// has no database and returns a nil *sql.DB.
func OpenDatabase(ctx context.Context, cfg DatabaseConfig) (*sql.DB, migrate.Dialect, error) {
	var (
		driverName string
		dsn        = cfg.DSN
		dialect    migrate.Dialect
	)
	switch cfg.Driver {
	case DriverMemory:
		return nil, "", nil
	case DriverPostgres:
		driverName, dialect = "postgres", migrate.Postgres
	case DriverMySQL:
		mc, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, "", fmt.Errorf("parsing mysql dsn: %w", err)
		}
		// Migration files hold more than one statement.
		mc.MultiStatements = true
		driverName, dsn, dialect = "mysql", mc.FormatDSN(), migrate.MySQL
	case DriverSQLite:
		driverName, dialect = "sqlite", migrate.SQLite
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if dialect == migrate.SQLite {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("pinging database: %w", err)
	}
	return db, dialect, nil
}
