package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/xerrors"
	_ "modernc.org/sqlite"
)

const (
	// DriverPostgres is the lib/pq driver name
	DriverPostgres = "postgres"
	// DriverSQLite is the modernc.org/sqlite driver name
	DriverSQLite = "sqlite"
)

// Connection holds the database connection
type Connection struct {
	DB     *sql.DB
	Driver string
}

// NewConnection opens and pings a database with the given driver
func NewConnection(ctx context.Context, driver, dsn string) (*Connection, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, xerrors.Errorf("unsupported database driver %q (want %s or %s)", driver, DriverPostgres, DriverSQLite)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, xerrors.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY and keeps :memory: databases shared
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, xerrors.Errorf("failed to ping database: %w", err)
	}

	return &Connection{DB: db, Driver: driver}, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}
