package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("analysis not found")

var memoryDBs atomic.Int64

// DB represents the database connection
type DB struct {
	conn *sqlx.DB
}

// New opens the SQLite database at path. ":memory:" opens a private
// in-memory database. Statements are traced through OpenTelemetry.
func New(path string) (*DB, error) {
	dsn := path
	memory := path == ":memory:"
	if memory {
		// Shared cache so every pooled connection sees the same database
		dsn = fmt.Sprintf("file:newscheck-%d?mode=memory&cache=shared", memoryDBs.Add(1))
	} else if !strings.Contains(dsn, "?") {
		dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	sqlDB, err := otelsql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn := sqlx.NewDb(sqlDB, driverName)

	// SQLite allows a single writer
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if !memory {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

// Ping verifies the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
