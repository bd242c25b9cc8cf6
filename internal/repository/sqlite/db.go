package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New opens the database. Tables are created lazily by the item
// repository's first queued operation.
func New(dbPath string, maxOpenConns, maxIdleConns int) (*DB, error) {
	dsn := dbPath
	if dbPath == ":memory:" {
		// every pooled connection must see the same in-memory database
		dsn = "file::memory:?cache=shared"
		maxOpenConns = 1
		maxIdleConns = 1
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// HealthCheck checks if the database is healthy
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// txFactory gives every queued operation its own transaction
type txFactory struct {
	db *DB
}

func (f txFactory) Open(ctx context.Context) (*sql.Tx, error) {
	return f.db.BeginTx(ctx, nil)
}

func (f txFactory) Close(tx *sql.Tx, opErr error) error {
	if opErr != nil {
		return tx.Rollback()
	}
	return tx.Commit()
}
