package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// DB wraps BadgerDB for item records and cached content bodies
type DB struct {
	*badger.DB
}

// New creates a new BadgerDB instance
func New(dbPath string) (*DB, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Disable badger's logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.DB.Close()
}

// HealthCheck checks if the database is healthy
func (db *DB) HealthCheck(ctx context.Context) error {
	if db.IsClosed() {
		return fmt.Errorf("badger db is closed")
	}
	return db.View(func(txn *badger.Txn) error {
		return nil
	})
}

// txnFactory opens one read-write transaction per queued operation
type txnFactory struct {
	db *DB
}

func (f txnFactory) Open(ctx context.Context) (*badger.Txn, error) {
	if f.db.IsClosed() {
		return nil, fmt.Errorf("badger db is closed")
	}
	return f.db.NewTransaction(true), nil
}

func (f txnFactory) Close(txn *badger.Txn, opErr error) error {
	if opErr != nil {
		txn.Discard()
		return nil
	}
	return txn.Commit()
}
