package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amiyamandal-dev/feedsync/internal/storage"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ItemRepo implements storage.Backend using BadgerDB.
// Records are stored as JSON under item:<partition>:<id>.
type ItemRepo struct {
	db     *DB
	queue  *storage.Queue[*badger.Txn]
	logger *logger.Logger
}

// NewItemRepo creates a new BadgerDB-based item repository
func NewItemRepo(db *DB, log *logger.Logger) *ItemRepo {
	return &ItemRepo{
		db:     db,
		queue:  storage.NewQueue[*badger.Txn](txnFactory{db: db}, nil, log),
		logger: log.WithComponent("badger-items"),
	}
}

func itemKey(partition string, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("item:%s:%s", partition, id))
}

func partitionPrefix(partition string) []byte {
	return []byte(fmt.Sprintf("item:%s:", partition))
}

// LoadPartition returns every stored item of a partition
func (r *ItemRepo) LoadPartition(ctx context.Context, partition string) ([]storage.Record, error) {
	return storage.Run(ctx, r.queue, func(ctx context.Context, txn *badger.Txn) ([]storage.Record, error) {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = partitionPrefix(partition)

		it := txn.NewIterator(opts)
		defer it.Close()

		var records []storage.Record
		for it.Rewind(); it.Valid(); it.Next() {
			var rec storage.Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return nil, fmt.Errorf("failed to decode item %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return records, nil
	})
}

// SaveRecords writes records in one transaction
func (r *ItemRepo) SaveRecords(ctx context.Context, records []storage.Record) error {
	return r.queue.Do(ctx, func(ctx context.Context, txn *badger.Txn) error {
		for _, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(itemKey(rec.Partition, rec.ID), data); err != nil {
				return fmt.Errorf("failed to save item %s: %w", rec.ID, err)
			}
		}
		r.logger.Debug("Saved items", "count", len(records))
		return nil
	})
}

// DeleteRecords removes items of a partition by ID
func (r *ItemRepo) DeleteRecords(ctx context.Context, partition string, ids []uuid.UUID) error {
	return r.queue.Do(ctx, func(ctx context.Context, txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete(itemKey(partition, id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to delete item %s: %w", id, err)
			}
		}
		return nil
	})
}

// Close drains the queue and closes the database
func (r *ItemRepo) Close() error {
	r.queue.Close()
	return r.db.Close()
}

// HealthCheck checks if the database is healthy
func (r *ItemRepo) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

var _ storage.Backend = (*ItemRepo)(nil)
