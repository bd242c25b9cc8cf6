package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BodyCache keeps rendered content bodies on disk with a TTL so a restart
// does not refetch every article.
type BodyCache struct {
	db  *DB
	ttl time.Duration
}

// NewBodyCache creates a body cache. ttl <= 0 means 24h.
func NewBodyCache(db *DB, ttl time.Duration) *BodyCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &BodyCache{db: db, ttl: ttl}
}

func bodyKey(key string) []byte {
	return []byte(fmt.Sprintf("body:%s", key))
}

// Get returns the cached body for key
func (c *BodyCache) Get(ctx context.Context, key string) (string, bool, error) {
	var body string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bodyKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			body = string(val)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return body, true, nil
}

// Put stores a body until the TTL expires
func (c *BodyCache) Put(ctx context.Context, key, body string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(bodyKey(key), []byte(body)).WithTTL(c.ttl))
	})
}

// Invalidate removes a body from cache
func (c *BodyCache) Invalidate(ctx context.Context, key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(bodyKey(key))
	})
}
