package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amiyamandal-dev/feedsync/internal/storage"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id           TEXT PRIMARY KEY,
	partition    TEXT NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	content_url  TEXT NOT NULL DEFAULT '',
	published_at INTEGER NOT NULL DEFAULT 0,
	modified_at  INTEGER NOT NULL DEFAULT 0,
	title        TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL DEFAULT '',
	is_read      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_items_partition ON items(partition);
CREATE UNIQUE INDEX IF NOT EXISTS idx_items_partition_url ON items(partition, url) WHERE url <> '';
`

// ItemRepo implements storage.Backend on SQLite.
// All statements go through a serialized queue, one transaction per operation.
type ItemRepo struct {
	db     *DB
	queue  *storage.Queue[*sql.Tx]
	logger *logger.Logger
}

// NewItemRepo creates a new item repository
func NewItemRepo(db *DB, log *logger.Logger) *ItemRepo {
	return &ItemRepo{
		db:     db,
		queue:  storage.NewQueue[*sql.Tx](txFactory{db: db}, migrate, log),
		logger: log.WithComponent("sqlite-items"),
	}
}

func migrate(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// scanner interface for scanning rows
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (storage.Record, error) {
	var (
		r         storage.Record
		id        string
		published int64
		modified  int64
		read      int
	)

	err := row.Scan(
		&id,
		&r.Partition,
		&r.Fields.URL,
		&r.Fields.ContentURL,
		&published,
		&modified,
		&r.Fields.Title,
		&r.Fields.Author,
		&r.Fields.Summary,
		&read,
	)
	if err != nil {
		return r, err
	}

	if r.ID, err = uuid.Parse(id); err != nil {
		return r, fmt.Errorf("invalid item id %q: %w", id, err)
	}
	r.Fields.Published = decodeTime(published)
	r.Fields.Modified = decodeTime(modified)
	r.Fields.Read = read != 0
	return r, nil
}

// LoadPartition returns every stored item of a partition
func (r *ItemRepo) LoadPartition(ctx context.Context, partition string) ([]storage.Record, error) {
	return storage.Run(ctx, r.queue, func(ctx context.Context, tx *sql.Tx) ([]storage.Record, error) {
		query := `
			SELECT id, partition, url, content_url, published_at, modified_at, title, author, summary, is_read
			FROM items
			WHERE partition = ?
		`

		rows, err := tx.QueryContext(ctx, query, partition)
		if err != nil {
			return nil, fmt.Errorf("failed to load items: %w", err)
		}
		defer rows.Close()

		var records []storage.Record
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return nil, fmt.Errorf("failed to scan item: %w", err)
			}
			records = append(records, rec)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating items: %w", err)
		}
		return records, nil
	})
}

// SaveRecords upserts records by ID in one transaction
func (r *ItemRepo) SaveRecords(ctx context.Context, records []storage.Record) error {
	return r.queue.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO items (id, partition, url, content_url, published_at, modified_at, title, author, summary, is_read)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				url = excluded.url,
				content_url = excluded.content_url,
				published_at = excluded.published_at,
				modified_at = excluded.modified_at,
				title = excluded.title,
				author = excluded.author,
				summary = excluded.summary,
				is_read = excluded.is_read
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			f := rec.Fields
			_, err := stmt.ExecContext(ctx,
				rec.ID.String(),
				rec.Partition,
				f.URL,
				f.ContentURL,
				encodeTime(f.Published),
				encodeTime(f.Modified),
				f.Title,
				f.Author,
				f.Summary,
				boolToInt(f.Read),
			)
			if err != nil {
				return fmt.Errorf("failed to save item %s: %w", rec.ID, err)
			}
		}
		r.logger.Debug("Saved items", "count", len(records))
		return nil
	})
}

// DeleteRecords removes items of a partition by ID
func (r *ItemRepo) DeleteRecords(ctx context.Context, partition string, ids []uuid.UUID) error {
	return r.queue.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE partition = ? AND id = ?`, partition, id.String()); err != nil {
				return fmt.Errorf("failed to delete item %s: %w", id, err)
			}
		}
		return nil
	})
}

// Count returns the number of stored items in a partition
func (r *ItemRepo) Count(ctx context.Context, partition string) (int, error) {
	return storage.Run(ctx, r.queue, func(ctx context.Context, tx *sql.Tx) (int, error) {
		var n int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE partition = ?`, partition).Scan(&n)
		return n, err
	})
}

// Close drains the queue and closes the database
func (r *ItemRepo) Close() error {
	r.queue.Close()
	return r.db.Close()
}

// HealthCheck checks if the database is reachable
func (r *ItemRepo) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func decodeTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ storage.Backend = (*ItemRepo)(nil)
