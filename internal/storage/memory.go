package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend keeps records in process memory.
// It backs database.mode=memory and tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]map[uuid.UUID]Record
}

// NewMemoryBackend creates an empty backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]map[uuid.UUID]Record)}
}

func (b *MemoryBackend) LoadPartition(ctx context.Context, partition string) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	records := make([]Record, 0, len(b.records[partition]))
	for _, r := range b.records[partition] {
		records = append(records, r)
	}
	return records, nil
}

func (b *MemoryBackend) SaveRecords(ctx context.Context, records []Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range records {
		part, ok := b.records[r.Partition]
		if !ok {
			part = make(map[uuid.UUID]Record)
			b.records[r.Partition] = part
		}
		part[r.ID] = r
	}
	return nil
}

func (b *MemoryBackend) DeleteRecords(ctx context.Context, partition string, ids []uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range ids {
		delete(b.records[partition], id)
	}
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

func (b *MemoryBackend) HealthCheck(ctx context.Context) error {
	return nil
}

// Len reports how many records a partition holds
func (b *MemoryBackend) Len(partition string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records[partition])
}
