// Package storage keeps the canonical in-memory items of every feed
// partition and persists them through a Backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/google/uuid"
)

// Record is the persisted form of an item
type Record struct {
	ID        uuid.UUID         `json:"id"`
	Partition string            `json:"partition"`
	Fields    domain.ItemFields `json:"fields"`
}

// Backend persists item records grouped by partition
type Backend interface {
	// LoadPartition returns every record of the partition
	LoadPartition(ctx context.Context, partition string) ([]Record, error)

	// SaveRecords inserts or replaces records by ID, atomically
	SaveRecords(ctx context.Context, records []Record) error

	// DeleteRecords removes the records with the given IDs from the partition
	DeleteRecords(ctx context.Context, partition string, ids []uuid.UUID) error

	Close() error
	HealthCheck(ctx context.Context) error
}

// Indexer is kept in step with successful partition changes
type Indexer interface {
	IndexItems(ctx context.Context, items []*domain.Item) error
	DeleteItems(ctx context.Context, ids []uuid.UUID) error
}

// ContentSource hands out the body loader for an item
type ContentSource interface {
	LoaderFor(item *domain.Item) domain.ContentLoader
}

// Storage owns one Partition per name over a shared backend
type Storage struct {
	backend Backend
	indexer Indexer
	content ContentSource
	logger  *logger.Logger

	mu         sync.Mutex
	partitions map[string]*Partition
}

// New creates a storage. indexer and content may be nil.
func New(backend Backend, indexer Indexer, content ContentSource, log *logger.Logger) *Storage {
	return &Storage{
		backend:    backend,
		indexer:    indexer,
		content:    content,
		logger:     log.WithComponent("item-storage"),
		partitions: make(map[string]*Partition),
	}
}

// Partition returns the canonical partition for name, creating it on first use
func (s *Storage) Partition(name string) *Partition {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.partitions[name]; ok {
		return p
	}
	p := newPartition(name, s.backend, s.indexer, s.content, s.logger)
	s.partitions[name] = p
	return p
}

// PartitionNames lists the partitions opened so far
func (s *Storage) PartitionNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.partitions))
	for name := range s.partitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheck checks if the backend is reachable
func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.backend.HealthCheck(ctx); err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}

// Close closes the backend
func (s *Storage) Close() error {
	return s.backend.Close()
}
