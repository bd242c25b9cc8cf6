package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
)

// BleveIndex implements Index using Bleve
type BleveIndex struct {
	index  bleve.Index
	strict *bluemonday.Policy
	logger *logger.Logger
}

// OpenBleveIndex opens or creates the index at path. An empty path keeps
// the index in memory.
func OpenBleveIndex(path string, log *logger.Logger) (*BleveIndex, error) {
	b := &BleveIndex{
		strict: bluemonday.StrictPolicy(),
		logger: log.WithComponent("bleve-index"),
	}

	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create search index: %w", err)
		}
		b.index = idx
		return b, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	idx, err := bleve.Open(path)
	if err == nil {
		b.index = idx
		b.logger.Info("Opened existing search index", "path", path)
		return b, nil
	}

	idx, err = bleve.New(path, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	b.index = idx
	b.logger.Info("Created new search index", "path", path)
	return b, nil
}

func buildIndexMapping() mapping.IndexMapping {
	itemMapping := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = "en"
	title.Store = true
	itemMapping.AddFieldMappingsAt("title", title)

	summary := bleve.NewTextFieldMapping()
	summary.Analyzer = "en"
	summary.Store = false
	itemMapping.AddFieldMappingsAt("summary", summary)

	author := bleve.NewTextFieldMapping()
	author.Analyzer = "standard"
	author.Store = true
	itemMapping.AddFieldMappingsAt("author", author)

	partition := bleve.NewKeywordFieldMapping()
	partition.Store = true
	itemMapping.AddFieldMappingsAt("partition", partition)

	url := bleve.NewKeywordFieldMapping()
	url.Store = true
	itemMapping.AddFieldMappingsAt("url", url)

	published := bleve.NewDateTimeFieldMapping()
	published.Store = true
	itemMapping.AddFieldMappingsAt("published", published)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("item", itemMapping)
	indexMapping.DefaultMapping = itemMapping
	return indexMapping
}

// Close closes the search index
func (b *BleveIndex) Close() error {
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	b.logger.Info("Closed search index")
	return nil
}

// IndexItems adds or replaces the documents of items in one batch
func (b *BleveIndex) IndexItems(ctx context.Context, items []*domain.Item) error {
	if len(items) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	for _, item := range items {
		doc := ItemToDocument(item, b.strict.Sanitize)
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("failed to index item %s: %w", doc.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		b.logger.Error("Failed to index items", "count", len(items), "error", err)
		return fmt.Errorf("failed to index items: %w", err)
	}

	b.logger.Debug("Indexed items", "count", len(items))
	return nil
}

// DeleteItems removes documents from the index
func (b *BleveIndex) DeleteItems(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id.String())
	}
	if err := b.index.Batch(batch); err != nil {
		b.logger.Error("Failed to delete items from index", "count", len(ids), "error", err)
		return fmt.Errorf("failed to delete from index: %w", err)
	}
	return nil
}

// Search runs q and returns one page of hits, best first
func (b *BleveIndex) Search(ctx context.Context, q *Query) (*Result, error) {
	startTime := time.Now()

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), q.Limit, (q.Page-1)*q.Limit, false)
	req.Fields = []string{"partition"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		b.logger.Error("Search failed", "error", err)
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := uuid.Parse(h.ID)
		if err != nil {
			b.logger.Warn("Skipping malformed document id", "id", h.ID)
			continue
		}
		partition, _ := h.Fields["partition"].(string)
		hits = append(hits, Hit{ID: id, Partition: partition, Score: h.Score})
	}

	total := int(res.Total)
	totalPages := total / q.Limit
	if total%q.Limit > 0 {
		totalPages++
	}

	queryTime := time.Since(startTime).Milliseconds()
	b.logger.Debug("Search completed", "query", q.Text, "results", total, "time_ms", queryTime)

	return &Result{
		Hits:       hits,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: totalPages,
		QueryTime:  queryTime,
	}, nil
}

func buildQuery(q *Query) query.Query {
	var queries []query.Query

	if text := strings.TrimSpace(q.Text); text != "" {
		queries = append(queries, textQuery(text))
	}

	if q.Partition != "" {
		pq := bleve.NewTermQuery(q.Partition)
		pq.SetField("partition")
		queries = append(queries, pq)
	}

	if q.Author != "" {
		aq := bleve.NewMatchQuery(q.Author)
		aq.SetField("author")
		queries = append(queries, aq)
	}

	if !q.FromDate.IsZero() || !q.ToDate.IsZero() {
		dq := bleve.NewDateRangeQuery(q.FromDate, q.ToDate)
		dq.SetField("published")
		queries = append(queries, dq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

// textQuery matches text against each searchable field so every field's
// analyzer applies
func textQuery(text string) query.Query {
	fields := []string{"title", "summary", "author"}
	qs := make([]query.Query, 0, len(fields))
	for _, field := range fields {
		mq := bleve.NewMatchQuery(text)
		mq.SetField(field)
		qs = append(qs, mq)
	}
	return bleve.NewDisjunctionQuery(qs...)
}

// Count returns the number of indexed items
func (b *BleveIndex) Count() (uint64, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return count, nil
}

var _ Index = (*BleveIndex)(nil)
