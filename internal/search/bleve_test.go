package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(partition, title, author, summary string, published time.Time) *domain.Item {
	return domain.NewItem(uuid.New(), partition, domain.ItemFields{ItemDescriptor: domain.ItemDescriptor{
		URL:       "https://example.com/" + uuid.NewString(),
		Title:     title,
		Author:    author,
		Summary:   summary,
		Published: published,
		Modified:  published,
	}})
}

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := OpenBleveIndex("", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func hitIDs(res *Result) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestIndexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	goItem := item("golang", "Generics in practice", "Rob", "<p>Type parameters <b>explained</b></p>", day)
	rustItem := item("rust", "Borrow checker tales", "Ferris", "ownership and lifetimes", day.AddDate(0, 0, 1))
	bothItem := item("golang", "Comparing generics with traits", "Ferris", "", day.AddDate(0, 0, 2))
	require.NoError(t, idx.IndexItems(ctx, []*domain.Item{goItem, rustItem, bothItem}))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	res, err := idx.Search(ctx, &Query{Text: "generics"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.ElementsMatch(t, []uuid.UUID{goItem.ID, bothItem.ID}, hitIDs(res))

	res, err = idx.Search(ctx, &Query{Text: "explained"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, goItem.ID, res.Hits[0].ID)
	assert.Equal(t, "golang", res.Hits[0].Partition)

	res, err = idx.Search(ctx, &Query{Partition: "golang", Author: "ferris"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{bothItem.ID}, hitIDs(res))

	res, err = idx.Search(ctx, &Query{FromDate: day.AddDate(0, 0, 1), ToDate: day.AddDate(0, 0, 3)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{rustItem.ID, bothItem.ID}, hitIDs(res))
}

func TestTextSearchCoversEachField(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	byTitle := item("golang", "Generics in practice", "Rob", "", day)
	bySummary := item("golang", "Release notes", "Russ", "new iterator practices", day)
	require.NoError(t, idx.IndexItems(ctx, []*domain.Item{byTitle, bySummary}))

	tests := []struct {
		text string
		want []uuid.UUID
	}{
		{"generic", []uuid.UUID{byTitle.ID}},
		{"practice", []uuid.UUID{byTitle.ID, bySummary.ID}},
		{"russ", []uuid.UUID{bySummary.ID}},
		{"ownership", []uuid.UUID{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res, err := idx.Search(ctx, &Query{Text: tt.text})
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, hitIDs(res))
		})
	}
}

func TestSearchPagination(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	items := make([]*domain.Item, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, item("p", "release notes", "", "", time.Now()))
	}
	require.NoError(t, idx.IndexItems(ctx, items))

	res, err := idx.Search(ctx, &Query{Text: "release", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 3, res.TotalPages)
	assert.Len(t, res.Hits, 2)

	q := &Query{Limit: 1000}
	_, err = idx.Search(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 100, q.Limit)
	assert.Equal(t, 1, q.Page)
}

func TestDeleteAndReindex(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	it := item("p", "original headline", "", "", time.Now())
	require.NoError(t, idx.IndexItems(ctx, []*domain.Item{it}))

	it.Apply(domain.ItemDescriptor{URL: it.URL(), Title: "corrected headline", Modified: time.Now()})
	require.NoError(t, idx.IndexItems(ctx, []*domain.Item{it}))

	res, err := idx.Search(ctx, &Query{Text: "original"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	require.NoError(t, idx.DeleteItems(ctx, []uuid.UUID{it.ID}))
	count, err := idx.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpenPersistentIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "items.bleve")
	idx, err := OpenBleveIndex(path, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, idx.IndexItems(context.Background(), []*domain.Item{item("p", "kept", "", "", time.Now())}))
	require.NoError(t, idx.Close())

	reopened, err := OpenBleveIndex(path, logger.NewNop())
	require.NoError(t, err)
	defer reopened.Close()
	count, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
