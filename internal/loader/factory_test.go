package loader

import (
	"context"
	"testing"
	"time"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFactory(t *testing.T, fetchers map[string]*fakeFetcher) *Factory {
	t.Helper()
	store := storage.New(storage.NewMemoryBackend(), nil, nil, testLog)
	return NewFactory(store, func(desc domain.FeedDescriptor) Fetcher {
		if f, ok := fetchers[desc.Name]; ok {
			return f
		}
		return &fakeFetcher{}
	}, newTestPool(t), testLog)
}

func TestFactoryBuildsFeedTree(t *testing.T) {
	golang := &fakeFetcher{}
	golang.set(itemDesc("https://go.dev/blog/1", "Go 1.25 released", 10))
	rust := &fakeFetcher{}
	rust.set(itemDesc("https://blog.rust-lang.org/1", "Rust 2024 edition", 10))

	f := newTestFactory(t, map[string]*fakeFetcher{"golang": golang, "rust": rust})
	tree, err := f.Build([]domain.FeedDescriptor{
		{Name: "golang", Kind: domain.FeedKindRSS, URL: "https://go.dev/blog/feed.atom"},
		{Name: "rust", Kind: domain.FeedKindRSS, URL: "https://blog.rust-lang.org/feed.xml"},
		{Name: "langs", Kind: domain.FeedKindGroup, Children: []string{"golang", "rust"}, Symbol: "L"},
		{Name: "releases", Kind: domain.FeedKindSearch, Source: "langs", Query: "released"},
	})
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	names := make([]string, 0, 4)
	for _, n := range tree.Nodes() {
		names = append(names, n.Name())
	}
	assert.Equal(t, []string{"golang", "rust", "langs", "releases"}, names)

	langs, ok := tree.Node("langs")
	require.True(t, ok)
	require.NoError(t, langs.Loader().Synchronize(context.Background()))
	assert.Equal(t, 2, langs.Loader().Items().Len())
	assert.Equal(t, "L", langs.Loader().Metadata().Symbol)

	releasesNode, ok := tree.Node("releases")
	require.True(t, ok)
	releases := releasesNode.Loader().(*SearchLoader)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, releases.Wait(ctx))

	items := releases.Items().Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Go 1.25 released", items[0].Title())
}

func TestFactoryHonorsExcludedFeeds(t *testing.T) {
	a := &fakeFetcher{}
	a.set(itemDesc("https://a.example/1", "a", 1))
	b := &fakeFetcher{}
	b.set(itemDesc("https://b.example/1", "b", 1))

	f := newTestFactory(t, map[string]*fakeFetcher{"a": a, "b": b})
	tree, err := f.Build([]domain.FeedDescriptor{
		{Name: "a", Kind: domain.FeedKindRSS, URL: "https://a.example/rss"},
		{Name: "b", Kind: domain.FeedKindRSS, URL: "https://b.example/rss", Excluded: true},
		{Name: "all", Kind: domain.FeedKindGroup, Children: []string{"a", "b"}},
	})
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	all, _ := tree.Node("all")
	require.NoError(t, all.Loader().Synchronize(context.Background()))
	assert.Equal(t, 1, all.Loader().Items().Len())

	bNode, _ := tree.Node("b")
	bNode.SetExcluded(false)
	require.NoError(t, all.Loader().Synchronize(context.Background()))
	assert.Equal(t, 2, all.Loader().Items().Len())
}

func TestFactoryRejectsBadTrees(t *testing.T) {
	tests := []struct {
		name  string
		descs []domain.FeedDescriptor
		want  error
	}{
		{
			name: "duplicate name",
			descs: []domain.FeedDescriptor{
				{Name: "a", Kind: domain.FeedKindRSS, URL: "https://a.example/rss"},
				{Name: "a", Kind: domain.FeedKindRSS, URL: "https://b.example/rss"},
			},
			want: domain.ErrFeedAlreadyExists,
		},
		{
			name: "cycle",
			descs: []domain.FeedDescriptor{
				{Name: "x", Kind: domain.FeedKindGroup, Children: []string{"y"}},
				{Name: "y", Kind: domain.FeedKindGroup, Children: []string{"x"}},
			},
			want: domain.ErrInvalidFeed,
		},
		{
			name: "unknown child",
			descs: []domain.FeedDescriptor{
				{Name: "x", Kind: domain.FeedKindGroup, Children: []string{"missing"}},
			},
			want: domain.ErrFeedNotFound,
		},
		{
			name: "unknown kind",
			descs: []domain.FeedDescriptor{
				{Name: "x", Kind: "podcast"},
			},
			want: domain.ErrInvalidFeed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestFactory(t, nil).Build(tt.descs)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
