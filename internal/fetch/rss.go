// Package fetch retrieves remote RSS and Atom feeds and converts their
// entries to item descriptors.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

const (
	userAgent    = "feedsync/1.0 (+https://github.com/amiyamandal-dev/feedsync)"
	maxFeedBytes = 10 << 20
)

// RSSFetcher downloads and parses one feed URL
type RSSFetcher struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewRSSFetcher creates a fetcher. limiter may be nil and is usually shared
// by every fetcher of the process.
func NewRSSFetcher(url string, client *http.Client, limiter *rate.Limiter, log *logger.Logger) *RSSFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RSSFetcher{
		url:     url,
		client:  client,
		limiter: limiter,
		logger:  log.WithComponent("rss-fetcher"),
	}
}

func (f *RSSFetcher) URL() string {
	return f.url
}

// Fetch downloads the feed and returns its metadata and entries
func (f *RSSFetcher) Fetch(ctx context.Context) (domain.Metadata, []domain.ItemDescriptor, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return domain.Metadata{}, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return domain.Metadata{}, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Metadata{}, nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Metadata{}, nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return domain.Metadata{}, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	descriptors := make([]domain.ItemDescriptor, 0, len(feed.Items))
	for _, entry := range feed.Items {
		descriptors = append(descriptors, convertEntry(entry))
	}

	f.logger.Debug("Fetched feed", "url", f.url, "entries", len(descriptors))
	return convertMetadata(feed), descriptors, nil
}

func convertMetadata(feed *gofeed.Feed) domain.Metadata {
	meta := domain.Metadata{
		Name:        strings.TrimSpace(feed.Title),
		Description: strings.TrimSpace(feed.Description),
	}
	if feed.Author != nil {
		meta.Author = feed.Author.Name
	} else if len(feed.Authors) > 0 && feed.Authors[0] != nil {
		meta.Author = feed.Authors[0].Name
	}
	return meta
}

// convertEntry maps a parsed entry. Modified falls back to Published so an
// entry without an update date is never treated as newer on refetch.
func convertEntry(entry *gofeed.Item) domain.ItemDescriptor {
	d := domain.ItemDescriptor{
		URL:        entry.Link,
		ContentURL: entry.Link,
		Title:      strings.TrimSpace(entry.Title),
		Summary:    entry.Description,
	}

	if d.URL == "" && strings.HasPrefix(entry.GUID, "http") {
		d.URL = entry.GUID
		d.ContentURL = entry.GUID
	}

	if entry.PublishedParsed != nil {
		d.Published = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		d.Published = entry.UpdatedParsed.UTC()
	}
	d.Modified = d.Published
	if entry.UpdatedParsed != nil {
		d.Modified = entry.UpdatedParsed.UTC()
	}

	if entry.Author != nil {
		d.Author = entry.Author.Name
	} else if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		d.Author = entry.Authors[0].Name
	}

	if d.Summary == "" && entry.Content != "" {
		d.Summary = truncate(entry.Content, 500)
	}
	return d
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
