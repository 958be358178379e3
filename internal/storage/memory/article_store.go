// Package memory keeps articles and snapshots in process memory for local
// runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
)

// ArticleStore is an in-memory crawler.ArticleStore keyed on URL.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]crawler.Article
	now      func() time.Time
}

// NewArticleStore constructs an ArticleStore. A nil now uses time.Now.
func NewArticleStore(now func() time.Time) *ArticleStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ArticleStore{
		articles: make(map[string]crawler.Article),
		now:      now,
	}
}

// UpsertBatch inserts new URLs and rewrites the mutable fields of known ones,
// keeping the original created_at and source.
func (s *ArticleStore) UpsertBatch(ctx context.Context, articles []crawler.Article, _ int) (crawler.IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return crawler.IngestResult{}, &crawler.IngestionError{Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var res crawler.IngestResult
	seen := make(map[string]bool, len(articles))
	for _, a := range articles {
		if strings.TrimSpace(a.URL) == "" {
			res.Skipped++
			continue
		}
		now := s.now()
		existing, ok := s.articles[a.URL]
		switch {
		case !ok:
			a.CreatedAt = now
			res.Inserted++
		default:
			a.CreatedAt = existing.CreatedAt
			a.Source = existing.Source
			if !seen[a.URL] {
				res.Updated++
			}
		}
		a.UpdatedAt = now
		s.articles[a.URL] = a
		seen[a.URL] = true
	}
	return res, nil
}

// Get returns the stored article for url.
func (s *ArticleStore) Get(url string) (crawler.Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[url]
	return a, ok
}

// List returns all stored articles ordered by URL.
func (s *ArticleStore) List() []crawler.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// PruneOlderThan deletes articles published before cutoff.
func (s *ArticleStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for url, a := range s.articles {
		if a.PublishedAt.Before(cutoff) {
			delete(s.articles, url)
			removed++
		}
	}
	return removed, nil
}
