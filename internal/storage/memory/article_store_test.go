package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
)

type tickingClock struct{ t time.Time }

func (c *tickingClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func TestArticleStoreUpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	clock := &tickingClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewArticleStore(clock.now)
	ctx := context.Background()
	article := crawler.Article{
		URL:         "https://news.example.jp/articles/1",
		Title:       "first",
		Content:     "body",
		PublishedAt: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		Source:      "npb",
	}

	res, err := store.UpsertBatch(ctx, []crawler.Article{article}, 50)
	require.NoError(t, err)
	require.Equal(t, crawler.IngestResult{Inserted: 1}, res)
	first, ok := store.Get(article.URL)
	require.True(t, ok)

	article.Title = "revised"
	article.Source = "mlb"
	res, err = store.UpsertBatch(ctx, []crawler.Article{article}, 50)
	require.NoError(t, err)
	require.Equal(t, crawler.IngestResult{Updated: 1}, res)

	second, ok := store.Get(article.URL)
	require.True(t, ok)
	require.Len(t, store.List(), 1)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))
	require.Equal(t, "revised", second.Title)
	require.Equal(t, "npb", second.Source, "source is fixed by the first write")
}

func TestArticleStoreSkipsBlankURLsAndCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	store := NewArticleStore(nil)
	res, err := store.UpsertBatch(context.Background(), []crawler.Article{
		{URL: "https://news.example.jp/articles/a", Title: "one"},
		{URL: ""},
		{URL: "https://news.example.jp/articles/a", Title: "two"},
	}, 50)
	require.NoError(t, err)
	require.Equal(t, crawler.IngestResult{Inserted: 1, Skipped: 1}, res)
	got, _ := store.Get("https://news.example.jp/articles/a")
	require.Equal(t, "two", got.Title)
}

func TestArticleStorePrune(t *testing.T) {
	t.Parallel()

	store := NewArticleStore(nil)
	_, err := store.UpsertBatch(context.Background(), []crawler.Article{
		{URL: "https://news.example.jp/articles/old", PublishedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{URL: "https://news.example.jp/articles/new", PublishedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}, 50)
	require.NoError(t, err)

	n, err := store.PruneOlderThan(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Len(t, store.List(), 1)
}

func TestArticleStoreCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewArticleStore(nil).UpsertBatch(ctx, []crawler.Article{{URL: "u"}}, 50)
	require.ErrorIs(t, err, context.Canceled)
}
