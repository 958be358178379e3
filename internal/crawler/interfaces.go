package crawler

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
)

// Session is a browser-like fetch session owned by exactly one crawl.
type Session interface {
	Fetch(ctx context.Context, url string) (string, error)
	Close() error
}

// SessionFactory opens sessions configured for a source.
type SessionFactory interface {
	Open(ctx context.Context, def source.Definition) (Session, error)
}

// Extractor turns fetched markup into items and articles for one markup family.
// ExtractDetail reports ok=false when the page holds no usable content.
type Extractor interface {
	ExtractList(page Page) ([]RawItem, error)
	ExtractDetail(page Page, item RawItem, def source.Definition) (article Article, ok bool, err error)
}

// Crawler runs one crawl job to completion.
type Crawler interface {
	Crawl(ctx context.Context, job CrawlJob) ([]Article, error)
}

// ArticleStore persists articles keyed on URL.
type ArticleStore interface {
	UpsertBatch(ctx context.Context, articles []Article, batchSize int) (IngestResult, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes run reports to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher produces content digests used to key archived snapshots.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
