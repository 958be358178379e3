package postgres

import (
	"context"
	"fmt"
	"time"
)

// EnsureSchema creates the articles table and its indexes if missing.
func (s *ArticleStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	description TEXT,
	published_at TIMESTAMPTZ NOT NULL,
	image_url TEXT,
	category TEXT,
	reporter TEXT,
	source TEXT NOT NULL,
	news_source TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_source_idx ON %[1]s (source)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_category_idx ON %[1]s (category)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_published_at_idx ON %[1]s (published_at)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_created_at_idx ON %[1]s (created_at)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_title_source_idx ON %[1]s (title, source)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_published_source_idx ON %[1]s (published_at, source)`, s.table),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// PruneOlderThan deletes articles published before cutoff and returns the
// number of rows removed.
func (s *ArticleStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE published_at < $1`, s.table), cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune articles: %w", err)
	}
	return tag.RowsAffected(), nil
}
