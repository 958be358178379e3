// Package postgres persists articles in Postgres with URL-keyed upserts.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
)

// DefaultBatchSize is the number of rows written per upsert statement.
const DefaultBatchSize = 50

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var articleColumns = []string{
	"url",
	"title",
	"content",
	"description",
	"published_at",
	"image_url",
	"category",
	"reporter",
	"source",
	"news_source",
	"created_at",
	"updated_at",
}

// Columns rewritten when a URL is seen again. created_at and source are not.
var mutableColumns = []string{
	"title",
	"content",
	"description",
	"published_at",
	"image_url",
	"category",
	"reporter",
	"news_source",
	"updated_at",
}

// ArticleStoreConfig controls the Postgres connection pool used for articles.
type ArticleStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Ping(context.Context) error
	Close()
}

// ArticleStore writes articles into Postgres.
type ArticleStore struct {
	pool   txPool
	table  string
	now    func() time.Time
	logger *zap.Logger
}

// NewArticleStore creates a Postgres-backed ArticleStore using the provided config.
func NewArticleStore(ctx context.Context, cfg ArticleStoreConfig, logger *zap.Logger) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewArticleStoreWithPool(pool, cfg.Table, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewArticleStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewArticleStoreWithPool(pool txPool, table string, logger *zap.Logger) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleStore{
		pool:   pool,
		table:  table,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}, nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *ArticleStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// UpsertBatch writes articles in batches of batchSize, one transaction per
// batch. A batch that fails is rolled back and replayed row by row; rows
// that still fail are counted as skipped. Only cancellation aborts the call.
func (s *ArticleStore) UpsertBatch(ctx context.Context, articles []crawler.Article, batchSize int) (crawler.IngestResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var total crawler.IngestResult
	for start := 0; start < len(articles); start += batchSize {
		end := min(start+batchSize, len(articles))
		batch, invalid := dedupeByURL(articles[start:end])
		total.Skipped += invalid
		if len(batch) == 0 {
			continue
		}

		res, err := s.writeTx(ctx, batch)
		if err == nil {
			total.Add(res)
			continue
		}
		if ctx.Err() != nil {
			return total, &crawler.IngestionError{Err: ctx.Err()}
		}
		s.logger.Warn("batch upsert failed, retrying rows individually",
			zap.Int("rows", len(batch)),
			zap.Error(&crawler.IngestionError{Err: err}),
		)
		for _, article := range batch {
			res, err := s.writeTx(ctx, []crawler.Article{article})
			if err != nil {
				if ctx.Err() != nil {
					return total, &crawler.IngestionError{URL: article.URL, Err: ctx.Err()}
				}
				s.logger.Warn("row upsert failed, skipping", zap.Error(&crawler.IngestionError{URL: article.URL, Err: err}))
				total.Skipped++
				continue
			}
			total.Add(res)
		}
	}
	return total, nil
}

func (s *ArticleStore) writeTx(ctx context.Context, batch []crawler.Article) (res crawler.IngestResult, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Debug("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	rows, err := tx.Query(ctx, s.upsertSQL(len(batch)), s.upsertArgs(batch)...)
	if err != nil {
		return res, fmt.Errorf("upsert articles: %w", err)
	}
	for rows.Next() {
		var inserted bool
		if err = rows.Scan(&inserted); err != nil {
			rows.Close()
			return crawler.IngestResult{}, fmt.Errorf("scan upsert result: %w", err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return crawler.IngestResult{}, fmt.Errorf("upsert articles: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return crawler.IngestResult{}, fmt.Errorf("commit tx: %w", err)
	}
	return res, nil
}

func (s *ArticleStore) upsertSQL(rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", s.table, strings.Join(articleColumns, ", "))
	width := len(articleColumns)
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < width; j++ {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", i*width+j+1)
		}
		b.WriteByte(')')
	}
	sets := make([]string, len(mutableColumns))
	for i, col := range mutableColumns {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}
	fmt.Fprintf(&b, " ON CONFLICT (url) DO UPDATE SET %s RETURNING (xmax = 0) AS inserted", strings.Join(sets, ", "))
	return b.String()
}

func (s *ArticleStore) upsertArgs(batch []crawler.Article) []any {
	now := s.now()
	args := make([]any, 0, len(batch)*len(articleColumns))
	for _, a := range batch {
		args = append(args,
			a.URL,
			a.Title,
			a.Content,
			a.Description,
			a.PublishedAt,
			a.ImageURL,
			a.Category,
			a.Reporter,
			a.Source,
			a.NewsSource,
			now,
			now,
		)
	}
	return args
}

// dedupeByURL keeps the last article per URL, in first-seen order, and
// counts records without a URL.
func dedupeByURL(articles []crawler.Article) ([]crawler.Article, int) {
	index := make(map[string]int, len(articles))
	out := make([]crawler.Article, 0, len(articles))
	invalid := 0
	for _, a := range articles {
		if strings.TrimSpace(a.URL) == "" {
			invalid++
			continue
		}
		if i, ok := index[a.URL]; ok {
			out[i] = a
			continue
		}
		index[a.URL] = len(out)
		out = append(out, a)
	}
	return out, invalid
}
