// Package orchestrator drives one source crawl: list pages, date filtering,
// detail pages, and the pagination stop rule.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/logging"
	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
)

// Config tunes pagination and date handling.
type Config struct {
	// MaxPagesDefault applies when a job carries no MaxPages. Zero means unbounded.
	MaxPagesDefault int
	// Location decides which calendar day a timestamp belongs to.
	Location *time.Location
}

// Orchestrator implements crawler.Crawler.
type Orchestrator struct {
	cfg       Config
	registry  *source.Registry
	sessions  crawler.SessionFactory
	extractor crawler.Extractor
	clock     crawler.Clock
	logger    *zap.Logger
	snapshots *snapshotter
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSnapshots archives the markup of pages that yielded nothing.
func WithSnapshots(store crawler.BlobStore, hasher crawler.Hasher) Option {
	return func(o *Orchestrator) {
		if store != nil && hasher != nil {
			o.snapshots = &snapshotter{store: store, hasher: hasher}
		}
	}
}

// New constructs an Orchestrator.
func New(
	cfg Config,
	registry *source.Registry,
	sessions crawler.SessionFactory,
	extractor crawler.Extractor,
	clock crawler.Clock,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:       cfg,
		registry:  registry,
		sessions:  sessions,
		extractor: extractor,
		clock:     clock,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Crawl runs job to completion and returns the articles it collected. Page
// and item failures are absorbed; only an unknown source, a session that
// cannot open, or a dead session or context end the job with an error.
func (o *Orchestrator) Crawl(ctx context.Context, job crawler.CrawlJob) (articles []crawler.Article, err error) {
	def, ok := o.registry.Lookup(job.SourceID)
	if !ok {
		return nil, &crawler.OrchestrationError{SourceID: job.SourceID, Err: crawler.ErrUnknownSource}
	}
	logger := logging.ForSource(o.logger, def.ID)

	session, err := o.sessions.Open(ctx, def)
	if err != nil {
		return nil, &crawler.OrchestrationError{SourceID: def.ID, Err: err}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("session close failed", zap.Error(cerr))
		}
	}()

	run := &pageRun{
		Orchestrator: o,
		def:          def,
		session:      session,
		window:       newDateWindow(job.StartDate, job.EndDate, o.cfg.Location),
		visited:      newVisitTracker(),
		logger:       logger,
	}
	maxPages := o.maxPages(job)

	for page := 1; maxPages == 0 || page <= maxPages; page++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return articles, &crawler.OrchestrationError{SourceID: def.ID, Err: ctxErr}
		}
		found, inRange, fatal := run.crawlPage(ctx, page)
		articles = append(articles, found...)
		if fatal != nil {
			return articles, &crawler.OrchestrationError{SourceID: def.ID, Err: fatal}
		}
		if inRange == 0 {
			logger.Info("no in-range items on page, stopping", zap.Int("page", page))
			break
		}
		if maxPages != 0 && page == maxPages {
			logger.Info("page limit reached", zap.Int("max_pages", maxPages))
		}
	}

	logger.Info("crawl finished", zap.Int("articles", len(articles)))
	return articles, nil
}

func (o *Orchestrator) maxPages(job crawler.CrawlJob) int {
	if job.MaxPages != nil && *job.MaxPages >= 0 {
		return *job.MaxPages
	}
	return o.cfg.MaxPagesDefault
}

// pageRun carries the per-job state shared by every page of one crawl.
type pageRun struct {
	*Orchestrator
	def     source.Definition
	session crawler.Session
	window  dateWindow
	visited *visitTracker
	logger  *zap.Logger
}

// crawlPage lists page n, filters its items, and fetches the survivors.
// inRange counts newly seen items whose known date falls in the window.
func (r *pageRun) crawlPage(ctx context.Context, n int) (found []crawler.Article, inRange int, fatal error) {
	pageURL := r.def.PageURL(n)
	items, err := r.listPage(ctx, pageURL)
	if err != nil {
		if isFatal(ctx, err) {
			return nil, 0, err
		}
		r.logger.Warn("list page failed", zap.String("url", pageURL), zap.Error(err))
		return nil, 0, nil
	}

	for _, item := range items {
		v := r.window.classify(item.PublishedAt)
		if v == verdictOutOfRange {
			continue
		}
		if !r.visited.mark(item.URL) {
			continue
		}
		if v == verdictInRange {
			inRange++
		}

		article, ok, err := r.detailPage(ctx, item)
		if err != nil {
			if isFatal(ctx, err) {
				return found, inRange, err
			}
			r.logger.Warn("detail page failed", zap.String("url", item.URL), zap.Error(err))
			continue
		}
		if ok {
			found = append(found, article)
		}
	}
	r.logger.Debug("page processed",
		zap.Int("page", n),
		zap.Int("items", len(items)),
		zap.Int("in_range", inRange),
		zap.Int("articles", len(found)),
	)
	return found, inRange, nil
}

func (r *pageRun) listPage(ctx context.Context, pageURL string) (items []crawler.RawItem, err error) {
	defer recoverInto(&err)

	html, err := r.session.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	page := crawler.Page{URL: pageURL, HTML: html}
	items, err = r.extractor.ExtractList(page)
	if err != nil {
		return nil, fmt.Errorf("extract list: %w", err)
	}
	if len(items) == 0 {
		r.snapshot(ctx, "list", page)
	}
	return items, nil
}

func (r *pageRun) detailPage(ctx context.Context, item crawler.RawItem) (article crawler.Article, ok bool, err error) {
	defer recoverInto(&err)

	html, err := r.session.Fetch(ctx, item.URL)
	if err != nil {
		return crawler.Article{}, false, err
	}
	page := crawler.Page{URL: item.URL, HTML: html}
	article, ok, err = r.extractor.ExtractDetail(page, item, r.def)
	if err != nil {
		return crawler.Article{}, false, fmt.Errorf("extract detail: %w", err)
	}
	if !ok {
		r.logger.Debug("detail page dropped", zap.String("url", item.URL), zap.Error(crawler.ErrExtractionEmpty))
		r.snapshot(ctx, "detail", page)
	}
	return article, ok, nil
}

func (r *pageRun) snapshot(ctx context.Context, kind string, page crawler.Page) {
	if r.snapshots == nil {
		return
	}
	uri, err := r.snapshots.save(ctx, r.def.ID, kind, r.now(), page)
	if err != nil {
		r.logger.Warn("snapshot failed", zap.String("url", page.URL), zap.Error(err))
		return
	}
	r.logger.Info("archived empty page", zap.String("url", page.URL), zap.String("uri", uri))
}

func (r *pageRun) now() time.Time {
	if r.clock != nil {
		return r.clock.Now()
	}
	return time.Now()
}

// isFatal reports errors that doom every later fetch in the job.
func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, crawler.ErrSessionClosed)
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("recovered panic: %v", r)
	}
}

// snapshotter archives raw markup keyed by content digest.
type snapshotter struct {
	store  crawler.BlobStore
	hasher crawler.Hasher
}

func (s *snapshotter) save(ctx context.Context, sourceID, kind string, at time.Time, page crawler.Page) (string, error) {
	digest, err := s.hasher.Hash([]byte(page.HTML))
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	path := fmt.Sprintf("snapshots/%s/%s/%s/%s.html", sourceID, at.Format("2006/01/02"), kind, digest)
	uri, err := s.store.PutObject(ctx, path, "text/html; charset=utf-8", strings.NewReader(page.HTML))
	if err != nil {
		return "", fmt.Errorf("put snapshot: %w", err)
	}
	return uri, nil
}
