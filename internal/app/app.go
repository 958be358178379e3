// Package app builds the long-lived services of the harvester from config and
// hands them to the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/api"
	"github.com/JakeFAU/sportsnavi-harvester/internal/clock/system"
	"github.com/JakeFAU/sportsnavi-harvester/internal/config"
	"github.com/JakeFAU/sportsnavi-harvester/internal/coordinator"
	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/extract"
	"github.com/JakeFAU/sportsnavi-harvester/internal/fetcher"
	collyfetcher "github.com/JakeFAU/sportsnavi-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/sportsnavi-harvester/internal/fetcher/headless"
	"github.com/JakeFAU/sportsnavi-harvester/internal/hash/sha256"
	"github.com/JakeFAU/sportsnavi-harvester/internal/headless/detector"
	"github.com/JakeFAU/sportsnavi-harvester/internal/id/uuid"
	"github.com/JakeFAU/sportsnavi-harvester/internal/normalize"
	"github.com/JakeFAU/sportsnavi-harvester/internal/orchestrator"
	"github.com/JakeFAU/sportsnavi-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/sportsnavi-harvester/internal/progress"
	"github.com/JakeFAU/sportsnavi-harvester/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/sportsnavi-harvester/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/sportsnavi-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
	"github.com/JakeFAU/sportsnavi-harvester/internal/storage/gcs"
	"github.com/JakeFAU/sportsnavi-harvester/internal/storage/local"
	memorystorage "github.com/JakeFAU/sportsnavi-harvester/internal/storage/memory"
	"github.com/JakeFAU/sportsnavi-harvester/internal/storage/postgres"
)

// ErrNoDatabase is returned by maintenance operations that need Postgres.
var ErrNoDatabase = errors.New("db.dsn is not configured")

// Store is the article store surface the commands use.
type Store interface {
	crawler.ArticleStore
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// App holds the services shared by the commands.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	registry    *source.Registry
	clock       *system.Clock
	store       Store
	postgres    *postgres.ArticleStore
	coordinator *coordinator.Coordinator
	events      *sinks.Recent
	closers     []func() error
}

type options struct {
	browser fetcher.DriverOpener
	store   Store
}

// Option customizes New.
type Option func(*options)

// WithDriverOpener replaces the browser driver, for tests and dry runs.
func WithDriverOpener(open fetcher.DriverOpener) Option {
	return func(o *options) { o.browser = open }
}

// WithStore replaces the configured article store.
func WithStore(store Store) Option {
	return func(o *options) { o.store = store }
}

// New builds every service described by cfg. Without a DSN articles are kept
// in memory.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	loc := cfg.Location()
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: source.Default(),
		clock:    system.New(loc),
	}

	if err := a.initStore(ctx, o.store); err != nil {
		a.Close()
		return nil, err
	}
	snapshots, err := a.newSnapshotStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.newPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	extractor := extract.NewSportsnavi(
		normalize.NewDateParser(loc, logger),
		normalize.NewCleaner(cfg.Crawler.ExtraAdStrings),
		a.clock,
		logger,
	)
	limiter := ratelimit.New(ratelimit.Config{HostQPS: cfg.Fetch.HostQPS, HostBurst: cfg.Fetch.HostBurst})
	pacer := ratelimit.NewPoliteness(cfg.Fetch.DelayMin, cfg.Fetch.DelayMax, limiter)

	browser := o.browser
	if browser == nil {
		browser = a.openBrowser
	}
	var static fetcher.DriverOpener
	if cfg.Fetch.StaticDriver {
		static = fetcher.Escalate(a.openStatic, browser, detector.NewHeuristic(0).ShouldPromote, logger.Named("fetch"))
	}
	sessions := fetcher.NewFactory(fetcher.Route(browser, static), cfg.RetryPolicy(), pacer, logger.Named("fetch"))

	var orchOpts []orchestrator.Option
	if snapshots != nil {
		orchOpts = append(orchOpts, orchestrator.WithSnapshots(snapshots, sha256.New()))
	}
	orch := orchestrator.New(
		orchestrator.Config{MaxPagesDefault: cfg.Crawler.MaxPagesDefault, Location: loc},
		a.registry,
		sessions,
		extractor,
		a.clock,
		logger.Named("orchestrator"),
		orchOpts...,
	)

	a.events = sinks.NewRecent(cfg.Progress.RecentEvents)
	hub := progress.NewHub(progress.Config{
		BufferSize: cfg.Progress.BufferSize,
		Logger:     logger.Named("progress"),
	}, sinks.NewLogSink(logger.Named("progress")), a.events)
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hub.Close(ctx)
	})

	a.coordinator = coordinator.New(
		coordinator.Config{
			MaxConcurrent:   cfg.Crawler.MaxConcurrent,
			SequentialDelay: cfg.Crawler.SequentialDelay,
			BatchSize:       cfg.Crawler.BatchSize,
			ReportTopic:     cfg.Report.Topic,
		},
		orch,
		a.store,
		publisher,
		uuid.New(),
		a.clock,
		logger.Named("coordinator"),
		coordinator.WithProgress(hub),
	)

	logger.Info("application services initialized",
		zap.Int("sources", a.registry.Len()),
		zap.String("snapshot_backend", cfg.Snapshot.Backend),
		zap.String("report_backend", cfg.Report.Backend),
		zap.Bool("postgres", a.postgres != nil),
	)
	return a, nil
}

func (a *App) initStore(ctx context.Context, override Store) error {
	if override != nil {
		a.store = override
		return nil
	}
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("db.dsn not set, articles are kept in memory only")
		a.store = memorystorage.NewArticleStore(nil)
		return nil
	}
	pg, err := postgres.NewArticleStore(ctx, postgres.ArticleStoreConfig{
		DSN:             a.cfg.DB.DSN,
		Table:           a.cfg.DB.Table,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	}, a.logger.Named("postgres"))
	if err != nil {
		return fmt.Errorf("init article store: %w", err)
	}
	a.postgres = pg
	a.store = pg
	a.closers = append(a.closers, func() error { pg.Close(); return nil })
	return nil
}

func (a *App) newSnapshotStore(ctx context.Context) (crawler.BlobStore, error) {
	cfg := a.cfg.Snapshot
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return memorystorage.NewBlobStore(), nil
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local snapshots: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init gcs snapshots: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

func (a *App) newPublisher(ctx context.Context) (crawler.Publisher, error) {
	cfg := a.cfg.Report
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return memorypublisher.New(), nil
	case "pubsub":
		pub, err := pubsubpublisher.New(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown report backend %q", cfg.Backend)
	}
}

func (a *App) openBrowser(ctx context.Context, def source.Definition) (fetcher.Driver, error) {
	return headless.Open(ctx, headless.Config{
		PageLoadTimeout: a.cfg.Fetch.PageLoadTimeout,
		ReadyTimeout:    a.cfg.Fetch.ReadyTimeout,
		UserAgent:       a.cfg.Fetch.UserAgent,
		RemoteURL:       a.cfg.Fetch.RemoteURL,
		ExecPath:        a.cfg.Fetch.ExecPath,
	}, def.RequiresScripting, a.logger.Named("browser"))
}

func (a *App) openStatic(context.Context, source.Definition) (fetcher.Driver, error) {
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Fetch.UserAgent,
		Timeout:   a.cfg.Fetch.PageLoadTimeout,
	}), nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Registry returns the source registry.
func (a *App) Registry() *source.Registry { return a.registry }

// Coordinator returns the run coordinator.
func (a *App) Coordinator() *coordinator.Coordinator { return a.coordinator }

// Events returns the recent progress events window.
func (a *App) Events() *sinks.Recent { return a.events }

// Store returns the article store.
func (a *App) Store() Store { return a.store }

// Migrate creates the articles table and indexes.
func (a *App) Migrate(ctx context.Context) error {
	if a.postgres == nil {
		return ErrNoDatabase
	}
	return a.postgres.EnsureSchema(ctx)
}

// Prune deletes articles published more than db.retention_months ago and
// returns the cutoff used.
func (a *App) Prune(ctx context.Context) (int64, time.Time, error) {
	cutoff := a.clock.Now().AddDate(0, -a.cfg.DB.RetentionMonths, 0)
	n, err := a.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return 0, cutoff, fmt.Errorf("prune articles: %w", err)
	}
	return n, cutoff, nil
}

// Server builds the ops HTTP server. Background runs are parented to ctx.
func (a *App) Server(ctx context.Context) *api.Server {
	var pinger api.Pinger
	if a.postgres != nil {
		pinger = a.postgres
	}
	return api.NewServer(a.coordinator, pinger, a.registry, api.Options{
		Mode:        crawler.Mode(a.cfg.Crawler.Mode),
		Location:    a.cfg.Location(),
		Events:      a.events,
		BaseContext: ctx,
	}, a.logger)
}

// Close releases every service. It is safe to call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close service failed", zap.Error(err))
		}
	}
	a.closers = nil
}
