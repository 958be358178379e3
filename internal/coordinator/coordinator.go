// Package coordinator runs batches of source crawls, concurrently or one at
// a time, ingests their articles, and aggregates a run report.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/logging"
	"github.com/JakeFAU/sportsnavi-harvester/internal/metrics"
	"github.com/JakeFAU/sportsnavi-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/sportsnavi-harvester/internal/progress"
	"github.com/JakeFAU/sportsnavi-harvester/internal/queue/memory"
)

// Config controls scheduling and ingestion.
type Config struct {
	MaxConcurrent   int
	SequentialDelay time.Duration
	BatchSize       int
	// ReportTopic receives each finished report when a publisher is set.
	ReportTopic string
}

// Coordinator implements the execution modes over a crawler.Crawler.
type Coordinator struct {
	cfg       Config
	crawler   crawler.Crawler
	store     crawler.ArticleStore
	publisher crawler.Publisher
	ids       crawler.IDGenerator
	clock     crawler.Clock
	logger    *zap.Logger
	sleep     func(context.Context, time.Duration) error
	progress  progress.Emitter

	mu     sync.RWMutex
	latest *crawler.RunReport
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithProgress emits run and source milestones to e.
func WithProgress(e progress.Emitter) Option {
	return func(c *Coordinator) { c.progress = e }
}

// New constructs a Coordinator. publisher may be nil.
func New(
	cfg Config,
	c crawler.Crawler,
	store crawler.ArticleStore,
	publisher crawler.Publisher,
	ids crawler.IDGenerator,
	clock crawler.Clock,
	logger *zap.Logger,
	opts ...Option,
) *Coordinator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	co := &Coordinator{
		cfg:       cfg,
		crawler:   c,
		store:     store,
		publisher: publisher,
		ids:       ids,
		clock:     clock,
		logger:    logger,
		sleep:     ratelimit.Sleep,
	}
	for _, opt := range opts {
		opt(co)
	}
	return co
}

type task struct {
	index int
	job   crawler.CrawlJob
}

type result struct {
	index   int
	outcome crawler.CrawlOutcome
}

// Run executes jobs in the given mode and returns the report. Outcomes keep
// the order of jobs. One job's failure never affects another.
func (c *Coordinator) Run(ctx context.Context, mode crawler.Mode, jobs []crawler.CrawlJob) crawler.RunReport {
	report := crawler.RunReport{
		RunID:     c.newRunID(),
		Mode:      mode,
		StartedAt: c.now(),
	}
	logger := c.logger.With(zap.String("run_id", report.RunID), zap.String("mode", string(mode)))
	logger.Info("crawl run starting", zap.Int("sources", len(jobs)))
	c.emit(progress.Event{RunID: report.RunID, TS: report.StartedAt, Stage: progress.StageRunStart})

	var outcomes []*crawler.CrawlOutcome
	switch mode {
	case crawler.ModeSequential:
		outcomes = c.runSequential(ctx, report.RunID, jobs, logger)
	default:
		outcomes = c.runConcurrent(ctx, report.RunID, jobs, logger)
	}

	report.Outcomes = make([]crawler.CrawlOutcome, len(jobs))
	for i, o := range outcomes {
		if o == nil {
			cause := context.Cause(ctx)
			if cause == nil {
				cause = errors.New("not started")
			}
			o = &crawler.CrawlOutcome{
				SourceID: jobs[i].SourceID,
				Status:   crawler.OutcomeFailed,
				Error:    fmt.Sprintf("not started: %v", cause),
			}
		}
		report.Outcomes[i] = *o
		if o.Status == crawler.OutcomeSuccess {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.TotalArticles += o.ArticleCount
	}
	report.FinishedAt = c.now()

	c.mu.Lock()
	c.latest = &report
	c.mu.Unlock()

	logger.Info("crawl run finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("total_articles", report.TotalArticles),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	c.emit(progress.Event{
		RunID:    report.RunID,
		TS:       report.FinishedAt,
		Stage:    progress.StageRunDone,
		Articles: report.TotalArticles,
		Dur:      max(report.FinishedAt.Sub(report.StartedAt), 0),
		Note:     fmt.Sprintf("%d succeeded, %d failed", report.Succeeded, report.Failed),
	})
	c.publish(ctx, report, logger)
	return report
}

// Latest returns the most recent report, if any run has finished.
func (c *Coordinator) Latest() (crawler.RunReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return crawler.RunReport{}, false
	}
	return *c.latest, true
}

func (c *Coordinator) runSequential(ctx context.Context, runID string, jobs []crawler.CrawlJob, logger *zap.Logger) []*crawler.CrawlOutcome {
	outcomes := make([]*crawler.CrawlOutcome, len(jobs))
	for i, job := range jobs {
		if i > 0 && c.cfg.SequentialDelay > 0 {
			if err := c.sleep(ctx, c.cfg.SequentialDelay); err != nil {
				logger.Warn("sequential run interrupted", zap.Error(err))
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		outcome := c.runJob(ctx, runID, job, logger)
		outcomes[i] = &outcome
	}
	return outcomes
}

func (c *Coordinator) runConcurrent(ctx context.Context, runID string, jobs []crawler.CrawlJob, logger *zap.Logger) []*crawler.CrawlOutcome {
	outcomes := make([]*crawler.CrawlOutcome, len(jobs))
	if len(jobs) == 0 {
		return outcomes
	}

	queue := memory.NewQueue[task](len(jobs))
	for i, job := range jobs {
		if err := queue.Enqueue(ctx, task{index: i, job: job}); err != nil {
			logger.Warn("enqueue failed", zap.String("source", job.SourceID), zap.Error(err))
		}
	}
	queue.Close()

	workers := min(c.cfg.MaxConcurrent, len(jobs))
	results := make(chan result, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				t, err := queue.Dequeue(ctx)
				if err != nil {
					return
				}
				results <- result{index: t.index, outcome: c.runJob(ctx, runID, t.job, logger)}
			}
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		outcome := r.outcome
		outcomes[r.index] = &outcome
	}
	return outcomes
}

// runJob crawls and ingests one source, converting any error or panic into
// a failed outcome.
func (c *Coordinator) runJob(ctx context.Context, runID string, job crawler.CrawlJob, logger *zap.Logger) (out crawler.CrawlOutcome) {
	start := c.now()
	out = crawler.CrawlOutcome{SourceID: job.SourceID}
	c.emit(progress.Event{RunID: runID, TS: start, Stage: progress.StageSourceStart, SourceID: job.SourceID})
	logger = logging.ForSource(logger, job.SourceID)
	metrics.IncActiveCrawlers()
	defer metrics.DecActiveCrawlers()

	defer func() {
		if r := recover(); r != nil {
			err := &crawler.OrchestrationError{SourceID: job.SourceID, Err: fmt.Errorf("panic: %v", r)}
			logger.Error("source crawl panicked", zap.Error(err))
			out.Status = crawler.OutcomeFailed
			out.Error = err.Error()
		}
		out.Duration = c.now().Sub(start)
		metrics.ObserveCrawlOutcome(job.SourceID, string(out.Status), out.Duration)
		c.emitOutcome(runID, out)
	}()

	articles, err := c.crawler.Crawl(ctx, job)
	out.ArticleCount = len(articles)
	if len(articles) > 0 {
		res, ierr := c.store.UpsertBatch(ctx, articles, c.cfg.BatchSize)
		out.Inserted, out.Updated, out.Skipped = res.Inserted, res.Updated, res.Skipped
		metrics.ObserveIngest(job.SourceID, res.Inserted, res.Updated, res.Skipped)
		if ierr != nil && err == nil {
			err = ierr
		}
	}

	if err != nil {
		out.Status = crawler.OutcomeFailed
		out.Error = err.Error()
		logger.Error("source crawl failed", zap.Int("articles", out.ArticleCount), zap.Error(err))
		return out
	}
	out.Status = crawler.OutcomeSuccess
	logger.Info("source crawl succeeded",
		zap.Int("articles", out.ArticleCount),
		zap.Int("inserted", out.Inserted),
		zap.Int("updated", out.Updated),
		zap.Int("skipped", out.Skipped),
	)
	return out
}

func (c *Coordinator) emitOutcome(runID string, out crawler.CrawlOutcome) {
	stage := progress.StageSourceDone
	if out.Status != crawler.OutcomeSuccess {
		stage = progress.StageSourceError
	}
	c.emit(progress.Event{
		RunID:    runID,
		TS:       c.now(),
		Stage:    stage,
		SourceID: out.SourceID,
		Articles: out.ArticleCount,
		Inserted: out.Inserted,
		Dur:      max(out.Duration, 0),
		Note:     out.Error,
	})
}

func (c *Coordinator) emit(evt progress.Event) {
	if c.progress != nil {
		c.progress.Emit(evt)
	}
}

func (c *Coordinator) publish(ctx context.Context, report crawler.RunReport, logger *zap.Logger) {
	if c.publisher == nil || c.cfg.ReportTopic == "" {
		return
	}
	id, err := c.publisher.Publish(ctx, c.cfg.ReportTopic, report)
	if err != nil {
		logger.Warn("publish run report failed", zap.String("topic", c.cfg.ReportTopic), zap.Error(err))
		return
	}
	logger.Debug("run report published", zap.String("message_id", id))
}

func (c *Coordinator) newRunID() string {
	if c.ids != nil {
		id, err := c.ids.NewID()
		if err == nil {
			return id
		}
		c.logger.Warn("generate run id failed", zap.Error(err))
	}
	return fmt.Sprintf("run-%d", c.now().UnixNano())
}

func (c *Coordinator) now() time.Time {
	if c.clock != nil {
		return c.clock.Now()
	}
	return time.Now()
}
