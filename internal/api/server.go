package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/metrics"
	"github.com/JakeFAU/sportsnavi-harvester/internal/progress"
	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
)

// Runner executes crawl runs and remembers the latest report.
type Runner interface {
	Run(ctx context.Context, mode crawler.Mode, jobs []crawler.CrawlJob) crawler.RunReport
	Latest() (crawler.RunReport, bool)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EventLister returns retained progress events, optionally for one run.
type EventLister interface {
	Events(runID string) []progress.Event
}

// Options carries the defaults applied to runs started over HTTP.
type Options struct {
	Mode         crawler.Mode
	Location     *time.Location
	ReadyTimeout time.Duration
	// Events backs GET /v1/runs/events. The route answers 404 when nil.
	Events EventLister

	// BaseContext parents background runs. Cancel it to stop them on shutdown.
	BaseContext context.Context
}

// Server wires HTTP handlers to the coordinator and its dependencies.
type Server struct {
	router   chi.Router
	runner   Runner
	pinger   Pinger
	registry *source.Registry
	opts     Options
	logger   *zap.Logger

	running atomic.Bool
	runs    sync.WaitGroup
}

// NewServer constructs a Server with middleware and routes. pinger may be nil
// when no database is configured.
func NewServer(runner Runner, pinger Pinger, registry *source.Registry, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = crawler.ModeConcurrent
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 3 * time.Second
	}
	s := &Server{
		runner:   runner,
		pinger:   pinger,
		registry: registry,
		opts:     opts,
		logger:   logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sources", s.listSources)
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.startRun)
			r.Get("/latest", s.latestRun)
			r.Get("/events", s.runEvents)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Wait blocks until runs started over HTTP have finished.
func (s *Server) Wait() {
	s.runs.Wait()
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.ReadyTimeout)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "article store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.registry.All()})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
