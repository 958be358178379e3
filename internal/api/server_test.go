package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/progress"
	"github.com/JakeFAU/sportsnavi-harvester/internal/source"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]crawler.CrawlJob
	modes   []crawler.Mode
	latest  *crawler.RunReport
	release chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, mode crawler.Mode, jobs []crawler.CrawlJob) crawler.RunReport {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, jobs)
	f.modes = append(f.modes, mode)
	report := crawler.RunReport{RunID: "run-1", Mode: mode, Succeeded: len(jobs)}
	f.latest = &report
	return report
}

func (f *fakeRunner) Latest() (crawler.RunReport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return crawler.RunReport{}, false
	}
	return *f.latest, true
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func testRegistry(t *testing.T) *source.Registry {
	t.Helper()
	reg, err := source.NewRegistry([]source.Definition{
		{ID: "npb", BaseURL: "https://baseball.example.jp/npb/", CategoryLabel: "NPB"},
		{ID: "mlb", BaseURL: "https://baseball.example.jp/mlb/", CategoryLabel: "MLB"},
	})
	require.NoError(t, err)
	return reg
}

func newTestServer(t *testing.T, runner *fakeRunner, pinger Pinger) *Server {
	t.Helper()
	jst := time.FixedZone("JST", 9*60*60)
	return NewServer(runner, pinger, testRegistry(t), Options{Location: jst}, zap.NewNop())
}

func serve(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(newTestServer(t, &fakeRunner{}, nil), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServerReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pinger Pinger
		want   int
	}{
		{name: "no database", pinger: nil, want: http.StatusOK},
		{name: "database up", pinger: fakePinger{}, want: http.StatusOK},
		{name: "database down", pinger: fakePinger{err: errors.New("connection refused")}, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(newTestServer(t, &fakeRunner{}, tt.pinger), http.MethodGet, "/readyz", nil)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServerMetrics(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeRunner{}, nil)
	serve(s, http.MethodGet, "/healthz", nil)
	rec := serve(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServerListSources(t *testing.T) {
	t.Parallel()

	rec := serve(newTestServer(t, &fakeRunner{}, nil), http.MethodGet, "/v1/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Sources []source.Definition `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sources, 2)
	require.Equal(t, "npb", body.Sources[0].ID)
}

func TestServerLatestRun(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	s := newTestServer(t, runner, nil)

	rec := serve(s, http.MethodGet, "/v1/runs/latest", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	runner.Run(context.Background(), crawler.ModeSequential, []crawler.CrawlJob{{SourceID: "npb"}})
	rec = serve(s, http.MethodGet, "/v1/runs/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Run crawler.RunReport `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "run-1", body.Run.RunID)
	require.Equal(t, 1, body.Run.Succeeded)
}

func TestServerStartRun(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	s := newTestServer(t, runner, nil)

	body := []byte(`{"sources":["mlb"],"mode":"sequential","start_date":"2025-01-04","end_date":"2025-01-05","max_pages":2}`)
	rec := serve(s, http.MethodPost, "/v1/runs", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	s.Wait()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.calls, 1)
	require.Equal(t, crawler.ModeSequential, runner.modes[0])
	job := runner.calls[0][0]
	require.Equal(t, "mlb", job.SourceID)
	require.Equal(t, 2, *job.MaxPages)
	require.Equal(t, "2025-01-04", job.StartDate.Format(time.DateOnly))
	require.Equal(t, 9*60*60, func() int { _, off := job.StartDate.Zone(); return off }())
}

func TestServerStartRunDefaultsToAllSources(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	s := newTestServer(t, runner, nil)

	rec := serve(s, http.MethodPost, "/v1/runs", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	s.Wait()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.calls[0], 2)
	require.Equal(t, crawler.ModeConcurrent, runner.modes[0])
}

func TestServerStartRunRejectsBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "invalid json", body: "{", want: "invalid JSON"},
		{name: "unknown source", body: `{"sources":["cricket"]}`, want: "unknown source"},
		{name: "unknown mode", body: `{"mode":"parallel"}`, want: "unknown mode"},
		{name: "bad date", body: `{"start_date":"2025/01/04"}`, want: "start_date"},
		{name: "inverted window", body: `{"start_date":"2025-01-05","end_date":"2025-01-04"}`, want: "before start date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(newTestServer(t, &fakeRunner{}, nil), http.MethodPost, "/v1/runs", []byte(tt.body))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestServerStartRunConflict(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{release: make(chan struct{})}
	s := newTestServer(t, runner, nil)

	require.Equal(t, http.StatusAccepted, serve(s, http.MethodPost, "/v1/runs", nil).Code)
	require.Equal(t, http.StatusConflict, serve(s, http.MethodPost, "/v1/runs", nil).Code)

	close(runner.release)
	s.Wait()
	require.Equal(t, http.StatusAccepted, serve(s, http.MethodPost, "/v1/runs", nil).Code)
	s.Wait()
}

func TestServerRecoversPanics(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeRunner{}, nil)
	s.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := serve(s, http.MethodGet, "/boom", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeEvents []progress.Event

func (f fakeEvents) Events(runID string) []progress.Event {
	var out []progress.Event
	for _, evt := range f {
		if runID == "" || evt.RunID == runID {
			out = append(out, evt)
		}
	}
	return out
}

func TestServerRunEvents(t *testing.T) {
	t.Parallel()

	disabled := newTestServer(t, &fakeRunner{}, nil)
	require.Equal(t, http.StatusNotFound, serve(disabled, http.MethodGet, "/v1/runs/events", nil).Code)

	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	events := fakeEvents{
		{RunID: "run-1", TS: ts, Stage: progress.StageRunStart},
		{RunID: "run-2", TS: ts, Stage: progress.StageSourceStart, SourceID: "npb"},
	}
	s := NewServer(&fakeRunner{}, nil, testRegistry(t), Options{Events: events}, zap.NewNop())

	tests := []struct {
		path string
		want int
	}{
		{path: "/v1/runs/events", want: 2},
		{path: "/v1/runs/events?run_id=run-2", want: 1},
		{path: "/v1/runs/events?run_id=run-3", want: 0},
	}
	for _, tt := range tests {
		rec := serve(s, http.MethodGet, tt.path, nil)
		require.Equal(t, http.StatusOK, rec.Code, tt.path)
		var body struct {
			Events []progress.Event `json:"events"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Events, tt.want, tt.path)
	}
}
