package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/coordinator"
	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
	"github.com/JakeFAU/sportsnavi-harvester/internal/progress"
)

type runRequest struct {
	Sources   []string `json:"sources"`
	Mode      string   `json:"mode"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	MaxPages  *int     `json:"max_pages"`
}

// startRun handles POST /v1/runs. It answers 202 once the run is scheduled,
// 400 for a malformed request, and 409 while another run is in progress.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	mode, jobs, err := s.toJobs(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer s.running.Store(false)
		report := s.runner.Run(s.opts.BaseContext, mode, jobs)
		s.logger.Info("http-triggered run finished",
			zap.String("run_id", report.RunID),
			zap.Int("failed", report.Failed),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"mode":    mode,
		"sources": len(jobs),
	})
}

// latestRun handles GET /v1/runs/latest. It returns 404 until a run finishes.
func (s *Server) latestRun(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.runner.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no run has finished yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": report})
}

func (s *Server) toJobs(req runRequest) (crawler.Mode, []crawler.CrawlJob, error) {
	mode := s.opts.Mode
	if m := strings.TrimSpace(req.Mode); m != "" {
		mode = crawler.Mode(m)
		if mode != crawler.ModeConcurrent && mode != crawler.ModeSequential {
			return "", nil, fmt.Errorf("unknown mode %q", m)
		}
	}
	start, err := s.parseDate("start_date", req.StartDate)
	if err != nil {
		return "", nil, err
	}
	end, err := s.parseDate("end_date", req.EndDate)
	if err != nil {
		return "", nil, err
	}
	jobs, err := coordinator.BuildJobs(s.registry, coordinator.JobRequest{
		SourceIDs: req.Sources,
		StartDate: start,
		EndDate:   end,
		MaxPages:  req.MaxPages,
	})
	if err != nil {
		return "", nil, err
	}
	if len(jobs) == 0 {
		return "", nil, errors.New("no sources selected")
	}
	return mode, jobs, nil
}

func (s *Server) parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, s.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", field)
	}
	return &t, nil
}

// runEvents handles GET /v1/runs/events?run_id=.
func (s *Server) runEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Events == nil {
		writeError(w, http.StatusNotFound, "progress events are not enabled")
		return
	}
	events := s.opts.Events.Events(r.URL.Query().Get("run_id"))
	if events == nil {
		events = []progress.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
