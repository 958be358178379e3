package orchestrator

import (
	"sync"
	"time"
)

type verdict int

const (
	verdictUnknown verdict = iota
	verdictInRange
	verdictOutOfRange
)

// dateWindow is an inclusive [start, end] range of calendar days in loc.
// A nil bound is open.
type dateWindow struct {
	start *time.Time
	end   *time.Time
	loc   *time.Location
}

func newDateWindow(start, end *time.Time, loc *time.Location) dateWindow {
	if loc == nil {
		loc = time.UTC
	}
	w := dateWindow{loc: loc}
	if start != nil {
		d := day(*start, loc)
		w.start = &d
	}
	if end != nil {
		d := day(*end, loc)
		w.end = &d
	}
	return w
}

func (w dateWindow) classify(published *time.Time) verdict {
	if published == nil || published.IsZero() {
		return verdictUnknown
	}
	d := day(*published, w.loc)
	if w.start != nil && d.Before(*w.start) {
		return verdictOutOfRange
	}
	if w.end != nil && d.After(*w.end) {
		return verdictOutOfRange
	}
	return verdictInRange
}

func day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// visitTracker remembers article URLs already handled in one job.
type visitTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newVisitTracker() *visitTracker {
	return &visitTracker{seen: make(map[string]struct{})}
}

// mark records url and reports whether it was new.
func (v *visitTracker) mark(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[url]; ok {
		return false
	}
	v.seen[url] = struct{}{}
	return true
}
