package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/sportsnavi-harvester/internal/progress"
)

const defaultRecentCapacity = 500

// Recent keeps the newest events in a fixed-size ring.
type Recent struct {
	mu     sync.RWMutex
	buf    []progress.Event
	next   int
	filled bool
}

// NewRecent returns a ring holding up to capacity events.
func NewRecent(capacity int) *Recent {
	if capacity <= 0 {
		capacity = defaultRecentCapacity
	}
	return &Recent{buf: make([]progress.Event, capacity)}
}

// Consume appends batch, overwriting the oldest events once full.
func (r *Recent) Consume(_ context.Context, batch []progress.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, evt := range batch {
		r.buf[r.next] = evt
		r.next = (r.next + 1) % len(r.buf)
		if r.next == 0 {
			r.filled = true
		}
	}
	return nil
}

// Close is a no-op; events stay readable after the hub stops.
func (r *Recent) Close(context.Context) error {
	return nil
}

// Events returns retained events oldest first. A non-empty runID keeps only
// that run's events.
func (r *Recent) Events(runID string) []progress.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ordered []progress.Event
	if r.filled {
		ordered = append(ordered, r.buf[r.next:]...)
	}
	ordered = append(ordered, r.buf[:r.next]...)

	out := make([]progress.Event, 0, len(ordered))
	for _, evt := range ordered {
		if runID == "" || evt.RunID == runID {
			out = append(out, evt)
		}
	}
	return out
}
