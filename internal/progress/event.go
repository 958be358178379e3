package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage names the milestone an Event records.
type Stage string

// Run and source stages, in the order a run emits them.
const (
	StageRunStart    Stage = "RUN_START"
	StageSourceStart Stage = "SOURCE_START"
	StageSourceDone  Stage = "SOURCE_DONE"
	StageSourceError Stage = "SOURCE_ERROR"
	StageRunDone     Stage = "RUN_DONE"
)

// Event is one milestone of a crawl run.
type Event struct {
	RunID    string        `json:"run_id"`
	TS       time.Time     `json:"ts"`
	Stage    Stage         `json:"stage"`
	SourceID string        `json:"source_id,omitempty"`
	Articles int           `json:"articles,omitempty"`
	Inserted int           `json:"inserted,omitempty"`
	Dur      time.Duration `json:"duration_ns,omitempty"`
	// Note carries low-volume context such as the error text.
	Note string `json:"note,omitempty"`
}

// Validate reports whether the event is complete enough to forward.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageSourceStart, StageSourceDone, StageSourceError:
		if e.SourceID == "" {
			return fmt.Errorf("%s requires a source id", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
