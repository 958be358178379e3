package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSource is returned when a job names a source that is not registered.
	ErrUnknownSource = errors.New("unknown source")
	// ErrExtractionEmpty signals a page that held no usable content.
	ErrExtractionEmpty = errors.New("extraction yielded no content")
	// ErrTimeout marks a navigation that ran past its page-load deadline.
	ErrTimeout = errors.New("navigation timed out")
	// ErrConnection marks a navigation that could not reach the host.
	ErrConnection = errors.New("connection failed")
	// ErrSessionClosed is returned by Fetch after Close.
	ErrSessionClosed = errors.New("session closed")
)

// FetchError is returned once a page could not be loaded within the retry budget.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError describes malformed input for a single field. The field falls
// back to a default and processing continues.
type ParseError struct {
	Field string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse %s %q", e.Field, e.Input)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IngestionError wraps a failed write of one record or batch.
type IngestionError struct {
	URL string
	Err error
}

func (e *IngestionError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("ingest batch: %v", e.Err)
	}
	return fmt.Sprintf("ingest %s: %v", e.URL, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// OrchestrationError captures a failure that ended one source's run.
type OrchestrationError struct {
	SourceID string
	Err      error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("source %s: %v", e.SourceID, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }
