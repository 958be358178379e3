// Package detector decides when a statically fetched page is only a script
// shell and must be rendered in a browser instead.
package detector

import (
	"strings"
)

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
	// ContentMarkers short-circuit promotion: a page holding any of them
	// already carries usable markup or state.
	ContentMarkers []string
}

// DefaultContentMarkers match the list sections and the embedded article
// state of the Sportsnavi templates.
var DefaultContentMarkers = []string{
	"__PRELOADED_STATE__",
	"sn-modTimeLine",
	"sn-modListPickupAdvanced",
	"sn-articlePickup",
}

// NewHeuristic creates a new detector. A zero threshold means 2048 bytes.
func NewHeuristic(threshold int, markers ...string) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	if len(markers) == 0 {
		markers = DefaultContentMarkers
	}
	return &Heuristic{BodyLengthThreshold: threshold, ContentMarkers: markers}
}

var spaMarkers = []string{
	"id=\"__next\"",
	"id=\"root\"",
	"id=\"app\"",
	"data-reactroot",
}

// ShouldPromote reports whether html looks like an unrendered client-side app.
func (h *Heuristic) ShouldPromote(html string) bool {
	if strings.TrimSpace(html) == "" {
		return true
	}
	for _, marker := range h.ContentMarkers {
		if strings.Contains(html, marker) {
			return false
		}
	}
	if len(html) < h.BodyLengthThreshold && scriptDensityHigh(html) {
		return true
	}
	for _, marker := range spaMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script elements cover a quarter or more
// of the document.
func scriptDensityHigh(html string) bool {
	lower := strings.ToLower(html)
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			covered += total - start
			break
		}
		bodyStart := start + tagEnd + 1
		next := total
		if end := strings.Index(lower[bodyStart:], closeTag); end != -1 {
			next = bodyStart + end + len(closeTag)
		}
		covered += next - start
		pos = next
	}
	return covered*100/total >= 25
}
