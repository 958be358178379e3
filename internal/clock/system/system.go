// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements crawler.Clock, reporting times in a fixed location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock for loc. A nil loc means UTC.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}
