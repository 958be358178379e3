// Package normalize converts scraped strings into canonical article fields.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// flexibleLayouts are tried in order; the first match wins. Day/month-first
// numeric layouts come before month/day-first ones.
var flexibleLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2/1/2006",
	"1/2/2006",
}

// trailerMarkers cut off "updated at" style suffixes appended to bylines.
var trailerMarkers = []string{"|", "Updated", "發布", "更新"}

var parenthetical = regexp.MustCompile(`\([^)]*\)`)

// DateParser parses dates in a fixed location and logs unparseable input.
type DateParser struct {
	loc    *time.Location
	logger *zap.Logger
}

// NewDateParser builds a parser. A nil location means UTC.
func NewDateParser(loc *time.Location, logger *zap.Logger) *DateParser {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DateParser{loc: loc, logger: logger}
}

// Location returns the zone parsed values are interpreted in.
func (p *DateParser) Location() *time.Location {
	return p.loc
}

// ParseFlexible accepts the general-purpose layouts listed in flexibleLayouts.
func (p *DateParser) ParseFlexible(text string) (time.Time, bool) {
	cleaned := stripTrailers(text)
	if cleaned == "" {
		return time.Time{}, false
	}
	for _, layout := range flexibleLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, p.loc); err == nil {
			return t, true
		}
	}
	p.logger.Warn("unparseable date", zap.String("input", text), zap.String("parser", "flexible"))
	return time.Time{}, false
}

// ParseLocale accepts the site's short form: "Y/M/D H:M" or "M/D H:M" with an
// optional parenthetical weekday, e.g. "11/3(月) 12:00". Year-less dates take
// the year of now.
func (p *DateParser) ParseLocale(text string, now time.Time) (time.Time, bool) {
	t, ok := parseLocale(text, now, p.loc)
	if !ok {
		p.logger.Warn("unparseable date", zap.String("input", text), zap.String("parser", "locale"))
	}
	return t, ok
}

// Parse tries the site's short form first and falls back to the flexible
// layouts. Only a failure of both is logged.
func (p *DateParser) Parse(text string, now time.Time) (time.Time, bool) {
	if t, ok := parseLocale(text, now, p.loc); ok {
		return t, true
	}
	return p.ParseFlexible(text)
}

func stripTrailers(text string) string {
	s := text
	for _, marker := range trailerMarkers {
		if idx := strings.Index(s, marker); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func parseLocale(text string, now time.Time, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(parenthetical.ReplaceAllString(text, ""))
	if s == "" {
		return time.Time{}, false
	}
	datePart, timePart, _ := strings.Cut(s, " ")
	timePart = strings.TrimSpace(timePart)

	comps := strings.Split(datePart, "/")
	var year, month, day int
	var ok bool
	switch len(comps) {
	case 3:
		year, ok = atoi(comps[0])
		if !ok {
			return time.Time{}, false
		}
		comps = comps[1:]
	case 2:
		year = now.In(loc).Year()
	default:
		return time.Time{}, false
	}
	if month, ok = atoi(comps[0]); !ok {
		return time.Time{}, false
	}
	if day, ok = atoi(comps[1]); !ok {
		return time.Time{}, false
	}

	hour, minute := 0, 0
	if timePart != "" {
		hm := strings.Split(timePart, ":")
		if len(hm) != 2 {
			return time.Time{}, false
		}
		if hour, ok = atoi(hm[0]); !ok {
			return time.Time{}, false
		}
		if minute, ok = atoi(hm[1]); !ok {
			return time.Time{}, false
		}
	}
	if !validDate(year, month, day) || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc), true
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func validDate(year, month, day int) bool {
	if year < 1 || month < 1 || month > 12 || day < 1 {
		return false
	}
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return day <= last
}
