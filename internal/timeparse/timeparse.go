// Package timeparse parses the many timestamp shapes carrier sites print.
package timeparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultLayouts are tried after any caller-supplied layouts.
var DefaultLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006.01.02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-Jan-2006 15:04",
	"02 Jan 2006 15:04",
	"Jan 2, 2006 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"02/01/2006",
	"02-Jan-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"2-Jan-2006",
}

// Parser holds the layouts and location used for strings without zone information.
type Parser struct {
	layouts  []string
	location *time.Location
}

// New builds a parser trying layouts first, then DefaultLayouts. A nil loc means UTC.
func New(loc *time.Location, layouts ...string) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	all := make([]string, 0, len(layouts)+len(DefaultLayouts))
	all = append(all, layouts...)
	all = append(all, DefaultLayouts...)
	return &Parser{layouts: all, location: loc}
}

// Parse accepts RFC3339 (with zone), unix epoch seconds or milliseconds, and the configured layouts.
func (p *Parser) Parse(raw string) (time.Time, error) {
	s := normalize(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, ok := parseEpoch(s); ok {
		return t.In(p.location), nil
	}
	for _, layout := range p.layouts {
		if t, err := time.ParseInLocation(layout, s, p.location); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unsupported timestamp %q", raw)
}

// Parse is a convenience for one-off UTC parsing with the default layouts.
func Parse(raw string) (time.Time, error) {
	return New(time.UTC).Parse(raw)
}

func normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Join(strings.Fields(s), " ")
	return s
}

func parseEpoch(s string) (time.Time, bool) {
	if len(s) < 10 {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	if len(s) >= 13 {
		return time.UnixMilli(n), true
	}
	return time.Unix(n, 0), true
}
