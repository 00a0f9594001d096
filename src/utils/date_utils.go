package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04:05"
)

var tradeDateLayouts = []string{
	DateFormat,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
}

// ParseTradeDate parses the date strings found in persisted trade records
// (plain dates, ISO datetimes with or without zone).
func ParseTradeDate(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	for _, layout := range tradeDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized trade date %q", dateStr)
}

// DatePart returns the YYYY-MM-DD portion of a date or datetime string.
func DatePart(dateStr string) string {
	s := strings.TrimSpace(dateStr)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	return s
}

// CombineDateTime joins a trade date with an optional HH:MM[:SS] time.
func CombineDateTime(dateStr, timeStr string) (time.Time, error) {
	d, err := ParseTradeDate(dateStr)
	if err != nil {
		return time.Time{}, err
	}
	ts := strings.TrimSpace(timeStr)
	if ts == "" {
		return d, nil
	}
	for _, layout := range []string{TimeFormat, "15:04"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, d.Location()), nil
		}
	}
	return d, nil
}
