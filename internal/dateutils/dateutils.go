// Package dateutils provides date parsing for bank statement feeds.
package dateutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DayFirstFormats are the formats tried, in order, when parsing feed
// dates. Bank exports are day/month/year, so day-first layouts come
// before the ISO fallback.
var DayFirstFormats = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"2-1-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"2006-01-02",
}

var spaceRe = regexp.MustCompile(`\s+`)

// Clean trims and collapses whitespace in a date string.
func Clean(dateStr string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(dateStr), " ")
}

// ParseDayFirstFormats parses a statement date string using the given
// layouts in order and normalizes the result to UTC midnight.
func ParseDayFirstFormats(dateStr string, formats []string) (time.Time, error) {
	cleaned := Clean(dateStr)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, format := range formats {
		if t, err := time.Parse(format, cleaned); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
