// Package reldate resolves relative publication dates such as "3 days ago".
//
// Months are 30 days and years 365 days. Recency comparisons across runs
// depend on these fixed lengths, so they are not calendar-accurate.
package reldate

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

var (
	countPattern   = regexp.MustCompile(`\d+`)
	articlePattern = regexp.MustCompile(`(?i)\ban?\b`)
)

var units = []struct {
	word string
	unit time.Duration
}{
	{word: "second", unit: time.Second},
	{word: "minute", unit: time.Minute},
	{word: "hour", unit: time.Hour},
	{word: "day", unit: Day},
	{word: "week", unit: Week},
	{word: "month", unit: Month},
	{word: "year", unit: Year},
}

// Resolve converts phrases like "2 days ago" or "an hour ago" to an absolute
// time by subtracting from now. It returns ok == false for anything it does
// not recognize.
func Resolve(phrase string, now time.Time) (time.Time, bool) {
	text := strings.ToLower(strings.TrimSpace(phrase))
	if text == "" {
		return time.Time{}, false
	}

	for _, u := range units {
		if !strings.Contains(text, u.word) {
			continue
		}

		count, ok := quantity(text)
		if !ok || int64(count) > math.MaxInt64/int64(u.unit) {
			return time.Time{}, false
		}

		return now.Add(-time.Duration(count) * u.unit), true
	}

	return time.Time{}, false
}

func quantity(text string) (int, bool) {
	if digits := countPattern.FindString(text); digits != "" {
		n, err := strconv.Atoi(digits)
		if err != nil || n < 0 {
			return 0, false
		}

		return n, true
	}

	if articlePattern.MatchString(text) {
		return 1, true
	}

	return 0, false
}
