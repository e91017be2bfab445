// Package size handles human-readable file sizes such as "45.3 GB".
package size

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Undefined is the sentinel stored when no size could be determined.
const Undefined = "Undefined"

const (
	bytesPerMB = 1 << 20
	bytesPerGB = 1 << 30
)

var pattern = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*(KB|MB|GB|TB)\s*$`)

// Size is a parsed human size.
type Size struct {
	Value float64
	Unit  string
}

// Parse parses "<value> <unit>" where unit is KB, MB, GB or TB (case-insensitive).
func Parse(s string) (Size, error) {
	match := pattern.FindStringSubmatch(s)
	if match == nil {
		return Size{}, fmt.Errorf("unrecognized size %q", s)
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return Size{}, fmt.Errorf("size value %q: %w", match[1], err)
	}

	return Size{Value: value, Unit: strings.ToUpper(match[2])}, nil
}

// MB returns the size in megabytes (1 GB = 1024 MB).
func (s Size) MB() float64 {
	switch s.Unit {
	case "KB":
		return s.Value / 1024
	case "GB":
		return s.Value * 1024
	case "TB":
		return s.Value * 1024 * 1024
	default:
		return s.Value
	}
}

func (s Size) String() string {
	return strconv.FormatFloat(s.Value, 'f', -1, 64) + " " + s.Unit
}

// Compare compares two size strings after normalizing both to megabytes.
// It returns -1, 0 or +1.
func Compare(a, b string) (int, error) {
	left, err := Parse(a)
	if err != nil {
		return 0, err
	}

	right, err := Parse(b)
	if err != nil {
		return 0, err
	}

	return cmp.Compare(left.MB(), right.MB()), nil
}

// Largest returns the largest parseable size among sizes.
func Largest(sizes []string) (string, bool) {
	var (
		best    string
		bestMB  float64
		matched bool
	)

	for _, candidate := range sizes {
		parsed, err := Parse(candidate)
		if err != nil {
			continue
		}

		if !matched || parsed.MB() > bestMB {
			best, bestMB, matched = candidate, parsed.MB(), true
		}
	}

	return best, matched
}

// FromBytes formats a byte count as "x.xx GB" above one gibibyte and "x.xx MB" otherwise.
func FromBytes(n int64) string {
	if n > bytesPerGB {
		return fmt.Sprintf("%.2f GB", float64(n)/bytesPerGB)
	}

	return fmt.Sprintf("%.2f MB", float64(n)/bytesPerMB)
}
