// Package util provides small string and number helpers shared by the template formats.
package util

import (
	"fmt"
	"strconv"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// ParseIntList parses a comma-separated list of integers such as "8,9,30,31".
// Blank items are skipped; an empty string yields a nil slice.
func ParseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q in list %q", part, s)
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatIntList joins integers with commas and no brackets.
func FormatIntList(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// ParseFloatList parses a comma-separated list of floats, skipping blank items.
func ParseFloatList(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q in list %q", part, s)
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatFloat renders f with the shortest representation that parses back exactly.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
