package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "M000", "M000"},
		{"double quoted", `"LHEE"`, "LHEE"},
		{"single quotes only", "'LHEE'", "'LHEE'"},
		{"quotes in middle", `LH"EE`, `LH"EE`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseIntList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []int
	}{
		{"empty", "", nil},
		{"single", "29", []int{29}},
		{"several", "8,9,30,31", []int{8, 9, 30, 31}},
		{"spaces and trailing comma", " 24, 25 ,26,", []int{24, 25, 26}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIntList(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIntList_Invalid(t *testing.T) {
	_, err := ParseIntList("8,x,9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"x"`)
}

func TestFormatIntList(t *testing.T) {
	assert.Equal(t, "", FormatIntList(nil))
	assert.Equal(t, "8,9,30,31", FormatIntList([]int{8, 9, 30, 31}))
}

func TestParseFloatList(t *testing.T) {
	got, err := ParseFloatList("9.6, -3.6,7.3")
	require.NoError(t, err)
	assert.Equal(t, []float64{9.6, -3.6, 7.3}, got)

	_, err = ParseFloatList("1,2,abc")
	assert.Error(t, err)
}

func TestFormatFloat_RoundTrips(t *testing.T) {
	for _, f := range []float64{0, 97.2, -10.55, 0.1 + 0.2, 1e-9} {
		got, err := ParseFloatList(FormatFloat(f))
		require.NoError(t, err)
		assert.Equal(t, []float64{f}, got)
	}
}
