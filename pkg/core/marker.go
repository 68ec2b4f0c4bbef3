// pkg/core/marker.go
package core

import "gonum.org/v1/gonum/spatial/r3"

// MarkerIDKind tells which naming convention a marker identifier follows
type MarkerIDKind uint8

const (
	// MarkerIDNumeric is a zero-padded index such as "M007"
	MarkerIDNumeric MarkerIDKind = iota
	// MarkerIDLabel is a free-form label such as "marker_LHEE"
	MarkerIDLabel
)

func (k MarkerIDKind) String() string {
	switch k {
	case MarkerIDNumeric:
		return "numeric"
	case MarkerIDLabel:
		return "label"
	default:
		return "unknown"
	}
}

// MarkerSample is one tracked marker position at an evaluation instant
type MarkerSample struct {
	ID       string
	Position r3.Vec
}

// MarkerID is a parsed marker identifier
type MarkerID struct {
	Raw   string
	Kind  MarkerIDKind
	Index int    // valid when Kind == MarkerIDNumeric
	Label string // label without its prefix when Kind == MarkerIDLabel
}
