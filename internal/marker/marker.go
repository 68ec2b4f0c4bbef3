// Package marker handles marker identifiers, frames and discovery in a host scene.
package marker

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// MinimumCount is the marker count the fixed index tables assume.
const MinimumCount = 38

var ErrEmptyGroup = errors.New("centroid of empty marker group")

// Convention describes how markers are named in the host scene
type Convention struct {
	NumericPrefix string
	LabelPrefix   string
}

func DefaultConvention() Convention {
	return Convention{NumericPrefix: "M", LabelPrefix: "marker_"}
}

// Parse classifies name. Anything that is not prefix+digits is a label; the
// label prefix is stripped when present.
func (c Convention) Parse(name string) core.MarkerID {
	if digits, ok := strings.CutPrefix(name, c.NumericPrefix); ok && digits != "" && isDigits(digits) {
		idx, err := strconv.Atoi(digits)
		if err == nil {
			return core.MarkerID{Raw: name, Kind: core.MarkerIDNumeric, Index: idx}
		}
	}
	return core.MarkerID{Raw: name, Kind: core.MarkerIDLabel, Label: strings.TrimPrefix(name, c.LabelPrefix)}
}

// Matches reports whether name follows either naming convention.
func (c Convention) Matches(name string) bool {
	if digits, ok := strings.CutPrefix(name, c.NumericPrefix); ok && digits != "" && isDigits(digits) {
		return true
	}
	return c.LabelPrefix != "" && strings.HasPrefix(name, c.LabelPrefix) && len(name) > len(c.LabelPrefix)
}

// NumericName renders the zero-padded name for index i.
func (c Convention) NumericName(i int) string {
	return fmt.Sprintf("%s%03d", c.NumericPrefix, i)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// sortIDs orders numeric markers by index, then labels lexically.
func sortIDs(ids []core.MarkerID) {
	slices.SortStableFunc(ids, func(a, b core.MarkerID) int {
		if a.Kind != b.Kind {
			if a.Kind == core.MarkerIDNumeric {
				return -1
			}
			return 1
		}
		if a.Kind == core.MarkerIDNumeric && a.Index != b.Index {
			return a.Index - b.Index
		}
		return strings.Compare(a.Raw, b.Raw)
	})
}

// Centroid is the arithmetic mean of points.
func Centroid(points []r3.Vec) (r3.Vec, error) {
	if len(points) == 0 {
		return r3.Vec{}, ErrEmptyGroup
	}
	var sum r3.Vec
	for _, p := range points {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1/float64(len(points)), sum), nil
}

// Frame is a read-only snapshot of marker positions. Markers are addressable
// by id and by dense index in the order numeric-by-suffix, then labels.
type Frame struct {
	ids []core.MarkerID
	pos map[string]r3.Vec
}

// NewFrame indexes samples. Duplicate identifiers are rejected.
func NewFrame(samples []core.MarkerSample, conv Convention) (*Frame, error) {
	f := &Frame{
		ids: make([]core.MarkerID, 0, len(samples)),
		pos: make(map[string]r3.Vec, len(samples)),
	}
	for _, s := range samples {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: marker sample without id", rigerr.ErrMalformed)
		}
		if _, dup := f.pos[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate marker %q", rigerr.ErrMalformed, s.ID)
		}
		f.pos[s.ID] = s.Position
		f.ids = append(f.ids, conv.Parse(s.ID))
	}
	sortIDs(f.ids)
	return f, nil
}

func (f *Frame) Len() int { return len(f.ids) }

// IDs returns the identifiers in dense index order.
func (f *Frame) IDs() []string {
	out := make([]string, len(f.ids))
	for i, id := range f.ids {
		out[i] = id.Raw
	}
	return out
}

func (f *Frame) Position(id string) (r3.Vec, bool) {
	p, ok := f.pos[id]
	return p, ok
}

// At returns the marker at dense index i.
func (f *Frame) At(i int) (core.MarkerSample, bool) {
	if i < 0 || i >= len(f.ids) {
		return core.MarkerSample{}, false
	}
	id := f.ids[i].Raw
	return core.MarkerSample{ID: id, Position: f.pos[id]}, true
}

// Samples returns every marker in dense index order.
func (f *Frame) Samples() []core.MarkerSample {
	out := make([]core.MarkerSample, len(f.ids))
	for i, id := range f.ids {
		out[i] = core.MarkerSample{ID: id.Raw, Position: f.pos[id.Raw]}
	}
	return out
}

// RequireCount fails with ErrInsufficientMarkers when fewer than min distinct
// markers are present.
func (f *Frame) RequireCount(min int) error {
	return requireCount(len(f.ids), min)
}

func requireCount(n, min int) error {
	if n < min {
		return rigerr.Precondition(rigerr.ErrInsufficientMarkers,
			fmt.Sprintf("found %d distinct markers, need at least %d", n, min))
	}
	return nil
}

// Positions resolves dense indices. Indices not present are returned in missing.
func (f *Frame) Positions(indices []int) (points []r3.Vec, missing []int) {
	for _, i := range indices {
		s, ok := f.At(i)
		if !ok {
			missing = append(missing, i)
			continue
		}
		points = append(points, s.Position)
	}
	return points, missing
}

// Centroid averages the markers at indices. Every index must be present.
func (f *Frame) Centroid(indices []int) (r3.Vec, error) {
	if len(indices) == 0 {
		return r3.Vec{}, ErrEmptyGroup
	}
	points, missing := f.Positions(indices)
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = strconv.Itoa(m)
		}
		return r3.Vec{}, rigerr.Precondition(rigerr.ErrMissingMarkers, "marker indices not in frame", names...)
	}
	return Centroid(points)
}

// MinHeight is the lowest vertical coordinate in the frame, 0 when empty.
func (f *Frame) MinHeight() float64 {
	first := true
	var min float64
	for _, p := range f.pos {
		if first || p.Y < min {
			min = p.Y
			first = false
		}
	}
	return min
}
