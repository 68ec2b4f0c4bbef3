package topology

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"

	"github.com/flexmocap/rigcore/internal/util"
	"github.com/flexmocap/rigcore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

var csvHeader = []string{
	"name", "parent", "offset_x", "offset_y", "offset_z",
	"bound_x_min", "bound_x_max", "bound_y_min", "bound_y_max", "bound_z_min", "bound_z_max",
	"type", "rotation_mode", "optimize_group",
	"estimators", "drivers", "constraint_type",
}

var boundColumns = csvHeader[5:11]

// LoadCSV reads a tabular template. Offsets and bounds are meters.
func LoadCSV(path string) (*Topology, error) {
	f, err := openTemplate(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV decodes a tabular template. Only name and parent columns are
// required; absent columns leave the field at its zero value.
func ReadCSV(r io.Reader) (*Topology, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, malformed("", "empty template")
		}
		return nil, malformed("", "%v", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[h] = i
	}
	for _, req := range []string{"name", "parent"} {
		if _, ok := cols[req]; !ok {
			return nil, malformed("", "missing column %q", req)
		}
	}

	var entries []core.JointEntry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed("", "%v", err)
		}
		e, err := decodeRow(rec, cols)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return FromEntries(core.Meters, entries)
}

func decodeRow(rec []string, cols map[string]int) (core.JointEntry, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	num := func(name string) (float64, error) {
		s := field(name)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}

	e := core.JointEntry{Name: field("name"), Parent: field("parent"), OptimizeGroup: field("optimize_group")}
	var off [3]float64
	for i, c := range []string{"offset_x", "offset_y", "offset_z"} {
		v, err := num(c)
		if err != nil {
			return e, malformed(e.Name, "%s: %v", c, err)
		}
		off[i] = v
	}
	e.DefaultOffset = r3.Vec{X: off[0], Y: off[1], Z: off[2]}

	present := 0
	var b [6]float64
	for i, c := range boundColumns {
		if field(c) == "" {
			continue
		}
		v, err := num(c)
		if err != nil {
			return e, malformed(e.Name, "%s: %v", c, err)
		}
		b[i] = v
		present++
	}
	switch present {
	case 0:
	case len(boundColumns):
		e.Bounds = &core.Bounds{
			X: core.AxisRange{Min: b[0], Max: b[1]},
			Y: core.AxisRange{Min: b[2], Max: b[3]},
			Z: core.AxisRange{Min: b[4], Max: b[5]},
		}
	default:
		return e, malformed(e.Name, "partial bounds")
	}

	var err error
	if e.Type, err = core.ParseJointType(field("type")); err != nil {
		return e, malformed(e.Name, "%v", err)
	}
	if e.RotationMode, err = core.ParseRotationMode(field("rotation_mode")); err != nil {
		return e, malformed(e.Name, "%v", err)
	}
	if e.Estimators, err = util.ParseIntList(field("estimators")); err != nil {
		return e, malformed(e.Name, "estimators: %v", err)
	}
	if e.Drivers, err = util.ParseIntList(field("drivers")); err != nil {
		return e, malformed(e.Name, "drivers: %v", err)
	}
	if s := field("constraint_type"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || !core.ConstraintKind(n).Valid() {
			return e, malformed(e.Name, "constraint_type %q", s)
		}
		e.StoredConstraint = core.ConstraintKind(n)
	}
	return e, nil
}

// SaveCSV writes t as a tabular template in meters.
func SaveCSV(path string, t *Topology) error {
	return writeAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, t)
	})
}

func WriteCSV(w io.Writer, t *Topology) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	m := func(f float64) string {
		if t.Unit != core.Meters {
			f = f * t.Unit.CentimetersPerUnit() / core.Meters.CentimetersPerUnit()
		}
		return util.FormatFloat(f)
	}

	for _, e := range t.Entries() {
		row := make([]string, len(csvHeader))
		row[0], row[1] = e.Name, e.Parent
		if !(e.IsRoot() && e.DefaultOffset == (r3.Vec{})) {
			row[2], row[3], row[4] = m(e.DefaultOffset.X), m(e.DefaultOffset.Y), m(e.DefaultOffset.Z)
		}
		if b := e.Bounds; b != nil {
			row[5], row[6] = m(b.X.Min), m(b.X.Max)
			row[7], row[8] = m(b.Y.Min), m(b.Y.Max)
			row[9], row[10] = m(b.Z.Min), m(b.Z.Max)
		}
		row[11] = e.Type.String()
		row[12] = e.RotationMode.String()
		row[13] = e.OptimizeGroup
		row[14] = util.FormatIntList(e.Estimators)
		row[15] = util.FormatIntList(e.Drivers)
		row[16] = strconv.Itoa(int(e.StoredConstraint))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
