package topology

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"

	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/util"
	"gonum.org/v1/gonum/spatial/r3"
)

// LoadOffsets reads "name,x,y,z" rows of estimated joint offsets.
func LoadOffsets(path string) (map[string]r3.Vec, error) {
	f, err := openTemplate(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := marker.ReadSamples(f)
	if err != nil {
		return nil, fmt.Errorf("offsets %s: %w", path, err)
	}
	out := make(map[string]r3.Vec, len(rows))
	for _, r := range rows {
		if _, dup := out[r.ID]; dup {
			return nil, rigerr.Invalid(rigerr.ErrDuplicateName, r.ID, path)
		}
		out[r.ID] = r.Position
	}
	return out, nil
}

// SaveOffsets writes offsets sorted by joint name.
func SaveOffsets(path string, offsets map[string]r3.Vec) error {
	return writeAtomic(path, func(w io.Writer) error {
		return WriteOffsets(w, offsets)
	})
}

func WriteOffsets(w io.Writer, offsets map[string]r3.Vec) error {
	names := make([]string, 0, len(offsets))
	for n := range offsets {
		names = append(names, n)
	}
	slices.Sort(names)

	cw := csv.NewWriter(w)
	for _, n := range names {
		v := offsets[n]
		if err := cw.Write([]string{n, util.FormatFloat(v.X), util.FormatFloat(v.Y), util.FormatFloat(v.Z)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
