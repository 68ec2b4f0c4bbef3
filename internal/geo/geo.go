package geo

import (
	"errors"
	"strings"

	"github.com/flexmocap/rigcore/internal/util"
	geom "github.com/peterstace/simplefeatures/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Positions are stored as XYZ points in WKB so SQLite and Postgres share one column type.
// Capture space is a local Cartesian volume in centimeters, Y up; no SRID applies.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// VecFromString parses an "x,y,z" string into a vector. Exactly three values are required.
func VecFromString(coords string) (r3.Vec, error) {
	values, err := util.ParseFloatList(coords)
	if err != nil || len(values) != 3 {
		return r3.Vec{}, ErrInvalidCoordinates
	}
	return r3.Vec{X: values[0], Y: values[1], Z: values[2]}, nil
}

// VecToString renders a vector as "x,y,z" with full float precision.
func VecToString(v r3.Vec) string {
	return strings.Join([]string{
		util.FormatFloat(v.X),
		util.FormatFloat(v.Y),
		util.FormatFloat(v.Z),
	}, ",")
}

// PointFromVec creates an XYZ point from a vector
func PointFromVec(v r3.Vec) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: v.X, Y: v.Y},
			Z:    v.Z,
			Type: geom.DimXYZ,
		},
	)
}

// VecFromPoint converts an XYZ point back to a vector. Empty points yield the zero vector.
func VecFromPoint(p geom.Point) r3.Vec {
	coord, ok := p.Coordinates()
	if !ok {
		return r3.Vec{}
	}
	return r3.Vec{X: coord.XY.X, Y: coord.XY.Y, Z: coord.Z}
}
