package mapping

import (
	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/scene"
)

// SourceKind tells optical markers from predicted ones
type SourceKind int

const (
	SourceOptical SourceKind = iota
	SourcePredicted
)

func (k SourceKind) String() string {
	if k == SourcePredicted {
		return "predicted"
	}
	return "optical"
}

// Source resolves driver references to marker nodes
type Source interface {
	Kind() SourceKind
	Len() int
	At(i int) (scene.Node, bool)
	Lookup(name string) (scene.Node, bool)
}

type listSource struct {
	*marker.List
	kind SourceKind
}

func (s listSource) Kind() SourceKind { return s.kind }

// Optical wraps raw tracked markers.
func Optical(l *marker.List) Source { return listSource{List: l, kind: SourceOptical} }

// Predicted wraps synthetic markers that shadow the optical set.
func Predicted(l *marker.List) Source { return listSource{List: l, kind: SourcePredicted} }

// Sources holds the marker sets available for binding
type Sources struct {
	Optical   *marker.List
	Predicted *marker.List
}

// Select returns the requested source. Asking for predicted markers when
// none exist is an error, never a fallback to optical.
func (s Sources) Select(usePredicted bool) (Source, error) {
	if usePredicted {
		if s.Predicted == nil || s.Predicted.Len() == 0 {
			return nil, rigerr.Precondition(rigerr.ErrNoPredictedMarkers, "no predicted marker set")
		}
		return Predicted(s.Predicted), nil
	}
	if s.Optical == nil {
		return nil, rigerr.Precondition(rigerr.ErrMissingMarkers, "no optical marker set")
	}
	return Optical(s.Optical), nil
}
