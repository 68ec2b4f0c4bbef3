// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// SessionExport is the root JSON document of an exported session
type SessionExport struct {
	UID          string        `json:"uid"`
	TemplatePath string        `json:"templatePath,omitempty"`
	Unit         string        `json:"unit"`
	StartTime    time.Time     `json:"startTime"`
	Joints       []JointJSON   `json:"joints"`
	Frames       []FrameJSON   `json:"frames"`
	Builds       []BuildJSON   `json:"builds"`
	Fits         []FitJSON     `json:"fits"`
	Mappings     []MappingJSON `json:"mappings"`
}

type JointJSON struct {
	Name       string     `json:"name"`
	Parent     string     `json:"parent,omitempty"`
	Offset     [3]float64 `json:"offset"`
	Type       string     `json:"type"`
	Estimators []int      `json:"estimators,omitempty"`
	Drivers    []int      `json:"drivers,omitempty"`
}

// FrameJSON stores samples as [label, x, y, z] rows
type FrameJSON struct {
	Time    time.Time `json:"time"`
	Markers [][]any   `json:"markers"`
}

type BuildJSON struct {
	Time      time.Time             `json:"time"`
	Namespace string                `json:"namespace"`
	Root      string                `json:"root"`
	Joints    int                   `json:"joints"`
	Offsets   map[string][3]float64 `json:"offsets"`
}

type FitJSON struct {
	Time           time.Time             `json:"time"`
	Namespace      string                `json:"namespace"`
	Height         float64               `json:"height"`
	LeftArmLength  float64               `json:"leftArmLength"`
	RightArmLength float64               `json:"rightArmLength"`
	HipCenter      [3]float64            `json:"hipCenter"`
	Scales         map[string][3]float64 `json:"scales"`
	Rotations      map[string][3]float64 `json:"rotations"`
}

type MappingJSON struct {
	Time           time.Time     `json:"time"`
	Namespace      string        `json:"namespace"`
	Source         string        `json:"source"`
	Bindings       []BindingJSON `json:"bindings"`
	UnmappedSlots  []string      `json:"unmappedSlots,omitempty"`
	UnmappedJoints []string      `json:"unmappedJoints,omitempty"`
}

type BindingJSON struct {
	Joint      string   `json:"joint"`
	Markers    []string `json:"markers"`
	Constraint string   `json:"constraint"`
}

func arr(x, y, z float64) [3]float64 { return [3]float64{x, y, z} }

func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(b.session.UID)
	filename := fmt.Sprintf("%s_%s.json", name, b.session.StartTime.UTC().Format("20060102_150405"))
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(b.cfg.OutputDir, filename)
	if err := writeExport(path, b.cfg.CompressOutput, export); err != nil {
		return err
	}
	b.lastExportPath = path
	return nil
}

func writeExport(path string, compress bool, data SessionExport) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.Writer = f
	if compress {
		gz := gzip.NewWriter(f)
		defer func() {
			if cerr := gz.Close(); err == nil {
				err = cerr
			}
		}()
		w = gz
	}
	return json.NewEncoder(w).Encode(data)
}

func (b *Backend) buildExport() SessionExport {
	s := b.session
	out := SessionExport{
		UID:          s.UID,
		TemplatePath: s.TemplatePath,
		Unit:         s.Unit.String(),
		StartTime:    s.StartTime,
		Joints:       make([]JointJSON, 0, len(s.Joints)),
		Frames:       make([]FrameJSON, 0, len(b.frames)),
		Builds:       make([]BuildJSON, 0, len(b.builds)),
		Fits:         make([]FitJSON, 0, len(b.fits)),
		Mappings:     make([]MappingJSON, 0, len(b.binds)),
	}
	for _, e := range s.Joints {
		out.Joints = append(out.Joints, JointJSON{
			Name:       e.Name,
			Parent:     e.Parent,
			Offset:     arr(e.DefaultOffset.X, e.DefaultOffset.Y, e.DefaultOffset.Z),
			Type:       e.Type.String(),
			Estimators: e.Estimators,
			Drivers:    e.Drivers,
		})
	}
	for _, f := range b.frames {
		fj := FrameJSON{Time: f.Time, Markers: make([][]any, 0, len(f.Samples))}
		for _, sm := range f.Samples {
			fj.Markers = append(fj.Markers, []any{sm.ID, sm.Position.X, sm.Position.Y, sm.Position.Z})
		}
		sort.Slice(fj.Markers, func(i, j int) bool { return fj.Markers[i][0].(string) < fj.Markers[j][0].(string) })
		out.Frames = append(out.Frames, fj)
	}
	for _, r := range b.builds {
		out.Builds = append(out.Builds, BuildJSON{
			Time: r.Time, Namespace: r.Namespace, Root: r.Root, Joints: r.Joints,
			Offsets: vecMap(r.Offsets),
		})
	}
	for _, r := range b.fits {
		out.Fits = append(out.Fits, FitJSON{
			Time: r.Time, Namespace: r.Namespace, Height: r.Height,
			LeftArmLength: r.LeftArmLength, RightArmLength: r.RightArmLength,
			HipCenter: arr(r.HipCenter.X, r.HipCenter.Y, r.HipCenter.Z),
			Scales:    vecMap(r.Scales),
			Rotations: vecMap(r.Rotations),
		})
	}
	for _, r := range b.binds {
		mj := MappingJSON{
			Time: r.Time, Namespace: r.Namespace, Source: r.Source,
			Bindings:       make([]BindingJSON, 0, len(r.Bindings)),
			UnmappedSlots:  r.UnmappedSlots,
			UnmappedJoints: r.UnmappedJoints,
		}
		for _, jb := range r.Bindings {
			mj.Bindings = append(mj.Bindings, BindingJSON{Joint: jb.Joint, Markers: jb.Markers, Constraint: jb.Kind.String()})
		}
		out.Mappings = append(out.Mappings, mj)
	}
	return out
}

func vecMap(m map[string]r3.Vec) map[string][3]float64 {
	out := make(map[string][3]float64, len(m))
	for k, v := range m {
		out[k] = arr(v.X, v.Y, v.Z)
	}
	return out
}
