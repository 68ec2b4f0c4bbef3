// Package fit scales and orients a skeleton to a performer from a marker
// frame captured in the reference pose.
package fit

import (
	"errors"
	"log/slog"
	"math"

	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/skeleton"
	"gonum.org/v1/gonum/spatial/r3"
)

// Result is the outcome of fitting one reference-pose frame
type Result struct {
	HipCenter r3.Vec // corrected for the hip pivot
	LeftHand  r3.Vec
	RightHand r3.Vec
	LeftFoot  r3.Vec
	RightFoot r3.Vec

	Height         float64
	LeftArmLength  float64
	RightArmLength float64

	TrunkScale    float64
	LeftArmScale  float64
	RightArmScale float64

	// Scales and Rotations are keyed by joint name; rotations are degrees.
	Scales    map[string]r3.Vec
	Rotations map[string]r3.Vec
}

// Fitter computes scale factors and rotation offsets against a Profile
type Fitter struct {
	Profile    Profile
	MinMarkers int
	Logger     *slog.Logger
}

func New(p Profile, logger *slog.Logger) *Fitter {
	if logger == nil {
		logger = slog.Default()
	}
	p.defaults()
	return &Fitter{Profile: p, MinMarkers: marker.MinimumCount, Logger: logger}
}

type frameReader struct {
	frame *marker.Frame
}

func (r frameReader) group(name string, indices []int) (r3.Vec, error) {
	if len(indices) == 0 {
		return r3.Vec{}, rigerr.Precondition(rigerr.ErrLandmarkGroup, "group "+name+" is empty")
	}
	c, err := r.frame.Centroid(indices)
	if err != nil {
		var missing []string
		var pe *rigerr.PreconditionError
		if errors.As(err, &pe) {
			missing = pe.Missing
		}
		return r3.Vec{}, rigerr.Precondition(rigerr.ErrLandmarkGroup, "group "+name, missing...)
	}
	return c, nil
}

// Fit measures the performer in frame. A landmark group with missing markers
// aborts the fit and names the group.
func (f *Fitter) Fit(frame *marker.Frame) (*Result, error) {
	if err := frame.RequireCount(f.MinMarkers); err != nil {
		return nil, err
	}
	p := f.Profile
	lm := p.Landmarks
	rd := frameReader{frame: frame}

	var res Result
	var err error
	if res.HipCenter, err = rd.group("hips", lm.Hips); err != nil {
		return nil, err
	}
	if res.LeftFoot, err = rd.group("leftFoot", lm.LeftFoot); err != nil {
		return nil, err
	}
	if res.RightFoot, err = rd.group("rightFoot", lm.RightFoot); err != nil {
		return nil, err
	}
	if res.LeftHand, err = rd.group("leftHand", lm.LeftHand); err != nil {
		return nil, err
	}
	if res.RightHand, err = rd.group("rightHand", lm.RightHand); err != nil {
		return nil, err
	}
	ls, err := rd.group("leftShoulder", []int{lm.LeftShoulder})
	if err != nil {
		return nil, err
	}
	rs, err := rd.group("rightShoulder", []int{lm.RightShoulder})
	if err != nil {
		return nil, err
	}
	lhip, err := rd.group("leftHip", []int{lm.LeftHip})
	if err != nil {
		return nil, err
	}
	rhip, err := rd.group("rightHip", []int{lm.RightHip})
	if err != nil {
		return nil, err
	}

	res.HipCenter.Y -= p.HipPivotY
	res.HipCenter.Z -= p.HipPivotZ

	res.Height = (ls.Y + rs.Y) / 2
	res.LeftArmLength = r3.Norm(r3.Sub(res.LeftHand, ls))
	res.RightArmLength = r3.Norm(r3.Sub(res.RightHand, rs))

	res.TrunkScale = res.Height / p.Height
	res.LeftArmScale = res.LeftArmLength / p.ArmLength
	res.RightArmScale = res.RightArmLength / p.ArmLength
	for name, s := range map[string]float64{
		"trunk": res.TrunkScale, "leftArm": res.LeftArmScale, "rightArm": res.RightArmScale,
	} {
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, rigerr.Precondition(rigerr.ErrLandmarkGroup, "degenerate "+name+" measurement")
		}
	}

	res.Scales = make(map[string]r3.Vec)
	setScale := func(names []string, s float64) {
		for _, n := range names {
			res.Scales[n] = r3.Vec{X: s, Y: s, Z: s}
		}
	}
	setScale(p.Groups.Trunk, res.TrunkScale)
	setScale(p.Groups.LeftArm, res.LeftArmScale)
	setScale(p.Groups.RightArm, res.RightArmScale)

	s := res.TrunkScale
	armY := p.ShoulderHeight * s
	armZ := res.HipCenter.Z + p.ShoulderDepth*s
	lh, rh := res.LeftHand, res.RightHand
	legX := p.HipHalfWidth * s
	hc := res.HipCenter
	lf, rf := res.LeftFoot, res.RightFoot

	res.Rotations = map[string]r3.Vec{
		p.Targets.RightArm: {
			Y: degrees(math.Atan2(rh.Z-armZ, rs.X-rh.X)),
			Z: degrees(math.Atan2(armY-rh.Y, rs.X-rh.X)),
		},
		p.Targets.LeftArm: {
			Y: -degrees(math.Atan2(lh.Z-armZ, lh.X-ls.X)),
			Z: degrees(math.Atan2(lh.Y-armY, lh.X-ls.X)),
		},
		p.Targets.RightLeg: {Z: degrees(math.Atan2(rf.X-(hc.X-legX), rhip.Y-rf.Y))},
		p.Targets.LeftLeg:  {Z: degrees(math.Atan2(lf.X-(hc.X+legX), lhip.Y-lf.Y))},
	}

	f.Logger.Info("Performer fitted",
		"profile", p.Name,
		"height", res.Height,
		"trunkScale", res.TrunkScale,
		"leftArmScale", res.LeftArmScale,
		"rightArmScale", res.RightArmScale)
	return &res, nil
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// GroupError is the mean absolute deviation of the scale factors from one,
// a rough measure of how far the performer is from the canonical rig.
func (r *Result) GroupError() float64 {
	return (math.Abs(r.TrunkScale-1) + math.Abs(r.LeftArmScale-1) + math.Abs(r.RightArmScale-1)) / 3
}

// Apply sets scale and rotation on the skeleton joints named in res. Joints
// the skeleton does not have are skipped. It returns the joints touched.
func Apply(skel *skeleton.Skeleton, res *Result) []string {
	touched := make(map[string]bool)
	var out []string
	for _, name := range skel.Names() {
		n, _ := skel.Joint(name)
		if s, ok := res.Scales[name]; ok {
			n.SetScale(s)
			touched[name] = true
		}
		if rot, ok := res.Rotations[name]; ok {
			n.SetRotation(rot)
			touched[name] = true
		}
		if touched[name] {
			out = append(out, name)
		}
	}
	return out
}
