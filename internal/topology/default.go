package topology

import (
	"github.com/flexmocap/rigcore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

type defaultJoint struct {
	name, parent string
	estimators   []int
	drivers      []int
	constraint   core.ConstraintKind
	offset       r3.Vec
}

// defaultJoints is the 38-marker full-body layout, offsets in centimeters.
var defaultJoints = []defaultJoint{
	{"Reference", "", nil, nil, core.ConstraintFullFit, r3.Vec{}},
	{"Hips", "Reference", []int{8, 9, 30, 31}, []int{8, 9, 30, 31}, core.ConstraintFullFit, r3.Vec{X: 0, Y: 97.2, Z: -7.3}},
	{"LeftUpLeg", "Hips", []int{29}, []int{29}, core.ConstraintAim, r3.Vec{X: 9.6, Y: -3.6, Z: 7.3}},
	{"LeftLeg", "LeftUpLeg", []int{27, 28}, []int{27, 28}, core.ConstraintTwoPoint, r3.Vec{X: 0, Y: -42.7, Z: -0.4}},
	{"LeftFoot", "LeftLeg", []int{24, 25, 26}, []int{24, 25, 26}, core.ConstraintFullFit, r3.Vec{X: 0, Y: -43.3, Z: -2.2}},
	{"LeftToeBase", "LeftFoot", []int{25, 26}, nil, core.ConstraintFullFit, r3.Vec{X: 0, Y: -6.3, Z: 10.9}},
	{"RightUpLeg", "Hips", []int{32}, []int{32}, core.ConstraintAim, r3.Vec{X: -9.6, Y: -3.6, Z: 7.3}},
	{"RightLeg", "RightUpLeg", []int{33, 34}, []int{33, 34}, core.ConstraintTwoPoint, r3.Vec{X: 0, Y: -42.7, Z: -0.4}},
	{"RightFoot", "RightLeg", []int{35, 36, 37}, []int{35, 36, 37}, core.ConstraintFullFit, r3.Vec{X: 0, Y: -43.3, Z: -2.2}},
	{"RightToeBase", "RightFoot", []int{36, 37}, nil, core.ConstraintFullFit, r3.Vec{X: 0, Y: -6.3, Z: 10.9}},
	{"Spine", "Hips", []int{6, 7}, []int{4, 5, 6, 7}, core.ConstraintTwoPoint, r3.Vec{X: 0, Y: 23, Z: 0}},
	{"LeftArm", "Spine", []int{10, 11}, []int{10, 11}, core.ConstraintTwoPoint, r3.Vec{X: 12, Y: 18, Z: 0.6}},
	{"LeftForeArm", "LeftArm", []int{12, 13}, []int{12, 13}, core.ConstraintTwoPoint, r3.Vec{X: 26.2, Y: 0, Z: -1.7}},
	{"LeftHand", "LeftForeArm", []int{14, 15, 16}, []int{14, 15, 16}, core.ConstraintFullFit, r3.Vec{X: 26.5, Y: 0, Z: 0.4}},
	{"LeftFingerBase", "LeftHand", []int{15, 16}, nil, core.ConstraintFullFit, r3.Vec{X: 10.55, Y: 0, Z: 1.04}},
	{"RightArm", "Spine", []int{17, 18}, []int{17, 18}, core.ConstraintTwoPoint, r3.Vec{X: -12, Y: 18, Z: 0.6}},
	{"RightForeArm", "RightArm", []int{19, 20}, []int{19, 20}, core.ConstraintTwoPoint, r3.Vec{X: -26.2, Y: 0, Z: -1.7}},
	{"RightHand", "RightForeArm", []int{21, 22, 23}, []int{21, 22, 23}, core.ConstraintFullFit, r3.Vec{X: -26.5, Y: 0, Z: 0.4}},
	{"RightFingerBase", "RightHand", []int{22, 23}, nil, core.ConstraintFullFit, r3.Vec{X: -10.55, Y: 0, Z: 1.04}},
	{"Neck", "Spine", []int{6, 10, 17}, []int{6, 10, 17}, core.ConstraintTwoPoint, r3.Vec{X: 0, Y: 20.5, Z: 0}},
	{"Head", "Neck", []int{0, 1, 2, 3}, []int{0, 1, 2, 3}, core.ConstraintFullFit, r3.Vec{X: 0, Y: 15.3, Z: 2.7}},
}

// Default returns the built-in full-body template in centimeters.
func Default() *Topology {
	t := New(core.Centimeters)
	for _, j := range defaultJoints {
		e := core.JointEntry{
			Name:             j.name,
			Parent:           j.parent,
			DefaultOffset:    j.offset,
			Estimators:       j.estimators,
			Drivers:          j.drivers,
			StoredConstraint: j.constraint,
		}
		if err := t.Add(e); err != nil {
			panic("topology: invalid built-in template: " + err.Error())
		}
	}
	return t
}
