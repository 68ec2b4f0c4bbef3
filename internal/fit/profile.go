package fit

import (
	"fmt"
	"os"

	"github.com/flexmocap/rigcore/internal/rigerr"
	"gopkg.in/yaml.v3"
)

// Landmarks are the marker indices each landmark is measured from
type Landmarks struct {
	Hips          []int `yaml:"hips"`
	LeftHand      []int `yaml:"leftHand"`
	RightHand     []int `yaml:"rightHand"`
	LeftFoot      []int `yaml:"leftFoot"`
	RightFoot     []int `yaml:"rightFoot"`
	LeftShoulder  int   `yaml:"leftShoulder"`
	RightShoulder int   `yaml:"rightShoulder"`
	LeftHip       int   `yaml:"leftHip"`
	RightHip      int   `yaml:"rightHip"`
}

// Groups name the joints each scale factor applies to
type Groups struct {
	Trunk    []string `yaml:"trunk"`
	LeftArm  []string `yaml:"leftArm"`
	RightArm []string `yaml:"rightArm"`
}

// Targets name the joints that receive rotation offsets
type Targets struct {
	LeftArm  string `yaml:"leftArm"`
	RightArm string `yaml:"rightArm"`
	LeftLeg  string `yaml:"leftLeg"`
	RightLeg string `yaml:"rightLeg"`
}

// Profile holds the body measurements of the canonical rig, in centimeters
type Profile struct {
	Name      string  `yaml:"name"`
	Height    float64 `yaml:"height"`
	ArmLength float64 `yaml:"armLength"`

	// HipPivotY and HipPivotZ move the hip marker centroid onto the joint.
	HipPivotY float64 `yaml:"hipPivotY"`
	HipPivotZ float64 `yaml:"hipPivotZ"`
	// ShoulderHeight and ShoulderDepth place the reference shoulder line.
	ShoulderHeight float64 `yaml:"shoulderHeight"`
	ShoulderDepth  float64 `yaml:"shoulderDepth"`
	// HipHalfWidth is the lateral distance from hip center to each leg.
	HipHalfWidth float64 `yaml:"hipHalfWidth"`

	Landmarks Landmarks `yaml:"landmarks"`
	Groups    Groups    `yaml:"groups"`
	Targets   Targets   `yaml:"targets"`
}

// defaults fills fields whose zero value is meaningless. Marker indices, the
// hip pivot and the shoulder depth may legitimately be zero, so their
// canonical values come from DefaultProfile instead.
func (p *Profile) defaults() {
	if p.Name == "" {
		p.Name = "default"
	}
	if p.Height <= 0 {
		p.Height = 150.1
	}
	if p.ArmLength <= 0 {
		p.ArmLength = 62.4
	}
	if p.ShoulderHeight <= 0 {
		p.ShoulderHeight = 149.0
	}
	if p.HipHalfWidth <= 0 {
		p.HipHalfWidth = 9.6
	}

	l := &p.Landmarks
	if len(l.Hips) == 0 {
		l.Hips = []int{8, 9, 30, 31}
	}
	if len(l.LeftHand) == 0 {
		l.LeftHand = []int{14, 15, 16}
	}
	if len(l.RightHand) == 0 {
		l.RightHand = []int{21, 22, 23}
	}
	if len(l.LeftFoot) == 0 {
		l.LeftFoot = []int{24, 25, 26}
	}
	if len(l.RightFoot) == 0 {
		l.RightFoot = []int{35, 36, 37}
	}

	g := &p.Groups
	if len(g.Trunk) == 0 {
		g.Trunk = []string{"Hips", "Spine", "Neck", "Head",
			"LeftUpLeg", "LeftLeg", "LeftFoot", "RightUpLeg", "RightLeg", "RightFoot"}
	}
	if len(g.LeftArm) == 0 {
		g.LeftArm = []string{"LeftShoulder", "LeftArm", "LeftForeArm", "LeftHand"}
	}
	if len(g.RightArm) == 0 {
		g.RightArm = []string{"RightShoulder", "RightArm", "RightForeArm", "RightHand"}
	}

	tg := &p.Targets
	if tg.LeftArm == "" {
		tg.LeftArm = "LeftArm"
	}
	if tg.RightArm == "" {
		tg.RightArm = "RightArm"
	}
	if tg.LeftLeg == "" {
		tg.LeftLeg = "LeftUpLeg"
	}
	if tg.RightLeg == "" {
		tg.RightLeg = "RightUpLeg"
	}
}

// DefaultProfile returns the canonical rig measurements.
func DefaultProfile() Profile {
	p := Profile{
		HipPivotY:     4.5,
		HipPivotZ:     10.0,
		ShoulderDepth: 6.5,
		Landmarks: Landmarks{
			LeftShoulder:  10,
			RightShoulder: 17,
			LeftHip:       30,
			RightHip:      31,
		},
	}
	p.defaults()
	return p
}

// LoadProfile reads a YAML profile over the canonical one, so omitted keys
// keep their canonical values and explicit zeros are honored.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, rigerr.ReadFailed(path, err)
	}
	p := DefaultProfile()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w: %v", path, rigerr.ErrMalformed, err)
	}
	p.defaults()
	return p, nil
}
