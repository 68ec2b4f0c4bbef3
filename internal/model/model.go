package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every table, parents first, for AutoMigrate
var DatabaseModels = []any{
	&RigSession{},
	&TemplateJoint{},
	&MarkerSample{},
	&SkeletonBuild{},
	&FitRun{},
	&MappingRun{},
	&MarkerBinding{},
}

// RigSession is one rigging session: a template applied to one capture
type RigSession struct {
	gorm.Model
	UID          string    `json:"uid" gorm:"size:36;uniqueIndex"`
	TemplatePath string    `json:"templatePath" gorm:"size:255"`
	Unit         string    `json:"unit" gorm:"size:4;default:cm"`
	StartTime    time.Time `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`

	Joints   []TemplateJoint `gorm:"foreignKey:SessionID"`
	Samples  []MarkerSample  `gorm:"foreignKey:SessionID"`
	Builds   []SkeletonBuild `gorm:"foreignKey:SessionID"`
	Fits     []FitRun        `gorm:"foreignKey:SessionID"`
	Mappings []MappingRun    `gorm:"foreignKey:SessionID"`
}

func (*RigSession) TableName() string {
	return "rig_sessions"
}

// TemplateJoint is one template entry as it was when the session started.
// Offset is in the session unit.
type TemplateJoint struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint       `json:"sessionId" gorm:"index:idx_templatejoint_session_id"`
	Session   RigSession `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Ordinal   int        `json:"ordinal"` // template order

	Name             string         `json:"name" gorm:"size:64"`
	Parent           string         `json:"parent" gorm:"size:64"`
	Offset           geom.Point     `json:"offset"`
	Estimators       datatypes.JSON `json:"estimators"`
	Drivers          datatypes.JSON `json:"drivers"`
	JointType        string         `json:"type" gorm:"size:8"`
	RotationMode     string         `json:"rotationMode" gorm:"size:8"`
	OptimizeGroup    string         `json:"optimizeGroup" gorm:"size:64"`
	Bounds           datatypes.JSON `json:"bounds"` // null when absent
	StoredConstraint int8           `json:"constraintType"`
}

func (*TemplateJoint) TableName() string {
	return "template_joints"
}

// MarkerSample is one tracked marker of a recorded frame
type MarkerSample struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time  `json:"time" gorm:"type:timestamptz;index:idx_markersample_time"`
	SessionID uint       `json:"sessionId" gorm:"index:idx_markersample_session_id"`
	Session   RigSession `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Label     string     `json:"label" gorm:"size:64;index:idx_markersample_label"`
	Position  geom.Point `json:"position"` // centimeters, capture space
}

func (*MarkerSample) TableName() string {
	return "marker_samples"
}

// SkeletonBuild records a skeleton created in the scene
type SkeletonBuild struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time      `json:"time" gorm:"type:timestamptz;"`
	SessionID  uint           `json:"sessionId" gorm:"index:idx_skeletonbuild_session_id"`
	Session    RigSession     `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Namespace  string         `json:"namespace" gorm:"size:64;index:idx_skeletonbuild_namespace"`
	Root       string         `json:"root" gorm:"size:64"`
	JointCount uint16         `json:"jointCount"`
	Offsets    datatypes.JSON `json:"offsets"` // joint name -> [x,y,z] cm
}

func (*SkeletonBuild) TableName() string {
	return "skeleton_builds"
}

// FitRun stores the measurements and factors of one fit
type FitRun struct {
	ID             uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time           time.Time      `json:"time" gorm:"type:timestamptz;"`
	SessionID      uint           `json:"sessionId" gorm:"index:idx_fitrun_session_id"`
	Session        RigSession     `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Namespace      string         `json:"namespace" gorm:"size:64"`
	Height         float64        `json:"height"`
	LeftArmLength  float64        `json:"leftArmLength"`
	RightArmLength float64        `json:"rightArmLength"`
	HipCenter      geom.Point     `json:"hipCenter"`
	Scales         datatypes.JSON `json:"scales"`    // joint name -> [x,y,z]
	Rotations      datatypes.JSON `json:"rotations"` // joint name -> [x,y,z] degrees
}

func (*FitRun) TableName() string {
	return "fit_runs"
}

// MappingRun is one bind of a marker source onto a skeleton
type MappingRun struct {
	ID             uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	Time           time.Time       `json:"time" gorm:"type:timestamptz;"`
	SessionID      uint            `json:"sessionId" gorm:"index:idx_mappingrun_session_id"`
	Session        RigSession      `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Namespace      string          `json:"namespace" gorm:"size:64"`
	Source         string          `json:"source" gorm:"size:16"` // optical or predicted
	UnmappedSlots  datatypes.JSON  `json:"unmappedSlots"`
	UnmappedJoints datatypes.JSON  `json:"unmappedJoints"`
	Bindings       []MarkerBinding `json:"bindings" gorm:"foreignKey:MappingRunID"`
}

func (*MappingRun) TableName() string {
	return "mapping_runs"
}

// MarkerBinding is the driver set of one joint within a MappingRun
type MarkerBinding struct {
	ID           uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	MappingRunID uint           `json:"mappingRunId" gorm:"index:idx_markerbinding_run_id"`
	Joint        string         `json:"joint" gorm:"size:64"`
	Markers      datatypes.JSON `json:"markers"`
	Constraint   int8           `json:"constraint"` // 0 full fit, 1 aim, 2 two point
}

func (*MarkerBinding) TableName() string {
	return "marker_bindings"
}
