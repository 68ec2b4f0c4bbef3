package topology

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/flexmocap/rigcore/internal/geo"
	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/util"
	"github.com/flexmocap/rigcore/pkg/core"
	"gopkg.in/ini.v1"
)

const (
	jointsSection      = "Joints"
	jointSectionPrefix = "Joint."

	keyParent        = "Parent"
	keyEstimators    = "Estimators"
	keyDrivers       = "Drivers"
	keyTranslation   = "DefaultTranslation"
	keyConstraint    = "ConstraintType"
	keyConstraintOld = "ContraintType"
	keyType          = "Type"
	keyRotationMode  = "RotationMode"
	keyOptimizeGroup = "OptimizeGroup"
	keyBounds        = "Bounds"
)

// LoadINI reads a key-value template. Offsets are centimeters.
func LoadINI(path string) (*Topology, error) {
	f, err := openTemplate(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, rigerr.ReadFailed(path, err)
	}
	return ParseINI(data)
}

// ParseINI decodes a key-value template held in memory.
func ParseINI(data []byte) (*Topology, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return nil, malformed("", "%v", err)
	}

	idx, err := cfg.GetSection(jointsSection)
	if err != nil {
		return nil, malformed("", "missing [%s] section", jointsSection)
	}
	var names []string
	for i := 0; ; i++ {
		key := fmt.Sprintf("Joint%d", i)
		if !idx.HasKey(key) {
			break
		}
		name := idx.Key(key).String()
		if name == "" {
			break
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, malformed("", "no joints listed in [%s]", jointsSection)
	}

	entries := make([]core.JointEntry, 0, len(names))
	for _, name := range names {
		e := core.JointEntry{Name: name}
		// a joint without its own section is a parentless joint at the origin
		sec, err := cfg.GetSection(jointSectionPrefix + name)
		if err == nil {
			if err := decodeJointSection(sec, &e); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return FromEntries(core.Centimeters, entries)
}

func decodeJointSection(sec *ini.Section, e *core.JointEntry) error {
	get := func(key string) string {
		if !sec.HasKey(key) {
			return ""
		}
		return sec.Key(key).String()
	}

	var err error
	e.Parent = get(keyParent)
	if e.Estimators, err = util.ParseIntList(get(keyEstimators)); err != nil {
		return malformed(e.Name, "%s: %v", keyEstimators, err)
	}
	if e.Drivers, err = util.ParseIntList(get(keyDrivers)); err != nil {
		return malformed(e.Name, "%s: %v", keyDrivers, err)
	}
	if s := get(keyTranslation); s != "" {
		if e.DefaultOffset, err = geo.VecFromString(s); err != nil {
			return malformed(e.Name, "%s %q: %v", keyTranslation, s, err)
		}
	}

	c := get(keyConstraint)
	if c == "" {
		c = get(keyConstraintOld)
	}
	if c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || !core.ConstraintKind(n).Valid() {
			return malformed(e.Name, "%s %q", keyConstraint, c)
		}
		e.StoredConstraint = core.ConstraintKind(n)
	}

	if e.Type, err = core.ParseJointType(get(keyType)); err != nil {
		return malformed(e.Name, "%v", err)
	}
	if e.RotationMode, err = core.ParseRotationMode(get(keyRotationMode)); err != nil {
		return malformed(e.Name, "%v", err)
	}
	e.OptimizeGroup = get(keyOptimizeGroup)
	if s := get(keyBounds); s != "" {
		v, err := util.ParseFloatList(s)
		if err != nil || len(v) != 6 {
			return malformed(e.Name, "%s %q: need 6 values", keyBounds, s)
		}
		e.Bounds = &core.Bounds{
			X: core.AxisRange{Min: v[0], Max: v[1]},
			Y: core.AxisRange{Min: v[2], Max: v[3]},
			Z: core.AxisRange{Min: v[4], Max: v[5]},
		}
	}
	return nil
}

// SaveINI writes t as a key-value template in centimeters.
func SaveINI(path string, t *Topology) error {
	return writeAtomic(path, func(w io.Writer) error {
		return WriteINI(w, t)
	})
}

// WriteINI encodes t. Optional fields are written only when set.
func WriteINI(w io.Writer, t *Topology) error {
	cfg := ini.Empty()
	idx, err := cfg.NewSection(jointsSection)
	if err != nil {
		return err
	}
	for i, e := range t.Entries() {
		if _, err := idx.NewKey(fmt.Sprintf("Joint%d", i), e.Name); err != nil {
			return err
		}
		sec, err := cfg.NewSection(jointSectionPrefix + e.Name)
		if err != nil {
			return err
		}
		if err := encodeJointSection(sec, e, t.Unit); err != nil {
			return err
		}
	}
	_, err = cfg.WriteTo(w)
	return err
}

func encodeJointSection(sec *ini.Section, e core.JointEntry, unit core.LengthUnit) error {
	keys := [][2]string{
		{keyParent, e.Parent},
		{keyEstimators, util.FormatIntList(e.Estimators)},
		{keyDrivers, util.FormatIntList(e.Drivers)},
		{keyTranslation, geo.VecToString(unit.ToCentimeters(e.DefaultOffset))},
		{keyConstraint, strconv.Itoa(int(e.StoredConstraint))},
	}
	if e.Type != core.JointBone {
		keys = append(keys, [2]string{keyType, e.Type.String()})
	}
	if e.RotationMode != core.RotationNone {
		keys = append(keys, [2]string{keyRotationMode, e.RotationMode.String()})
	}
	if e.OptimizeGroup != "" {
		keys = append(keys, [2]string{keyOptimizeGroup, e.OptimizeGroup})
	}
	if b := e.Bounds; b != nil {
		s := unit.CentimetersPerUnit()
		v := []float64{b.X.Min * s, b.X.Max * s, b.Y.Min * s, b.Y.Max * s, b.Z.Min * s, b.Z.Max * s}
		parts := make([]string, len(v))
		for i, f := range v {
			parts[i] = util.FormatFloat(f)
		}
		keys = append(keys, [2]string{keyBounds, strings.Join(parts, ",")})
	}
	for _, kv := range keys {
		if _, err := sec.NewKey(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}
