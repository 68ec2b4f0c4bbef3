// Package rigerr defines the error taxonomy shared by the rigging engine.
//
// Every failure is one of ValidationError, PreconditionError or IOError and
// can be matched with errors.Is against the sentinels below.
package rigerr

import (
	"errors"
	"fmt"
	"strings"
)

// Validation sentinels
var (
	ErrDuplicateRoot = errors.New("duplicate root")
	ErrOrphanParent  = errors.New("orphan parent")
	ErrCycle         = errors.New("cycle in joint hierarchy")
	ErrEmptyName     = errors.New("empty joint name")
	ErrDuplicateName = errors.New("duplicate joint name")
	ErrNoRoot        = errors.New("no root joint")
	ErrMalformed     = errors.New("malformed template")
	ErrNotFound      = errors.New("not found")
)

// Precondition sentinels
var (
	ErrInsufficientMarkers = errors.New("insufficient markers")
	ErrMissingMarkers      = errors.New("missing markers")
	ErrLandmarkGroup       = errors.New("landmark group incomplete")
	ErrNamespaceExists     = errors.New("namespace exists")
	ErrNamespaceMissing    = errors.New("namespace missing")
	ErrEmptyTopology       = errors.New("empty topology")
	ErrNoCharacterTarget   = errors.New("no character target")
	ErrNoPredictedMarkers  = errors.New("no predicted markers")
)

// IO sentinels
var (
	ErrIOReadFailed  = errors.New("template read failed")
	ErrIOWriteFailed = errors.New("template write failed")
)

// ValidationError reports a malformed or inconsistent topology
type ValidationError struct {
	Kind   error // one of the validation sentinels
	Joint  string
	Detail string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation: ")
	b.WriteString(e.Kind.Error())
	if e.Joint != "" {
		fmt.Fprintf(&b, " (joint %q)", e.Joint)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool {
	return target == e.Kind
}

// Invalid builds a ValidationError.
func Invalid(kind error, joint, detail string) *ValidationError {
	return &ValidationError{Kind: kind, Joint: joint, Detail: detail}
}

// PreconditionError reports a missing or conflicting input. The operation
// that returns it has not mutated anything.
type PreconditionError struct {
	Kind    error // one of the precondition sentinels
	Detail  string
	Missing []string
}

func (e *PreconditionError) Error() string {
	msg := "precondition: " + e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if len(e.Missing) > 0 {
		msg += " [" + strings.Join(e.Missing, ",") + "]"
	}
	return msg
}

func (e *PreconditionError) Is(target error) bool {
	return target == e.Kind
}

// Precondition builds a PreconditionError.
func Precondition(kind error, detail string, missing ...string) *PreconditionError {
	return &PreconditionError{Kind: kind, Detail: detail, Missing: missing}
}

// IOError reports an unreadable or unwritable template file
type IOError struct {
	Kind error // ErrIOReadFailed or ErrIOWriteFailed
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == e.Kind
}

// ReadFailed wraps a read error for path.
func ReadFailed(path string, err error) *IOError {
	return &IOError{Kind: ErrIOReadFailed, Op: "read", Path: path, Err: err}
}

// WriteFailed wraps a write error for path.
func WriteFailed(path string, err error) *IOError {
	return &IOError{Kind: ErrIOWriteFailed, Op: "write", Path: path, Err: err}
}

// PartialMappingWarning lists names that could not be paired between a
// character target and a topology. It is not fatal.
type PartialMappingWarning struct {
	UnmappedSlots  []string // character slots without a topology entry
	UnmappedJoints []string // topology entries without a character slot
}

// Empty reports whether every name was paired.
func (w PartialMappingWarning) Empty() bool {
	return len(w.UnmappedSlots) == 0 && len(w.UnmappedJoints) == 0
}

func (w PartialMappingWarning) String() string {
	return fmt.Sprintf("unmapped slots [%s], unmapped joints [%s]",
		strings.Join(w.UnmappedSlots, ","), strings.Join(w.UnmappedJoints, ","))
}
