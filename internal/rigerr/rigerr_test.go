package rigerr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Is(t *testing.T) {
	err := fmt.Errorf("loading: %w", Invalid(ErrCycle, "Hips", "Hips -> Spine -> Hips"))

	assert.ErrorIs(t, err, ErrCycle)
	assert.NotErrorIs(t, err, ErrOrphanParent)

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "Hips", ve.Joint)
	assert.Contains(t, err.Error(), `joint "Hips"`)
}

func TestPreconditionError_Message(t *testing.T) {
	err := Precondition(ErrLandmarkGroup, "left hand", "14", "16")

	assert.ErrorIs(t, err, ErrLandmarkGroup)
	assert.Equal(t, "precondition: landmark group incomplete: left hand [14,16]", err.Error())
}

func TestIOError_UnwrapAndIs(t *testing.T) {
	err := WriteFailed("/tmp/x.csv", fs.ErrPermission)

	assert.ErrorIs(t, err, ErrIOWriteFailed)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.NotErrorIs(t, err, ErrIOReadFailed)
}

func TestPartialMappingWarning_Empty(t *testing.T) {
	assert.True(t, PartialMappingWarning{}.Empty())

	w := PartialMappingWarning{UnmappedSlots: []string{"LeftHandThumb1"}}
	assert.False(t, w.Empty())
	assert.Equal(t, "unmapped slots [LeftHandThumb1], unmapped joints []", w.String())
}
