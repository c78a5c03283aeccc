package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_FormatsKeysOnePerLine(t *testing.T) {
	err := Integrity("state years do not match the event log").WithKeys("on disk only: [2030]", "in log only: [2025]")

	assert.Equal(t, "INTEGRITY: state years do not match the event log\n  - on disk only: [2030]\n  - in log only: [2025]", err.Error())
}

func TestIsHelpers_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("apply 2025: %w", Conflict("overlapping changes"))

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, CodeConflict, CodeOf(wrapped))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestIO_KeepsPermissionIdentity(t *testing.T) {
	err := IO("write", "/tmp/wall.csv", fs.ErrPermission)

	require.True(t, IsIO(err))
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestMessage(t *testing.T) {
	err := fmt.Errorf("year 2025: %w", NotFound("archetype %q not found", "X").WithKeys("X"))

	assert.Equal(t, `archetype "X" not found`, Message(err))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
