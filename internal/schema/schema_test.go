package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/errs"
)

func decode(t *testing.T, doc string) any {
	t.Helper()
	var v any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &v))
	return v
}

func TestValidateRecipe(t *testing.T) {
	ok := decode(t, `
STANDARD1:
  wall:
    thickness_1_m: 0.15
    material_name_1: null
  construction_type:
    type_win: WIN_AS2
`)
	require.NoError(t, ValidateRecipe(ok))

	nested := decode(t, `
STANDARD1:
  wall:
    thickness_1_m: [0.15]
`)
	err := ValidateRecipe(nested)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	flat := decode(t, "STANDARD1: 3\n")
	assert.True(t, errs.IsValidation(ValidateRecipe(flat)))
}

func TestValidateChanges(t *testing.T) {
	ok := decode(t, `
insulate_walls:
  description: thicker insulation
  version: 2
  modifications:
    STANDARD1:
      wall:
        thickness_1_m: 0.2
`)
	require.NoError(t, ValidateChanges(ok))

	missingMods := decode(t, `
insulate_walls:
  description: thicker insulation
`)
	assert.True(t, errs.IsValidation(ValidateChanges(missingMods)))

	unknownField := decode(t, `
insulate_walls:
  owner: someone
  modifications: {}
`)
	assert.True(t, errs.IsValidation(ValidateChanges(unknownField)))

	badVersion := decode(t, `
insulate_walls:
  version: 0
  modifications: {}
`)
	assert.True(t, errs.IsValidation(ValidateChanges(badVersion)))
}

func TestNormalizeKeys(t *testing.T) {
	in := map[any]any{2030: map[any]any{"a": []any{map[any]any{1: "x"}}}}

	out := normalizeKeys(in)

	assert.Equal(t, map[string]any{"2030": map[string]any{"a": []any{map[string]any{"1": "x"}}}}, out)
}
