package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/recipe"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "02_atomic_changes_bake.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "atomic_changes_bake", s.Name)
	assert.Equal(t, "retrofit", s.Timeline)
	require.Len(t, s.Changes, 3)
	assert.Equal(t, "triple glazing", s.Changes["better_windows"].Description)
	v := s.Changes["better_windows"].Modifications["STANDARD2"]["window"]["U_win"]
	f, ok := v.Float()
	require.True(t, ok)
	assert.InDelta(t, 0.7, f, 1e-12)

	require.Len(t, s.Steps, 4)
	assert.Equal(t, OpApplyChanges, s.Steps[0].Op)
	assert.Equal(t, []string{"insulate_walls", "better_windows"}, s.Steps[0].Changes)
	assert.Nil(t, s.Steps[0].Expect)
	assert.Equal(t, "CONFLICT", s.Steps[1].Expect.Outcome)
	assert.Equal(t, []int{1980, 1990, 2000, 2022}, s.Steps[2].Expect.Created)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_KeepLeaf(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: keep
description: null leaves keep the current value
steps:
  - op: apply
    year: 2020
    recipe:
      STANDARD1: { wall: { thickness_1_m: 0.1, material_name_1: null } }
`))
	require.NoError(t, err)
	leaf := s.Steps[0].Recipe["STANDARD1"]["wall"]["material_name_1"]
	assert.True(t, leaf.IsKeep())
	assert.Equal(t, 1, s.Steps[0].Recipe.Len())
	assert.Equal(t, []recipe.Path{
		{Archetype: "STANDARD1", Component: "wall", Field: "material_name_1"},
		{Archetype: "STANDARD1", Component: "wall", Field: "thickness_1_m"},
	}, s.Steps[0].Recipe.Paths())
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: d\nstep: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{op: bake}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: x\nsteps: [{op: bake}]\n",
			want: "description is required",
		},
		{
			name: "unsafe timeline",
			yaml: "name: x\ndescription: d\ntimeline: ../up\nsteps: [{op: bake}]\n",
			want: "invalid scenario",
		},
		{
			name: "no steps",
			yaml: "name: x\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "unknown op",
			yaml: "name: x\ndescription: d\nsteps: [{op: explode}]\n",
			want: `steps[0]: unknown op "explode"`,
		},
		{
			name: "missing op",
			yaml: "name: x\ndescription: d\nsteps: [{year: 2020}]\n",
			want: "steps[0]: op is required",
		},
		{
			name: "apply without recipe",
			yaml: "name: x\ndescription: d\nsteps: [{op: apply, year: 2020}]\n",
			want: "recipe is required for apply",
		},
		{
			name: "apply-changes without changes",
			yaml: "name: x\ndescription: d\nsteps: [{op: apply-changes, year: 2020}]\n",
			want: "changes are required for apply-changes",
		},
		{
			name: "year op without year",
			yaml: "name: x\ndescription: d\nsteps: [{op: create-year}]\n",
			want: "year is required for create-year",
		},
		{
			name: "expect without outcome",
			yaml: "name: x\ndescription: d\nsteps: [{op: bake, expect: {created: [2020]}}]\n",
			want: "steps[0].expect: outcome is required",
		},
		{
			name: "empty change",
			yaml: "name: x\ndescription: d\nchanges: {nothing: {modifications: {}}}\nsteps: [{op: bake}]\n",
			want: "changes.nothing: modifications are required",
		},
		{
			name: "bad snapshot path",
			yaml: "name: x\ndescription: d\nsteps: [{op: bake}]\nsnapshot: [{year: 2020, paths: [wall]}]\n",
			want: "snapshot[0]",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ndescription: d\nsteps: [{op: bake}]\nassertions: [{type: vibes}]\n",
			want: `assertions[0]: unknown assertion type "vibes"`,
		},
		{
			name: "value without expect",
			yaml: "name: x\ndescription: d\nsteps: [{op: bake}]\nassertions: [{type: value, year: 2020, path: A.wall.U_wall}]\n",
			want: "expect is required for value",
		},
		{
			name: "years not a list",
			yaml: "name: x\ndescription: d\nsteps: [{op: bake}]\nassertions: [{type: years, expect: 2020}]\n",
			want: "expect must be a list of years",
		},
		{
			name: "reconciliations not a count",
			yaml: "name: x\ndescription: d\nsteps: [{op: bake}]\nassertions: [{type: reconciliations, year: 2020, expect: many}]\n",
			want: "expect must be a count",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("b.yaml", "name: second\ndescription: d\nsteps: [{op: bake}]\n")
	write("a.yml", "name: first\ndescription: d\nsteps: [{op: ensure}]\n")
	write("notes.txt", "not a scenario")

	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)

	write("c.yaml", "name: first\ndescription: d\nsteps: [{op: bake}]\n")
	_, err = LoadDir(dir)
	var fileErr *ScenarioFileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, filepath.Join(dir, "c.yaml"), fileErr.Path)
	assert.Contains(t, err.Error(), `scenario name "first" already used by a.yml`)
}
