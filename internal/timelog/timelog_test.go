package timelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/recipe"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newFile(t *testing.T) *File {
	t.Helper()
	return NewFile(filepath.Join(t.TempDir(), "district_timeline_log.yml"))
}

func sampleLog() Log {
	e2020 := NewEntry(t0)
	e2020.Modifications = recipe.NewBuilder().
		Set("STANDARD1", "wall", "thickness_1_m", recipe.Number(0.1)).
		Set("STANDARD1", "wall", "material_name_1", recipe.Text("mineral_wool")).
		Build()
	e2020.LatestModifiedAt = Timestamp(t0.Add(time.Hour))
	e2020.BuildingEvents.NewBuildings = []string{"B1003"}

	e2030 := NewEntry(t0.Add(2 * time.Hour))
	e2030.Reconciliations = []Reconciliation{{
		TriggerYear:   2020,
		AppliedAt:     Timestamp(t0.Add(3 * time.Hour)),
		Modifications: recipe.NewBuilder().Set("STANDARD1", "wall", "thickness_1_m", recipe.Number(0.1)).Build(),
	}}
	e2030.LatestReconciledAt = Timestamp(t0.Add(3 * time.Hour))
	return Log{2030: e2030, 2020: e2020}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	f := newFile(t)
	want := sampleLog()

	require.NoError(t, f.Save(want))
	got, err := f.Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestSave_YearsAscendingAndStable(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.Save(sampleLog()))
	first, err := os.ReadFile(f.Path())
	require.NoError(t, err)

	require.NoError(t, f.Save(sampleLog()))
	second, err := os.ReadFile(f.Path())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Less(t, indexOf(string(first), "2020:"), indexOf(string(first), "2030:"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestSaveIfChanged(t *testing.T) {
	f := newFile(t)

	raw, err := f.Raw()
	require.NoError(t, err)
	assert.Nil(t, raw)

	// A missing file is always written, even for an empty log.
	saved, err := f.SaveIfChanged(Log{}, raw)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.FileExists(t, f.Path())

	require.NoError(t, f.Save(sampleLog()))
	raw, err = f.Raw()
	require.NoError(t, err)
	info, err := os.Stat(f.Path())
	require.NoError(t, err)

	saved, err = f.SaveIfChanged(sampleLog(), raw)
	require.NoError(t, err)
	assert.False(t, saved)
	after, err := os.Stat(f.Path())
	require.NoError(t, err)
	assert.True(t, os.SameFile(info, after))

	changed := sampleLog()
	changed[2030].LatestReconciledAt = Timestamp(t0.Add(4 * time.Hour))
	saved, err = f.SaveIfChanged(changed, raw)
	require.NoError(t, err)
	assert.True(t, saved)
	got, err := f.Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, changed, got)
}

func TestLoad_Missing(t *testing.T) {
	f := newFile(t)

	_, err := f.Load(LoadOptions{})
	assert.True(t, errs.IsNotFound(err))

	log, err := f.Load(LoadOptions{AllowMissing: true})
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestLoad_Empty(t *testing.T) {
	f := newFile(t)
	require.NoError(t, os.WriteFile(f.Path(), []byte("  \n# nothing yet\n"), 0o644))

	_, err := f.Load(LoadOptions{})
	assert.True(t, errs.IsValidation(err))

	log, err := f.Load(LoadOptions{AllowEmpty: true})
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"sequence top level", "- 2020\n- 2030\n"},
		{"scalar top level", "hello\n"},
		{"non-year key", "2020: {}\nnext: {}\n"},
		{"duplicate year", "2020: {}\n\"2020\": {}\n"},
		{"bad modifications", "2020:\n  modifications: [1]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc), "log", false)
			assert.True(t, errs.IsValidation(err), "got %v", err)
		})
	}
}

func TestDecode_CoercesKeysAndNormalizesNull(t *testing.T) {
	log, err := Decode([]byte("\"2025\":\n2020: null\n"), "log", false)
	require.NoError(t, err)

	assert.Equal(t, []int{2020, 2025}, log.Years())
	assert.Equal(t, recipe.Recipe{}, log[2020].Modifications)
	assert.Equal(t, []string{}, log[2025].BuildingEvents.NewBuildings)
}

func TestAddDelYear_Idempotent(t *testing.T) {
	f := newFile(t)

	require.NoError(t, f.AddYear(2025, t0))
	require.NoError(t, f.AddYear(2025, t0.Add(time.Hour)))
	log, err := f.Load(LoadOptions{})
	require.NoError(t, err)
	require.Contains(t, log, 2025)
	assert.Equal(t, Timestamp(t0), log[2025].CreatedAt)

	require.NoError(t, f.DelYear(2030))
	require.NoError(t, f.DelYear(2025))
	require.NoError(t, f.DelYear(2025))
	log, err = f.Load(LoadOptions{AllowEmpty: true})
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestClone_IsDeep(t *testing.T) {
	orig := sampleLog()
	c := orig.Clone()
	c[2020].Modifications.Set("STANDARD1", "wall", "thickness_1_m", recipe.Number(9))
	c[2030].Reconciliations[0].TriggerYear = 1999

	v, _ := orig[2020].Modifications.Get("STANDARD1", "wall", "thickness_1_m")
	assert.Equal(t, recipe.Number(0.1), v)
	assert.Equal(t, 2020, orig[2030].Reconciliations[0].TriggerYear)
}
