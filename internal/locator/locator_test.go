package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocator_Paths(t *testing.T) {
	l := New("/scen", "retrofit")

	assert.Equal(t, filepath.FromSlash("/scen/inputs/database/archetypes/construction_types.csv"), l.Baseline(ConstructionTypes))
	assert.Equal(t, filepath.FromSlash("/scen/district_timelines/retrofit/state_2030"), l.StateDir(2030))
	assert.Equal(t, filepath.FromSlash("/scen/district_timelines/retrofit/state_2030/inputs/database/assemblies/envelope/wall.csv"), l.State(2030, EnvelopeWall))
	assert.Equal(t, filepath.FromSlash("/scen/district_timelines/retrofit/district_timeline_log.yml"), l.LogFile())
	assert.Equal(t, filepath.FromSlash("/scen/district_timelines/retrofit/state_2020/inputs/building-properties/schedules/B1001.csv"), l.ScheduleFile(2020, "B1001"))
}

func TestParseStateDir(t *testing.T) {
	y, ok := ParseStateDir("state_2025")
	require.True(t, ok)
	assert.Equal(t, 2025, y)

	for _, name := range []string{"state_", "state_20x5", "2025", "state_2025_bak"} {
		_, ok := ParseStateDir(name)
		assert.False(t, ok, name)
	}
}

func TestStateYears(t *testing.T) {
	l := New(t.TempDir(), "base")

	years, err := StateYears(l)
	require.NoError(t, err)
	assert.Empty(t, years)

	for _, d := range []string{"state_2030", "state_2020", "notes", "state_x"} {
		require.NoError(t, os.MkdirAll(filepath.Join(l.TimelineDir(), d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(l.TimelineDir(), "state_2040"), nil, 0o644))

	years, err = StateYears(l)
	require.NoError(t, err)
	assert.Equal(t, []int{2020, 2030}, years)
}
