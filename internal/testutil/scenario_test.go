package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewScenario_WritesReadableTables(t *testing.T) {
	root := NewScenario(t)

	types := filepath.Join(root, "inputs", "database", "archetypes", "construction_types.csv")
	assert.Equal(t, "WALL_AS1", Cell(t, types, "const_type", "STANDARD1", "type_wall"))
	assert.Equal(t, []string{"B1001", "B1002", "B1003", "B1004"}, Keys(t, filepath.Join(root, "inputs", "building-geometry", "zone.csv"), "name"))

	files := TreeFiles(t, filepath.Join(root, "inputs"))
	assert.Len(t, files, len(baselineFiles))
	assert.Contains(t, files, "building-properties/schedules/B1004.csv")
}
