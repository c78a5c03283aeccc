package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/strata/internal/table"
)

// Baseline files written by NewScenario, relative to the scenario root.
//
// Four buildings:
//   - B1001 STANDARD1, built 1990
//   - B1002 STANDARD2, built 2000
//   - B1003 STANDARD1, built 2022
//   - B1004 STANDARD2, built 1980, demolished 2028
var baselineFiles = map[string]string{
	"inputs/building-geometry/zone.csv": "name,year,demolished_year,height_ag\n" +
		"B1001,1990,,12\n" +
		"B1002,2000,,9\n" +
		"B1003,2022,,15\n" +
		"B1004,1980,2028,6\n",
	"inputs/building-properties/architecture.csv": "name,const_type,type_wall,type_roof,type_floor,type_base,type_win,Hs_ag\n" +
		"B1001,STANDARD1,WALL_AS1,ROOF_AS1,FLOOR_AS1,FLOOR_AS2,WIN_AS1,0.8\n" +
		"B1002,STANDARD2,WALL_AS2,ROOF_AS2,FLOOR_AS1,FLOOR_AS2,WIN_AS2,0.9\n" +
		"B1003,STANDARD1,WALL_AS1,ROOF_AS1,FLOOR_AS1,FLOOR_AS2,WIN_AS1,0.8\n" +
		"B1004,STANDARD2,WALL_AS2,ROOF_AS2,FLOOR_AS1,FLOOR_AS2,WIN_AS2,0.9\n",
	"inputs/building-properties/air_conditioning.csv": "name,type_cs,type_hs\n" +
		"B1001,HVAC_COOLING_AS1,HVAC_HEATING_AS1\n" +
		"B1002,HVAC_COOLING_AS1,HVAC_HEATING_AS2\n" +
		"B1003,HVAC_COOLING_AS2,HVAC_HEATING_AS1\n" +
		"B1004,HVAC_COOLING_AS1,HVAC_HEATING_AS1\n",
	"inputs/building-properties/internal_loads.csv": "name,Occ_m2p,El_Wm2\n" +
		"B1001,14,5\n" +
		"B1002,20,4\n" +
		"B1003,14,5\n" +
		"B1004,25,3\n",
	"inputs/building-properties/schedules/monthly_multipliers.csv": "name,JAN,FEB\n" +
		"B1001,1,1\n" +
		"B1002,1,0.9\n" +
		"B1003,1,1\n" +
		"B1004,0.8,0.8\n",
	"inputs/building-properties/schedules/B1001.csv": "hour,occupancy\n1,0.1\n",
	"inputs/building-properties/schedules/B1002.csv": "hour,occupancy\n1,0.2\n",
	"inputs/building-properties/schedules/B1003.csv": "hour,occupancy\n1,0.3\n",
	"inputs/building-properties/schedules/B1004.csv": "hour,occupancy\n1,0.4\n",
	"inputs/database/archetypes/construction_types.csv": "const_type,description,type_wall,type_roof,type_floor,type_base,type_win,Es\n" +
		"STANDARD1,residential 1990s,WALL_AS1,ROOF_AS1,FLOOR_AS1,FLOOR_AS2,WIN_AS1,0.82\n" +
		"STANDARD2,office 2000s,WALL_AS2,ROOF_AS2,FLOOR_AS1,FLOOR_AS2,WIN_AS2,0.9\n",
	"inputs/database/assemblies/envelope/wall.csv": "code,description,material_name_1,thickness_1_m,material_name_2,thickness_2_m,U_wall,Service_Life_wall\n" +
		"WALL_AS1,brick wall,brick,0.3,plaster,0.02,1.2,60\n" +
		"WALL_AS2,concrete wall,concrete,0.25,,,1.5,50\n",
	"inputs/database/assemblies/envelope/roof.csv": "code,description,material_name_1,thickness_1_m,U_roof,Service_Life_roof\n" +
		"ROOF_AS1,tiled roof,clay_tile,0.05,0.9,40\n" +
		"ROOF_AS2,flat roof,concrete,0.2,0.6,40\n",
	"inputs/database/assemblies/envelope/floor.csv": "code,description,material_name_1,thickness_1_m,U_base,Service_Life_floor\n" +
		"FLOOR_AS1,timber floor,timber,0.04,1.1,50\n" +
		"FLOOR_AS2,slab on grade,concrete,0.3,0.8,80\n",
	"inputs/database/assemblies/envelope/window.csv": "code,description,U_win,G_win,Service_Life_window\n" +
		"WIN_AS1,double glazing,2.8,0.6,30\n" +
		"WIN_AS2,triple glazing,0.9,0.5,30\n",
}

// NewScenario writes a small baseline scenario into a temp folder and
// returns its root.
func NewScenario(t testing.TB) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range baselineFiles {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("create %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return root
}

// Cell reads one cell of a CSV table, failing the test if it is missing.
func Cell(t testing.TB, path, index, key, col string) string {
	t.Helper()
	tbl, err := table.CSV{}.ReadTable(path, index)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	v, ok := tbl.Get(key, col)
	if !ok {
		t.Fatalf("%s has no cell (%s, %s)", path, key, col)
	}
	return v
}

// Keys returns the index values of a CSV table.
func Keys(t testing.TB, path, index string) []string {
	t.Helper()
	tbl, err := table.CSV{}.ReadTable(path, index)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return tbl.Keys()
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TreeFiles returns every file under root mapped to its content, keyed by
// slash-separated relative path. Used to compare whole folders.
func TreeFiles(t testing.TB, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("walk %s: %v", root, err)
	}
	return out
}
