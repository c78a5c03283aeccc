package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/errs"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadTable_IndexMovesFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wall.csv")
	writeFile(t, path, "description,code,thickness_1_m\nbrick wall,WALL_AS1,0.3\n")

	tbl, err := CSV{}.ReadTable(path, "code")
	require.NoError(t, err)

	assert.Equal(t, []string{"code", "description", "thickness_1_m"}, tbl.Columns())
	v, ok := tbl.Get("WALL_AS1", "thickness_1_m")
	require.True(t, ok)
	assert.Equal(t, "0.3", v)
}

func TestReadTable_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := CSV{}.ReadTable(filepath.Join(dir, "missing.csv"), "code")
	assert.True(t, errs.IsNotFound(err))

	noIndex := filepath.Join(dir, "noindex.csv")
	writeFile(t, noIndex, "a,b\n1,2\n")
	_, err = CSV{}.ReadTable(noIndex, "code")
	assert.True(t, errs.IsValidation(err))

	dup := filepath.Join(dir, "dup.csv")
	writeFile(t, dup, "code,x\nA,1\nA,2\n")
	_, err = CSV{}.ReadTable(dup, "code")
	require.True(t, errs.IsValidation(err))
	assert.Contains(t, err.Error(), "- A")
}

func TestWriteTable_RoundTripKeepsCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.csv")
	content := "const_type,type_wall,type_roof\nSTANDARD1,WALL_AS1,ROOF_AS1\nSTANDARD2,WALL_AS2,\"ROOF, flat\"\n"
	writeFile(t, path, content)

	tbl, err := CSV{}.ReadTable(path, "const_type")
	require.NoError(t, err)
	require.NoError(t, CSV{}.WriteTable(path, tbl))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.NoFileExists(t, path+".tmp")
}

func TestTable_Mutations(t *testing.T) {
	tbl := New("code", "description", "U")
	tbl.Put("A", map[string]string{"description": "first", "U": "1"})
	tbl.Put("B", map[string]string{"description": "second", "extra": "x"})

	assert.Equal(t, []string{"A", "B"}, tbl.Keys())
	assert.Equal(t, []string{"code", "description", "U", "extra"}, tbl.Columns())

	require.NoError(t, tbl.Set("A", "new_col", "v"))
	v, _ := tbl.Get("A", "new_col")
	assert.Equal(t, "v", v)
	v, _ = tbl.Get("B", "new_col")
	assert.Equal(t, "", v)
	assert.Error(t, tbl.Set("missing", "U", "1"))

	clone := tbl.Clone()
	assert.Equal(t, 1, tbl.Delete("A", "nope"))
	assert.Equal(t, []string{"B"}, tbl.Keys())
	assert.True(t, clone.Has("A"))

	row, ok := clone.Row("A")
	require.True(t, ok)
	assert.Equal(t, "A", row["code"])
}
