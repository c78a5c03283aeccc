// Package table implements the tabular store collaborator: CSV files keyed by
// an index column, read and written whole.
//
// Cells are kept as strings exactly as read so that rewriting a table
// changes only the cells that were edited. Row order is preserved and new
// rows append. The index column is always written first; other columns keep
// their file order and new columns go to the right.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/fsutil"
)

// Store is the tabular read/write contract.
type Store interface {
	ReadTable(path, index string) (*Table, error)
	WriteTable(path string, t *Table) error
}

// Table is an in-memory CSV table keyed by one index column.
type Table struct {
	index   string
	columns []string
	keys    []string
	rows    map[string][]string
}

// New creates an empty table with the given columns. The index column is
// prepended when missing.
func New(index string, columns ...string) *Table {
	cols := []string{index}
	for _, c := range columns {
		if c != index && !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	return &Table{index: index, columns: cols, rows: map[string][]string{}}
}

// Index returns the index column name.
func (t *Table) Index() string { return t.index }

// Columns returns a copy of the column names in file order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(col string) bool { return slices.Contains(t.columns, col) }

// Keys returns the index values in row order.
func (t *Table) Keys() []string { return slices.Clone(t.keys) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.keys) }

// Has reports whether a row exists.
func (t *Table) Has(key string) bool {
	_, ok := t.rows[key]
	return ok
}

// Row returns a copy of a row as column → cell.
func (t *Table) Row(key string) (map[string]string, bool) {
	cells, ok := t.rows[key]
	if !ok {
		return nil, false
	}
	row := make(map[string]string, len(t.columns))
	for i, c := range t.columns {
		row[c] = cells[i]
	}
	return row, true
}

// Get returns a single cell.
func (t *Table) Get(key, col string) (string, bool) {
	cells, ok := t.rows[key]
	if !ok {
		return "", false
	}
	i := slices.Index(t.columns, col)
	if i < 0 {
		return "", false
	}
	return cells[i], true
}

// Set writes a single cell, adding the column if needed.
// It fails when the row does not exist.
func (t *Table) Set(key, col, value string) error {
	cells, ok := t.rows[key]
	if !ok {
		return fmt.Errorf("row %q not found", key)
	}
	i := slices.Index(t.columns, col)
	if i < 0 {
		t.AddColumn(col)
		cells = t.rows[key]
		i = len(t.columns) - 1
	}
	cells[i] = value
	return nil
}

// Put inserts or replaces a row. Columns unknown to the table are added;
// columns missing from row are left empty. The index cell is forced to key.
func (t *Table) Put(key string, row map[string]string) {
	for _, c := range sortedMissing(t.columns, row) {
		t.AddColumn(c)
	}
	cells := make([]string, len(t.columns))
	for i, c := range t.columns {
		cells[i] = row[c]
	}
	cells[0] = key
	if _, ok := t.rows[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.rows[key] = cells
}

// Delete removes rows and returns how many existed.
func (t *Table) Delete(keys ...string) int {
	n := 0
	for _, k := range keys {
		if _, ok := t.rows[k]; !ok {
			continue
		}
		delete(t.rows, k)
		t.keys = slices.DeleteFunc(t.keys, func(s string) bool { return s == k })
		n++
	}
	return n
}

// AddColumn appends an empty column if it does not exist.
func (t *Table) AddColumn(col string) {
	if t.HasColumn(col) {
		return
	}
	t.columns = append(t.columns, col)
	for k, cells := range t.rows {
		t.rows[k] = append(cells, "")
	}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		index:   t.index,
		columns: slices.Clone(t.columns),
		keys:    slices.Clone(t.keys),
		rows:    make(map[string][]string, len(t.rows)),
	}
	for k, cells := range t.rows {
		out.rows[k] = slices.Clone(cells)
	}
	return out
}

// CSV is the filesystem Store.
type CSV struct{}

// ReadTable parses a CSV file whose header contains index.
// Missing files surface as NOT_FOUND; duplicate index values as VALIDATION.
func (CSV) ReadTable(path, index string) (*Table, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.NotFound("table %s does not exist", path)
	}
	if err != nil {
		return nil, errs.IO("read", path, err)
	}
	return Parse(data, index, path)
}

// WriteTable writes the table atomically (temp file, then rename).
func (CSV) WriteTable(path string, t *Table) error {
	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(path, data)
}

// Parse decodes CSV bytes. name is only used in error messages.
func Parse(data []byte, index, name string) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errs.Validation("malformed table %s: %v", name, err)
	}
	if len(records) == 0 {
		return nil, errs.Validation("table %s has no header", name)
	}
	header := records[0]
	pos := slices.Index(header, index)
	if pos < 0 {
		return nil, errs.Validation("table %s has no %q column", name, index)
	}

	t := &Table{index: index, rows: map[string][]string{}}
	t.columns = append([]string{index}, slices.Delete(slices.Clone(header), pos, pos+1)...)
	var dups []string
	for _, rec := range records[1:] {
		if len(rec) == 1 && rec[0] == "" {
			continue
		}
		cells := make([]string, len(header))
		copy(cells, rec)
		key := cells[pos]
		reordered := append([]string{key}, slices.Delete(cells, pos, pos+1)...)
		if _, ok := t.rows[key]; ok {
			dups = append(dups, key)
			continue
		}
		t.keys = append(t.keys, key)
		t.rows[key] = reordered
	}
	if len(dups) > 0 {
		return nil, errs.Validation("table %s has duplicate %s values", name, index).WithKeys(dups...)
	}
	return t, nil
}

// Encode renders the table as CSV with the index as the first column.
func (t *Table) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.columns); err != nil {
		return nil, err
	}
	for _, k := range t.keys {
		if err := w.Write(t.rows[k]); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func sortedMissing(columns []string, row map[string]string) []string {
	var missing []string
	for c := range row {
		if !slices.Contains(columns, c) {
			missing = append(missing, c)
		}
	}
	slices.Sort(missing)
	return missing
}
