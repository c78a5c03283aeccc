// Package timelog reads and writes a timeline's event log.
//
// The log is a YAML mapping from calendar year to Entry. It is the single
// source of truth for which state years exist and what each year changed;
// materialized state folders are derived from it.
//
// The file is always rewritten whole, with years in ascending order, so two
// saves of the same Log produce identical bytes.
package timelog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/fsutil"
	"github.com/roach88/strata/internal/locator"
	"github.com/roach88/strata/internal/recipe"
)

// BuildingEvents records buildings appearing or disappearing in a year.
type BuildingEvents struct {
	NewBuildings        []string `yaml:"new_buildings"`
	DemolishedBuildings []string `yaml:"demolished_buildings"`
}

// Reconciliation records a change applied to a year because an earlier
// year's modifications changed. It never alters the year's own
// Modifications.
type Reconciliation struct {
	TriggerYear   int           `yaml:"trigger_year"`
	AppliedAt     string        `yaml:"applied_at"`
	Modifications recipe.Recipe `yaml:"modifications"`
}

// Entry is one year of the event log.
type Entry struct {
	CreatedAt          string           `yaml:"created_at"`
	LatestModifiedAt   string           `yaml:"latest_modified_at,omitempty"`
	LatestReconciledAt string           `yaml:"latest_reconciled_at,omitempty"`
	Modifications      recipe.Recipe    `yaml:"modifications"`
	BuildingEvents     BuildingEvents   `yaml:"building_events"`
	Reconciliations    []Reconciliation `yaml:"reconciliations,omitempty"`
}

// NewEntry returns an empty entry stamped with now.
func NewEntry(now time.Time) *Entry {
	e := &Entry{CreatedAt: Timestamp(now)}
	e.normalize()
	return e
}

// Timestamp formats a time the way the log stores it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// normalize replaces nil collections with empty ones so that a freshly
// created entry and a loaded one compare equal.
func (e *Entry) normalize() {
	if e.Modifications == nil {
		e.Modifications = recipe.Recipe{}
	}
	if e.BuildingEvents.NewBuildings == nil {
		e.BuildingEvents.NewBuildings = []string{}
	}
	if e.BuildingEvents.DemolishedBuildings == nil {
		e.BuildingEvents.DemolishedBuildings = []string{}
	}
	if len(e.Reconciliations) == 0 {
		e.Reconciliations = nil
	}
	for i := range e.Reconciliations {
		if e.Reconciliations[i].Modifications == nil {
			e.Reconciliations[i].Modifications = recipe.Recipe{}
		}
	}
}

// Log is the decoded event log keyed by year.
type Log map[int]*Entry

// Years returns the logged years in ascending order.
func (l Log) Years() []int {
	return locator.SortedYears(l)
}

// Has reports whether year is logged.
func (l Log) Has(year int) bool {
	_, ok := l[year]
	return ok
}

// Clone returns a deep copy.
func (l Log) Clone() Log {
	out := make(Log, len(l))
	for y, e := range l {
		c := *e
		c.Modifications = e.Modifications.Clone()
		c.BuildingEvents.NewBuildings = append([]string{}, e.BuildingEvents.NewBuildings...)
		c.BuildingEvents.DemolishedBuildings = append([]string{}, e.BuildingEvents.DemolishedBuildings...)
		c.Reconciliations = nil
		for _, r := range e.Reconciliations {
			r.Modifications = r.Modifications.Clone()
			c.Reconciliations = append(c.Reconciliations, r)
		}
		out[y] = &c
	}
	return out
}

// LoadOptions relaxes Load for callers that may run before the log exists.
type LoadOptions struct {
	AllowMissing bool
	AllowEmpty   bool
}

// File is the handle to one event log file.
type File struct {
	path string
}

// NewFile returns a handle for the log at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the log path.
func (f *File) Path() string { return f.path }

// Load parses the log.
//
// Errors:
//   - NOT_FOUND when the file is missing and AllowMissing is false
//   - VALIDATION when the file is empty and AllowEmpty is false
//   - VALIDATION when the top level is not a mapping or a key is not a year
func (f *File) Load(opts LoadOptions) (Log, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		if opts.AllowMissing {
			return Log{}, nil
		}
		return nil, errs.NotFound("event log %s does not exist", f.path)
	}
	if err != nil {
		return nil, errs.IO("read", f.path, err)
	}
	return Decode(data, f.path, opts.AllowEmpty)
}

// Decode parses log bytes. name is only used in error messages.
func Decode(data []byte, name string, allowEmpty bool) (Log, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Validation("event log %s is not valid YAML: %v", name, err)
	}
	if len(doc.Content) == 0 || (doc.Content[0].Kind == yaml.ScalarNode && doc.Content[0].ShortTag() == "!!null") {
		if allowEmpty {
			return Log{}, nil
		}
		return nil, errs.Validation("event log %s is empty", name)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errs.Validation("event log %s must be a mapping of year to entry", name)
	}

	log := Log{}
	var problems []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		year, err := strconv.Atoi(strings.TrimSpace(key.Value))
		if err != nil {
			problems = append(problems, fmt.Sprintf("line %d: key %q is not a year", key.Line, key.Value))
			continue
		}
		if _, dup := log[year]; dup {
			problems = append(problems, fmt.Sprintf("line %d: year %d appears twice", key.Line, year))
			continue
		}
		entry := &Entry{}
		if val.ShortTag() != "!!null" {
			if err := val.Decode(entry); err != nil {
				problems = append(problems, fmt.Sprintf("year %d: %v", year, err))
				continue
			}
		}
		entry.normalize()
		log[year] = entry
	}
	if len(problems) > 0 {
		return nil, errs.Validation("event log %s is invalid", name).WithKeys(problems...)
	}
	return log, nil
}

// Encode renders the log with years ascending.
func Encode(log Log) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, year := range log.Years() {
		entry := log[year]
		if entry == nil {
			entry = &Entry{}
		}
		entry.normalize()
		var val yaml.Node
		if err := val.Encode(entry); err != nil {
			return nil, fmt.Errorf("failed to encode year %d: %w", year, err)
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(year)}
		root.Content = append(root.Content, key, &val)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if len(root.Content) == 0 {
		root.Style = yaml.FlowStyle
	}
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("failed to encode event log: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save rewrites the whole log atomically.
func (f *File) Save(log Log) error {
	data, err := Encode(log)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(f.path, data)
}

// Raw returns the log file bytes, or nil when the file does not exist.
func (f *File) Raw() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.IO("read", f.path, err)
	}
	return data, nil
}

// SaveIfChanged saves log unless it encodes to exactly prev, the bytes
// returned by Raw. It reports whether the file was written.
func (f *File) SaveIfChanged(log Log, prev []byte) (bool, error) {
	data, err := Encode(log)
	if err != nil {
		return false, err
	}
	if prev != nil && bytes.Equal(data, prev) {
		return false, nil
	}
	return true, fsutil.WriteFileAtomic(f.path, data)
}

// AddYear inserts an empty entry for year and persists the log.
// It is a no-op when the year is already logged.
func (f *File) AddYear(year int, now time.Time) error {
	log, err := f.Load(LoadOptions{AllowMissing: true, AllowEmpty: true})
	if err != nil {
		return err
	}
	if log.Has(year) {
		return nil
	}
	log[year] = NewEntry(now)
	return f.Save(log)
}

// DelYear removes year from the log and persists it.
// It is a no-op when the year is absent or the log does not exist.
func (f *File) DelYear(year int) error {
	log, err := f.Load(LoadOptions{AllowMissing: true, AllowEmpty: true})
	if err != nil {
		return err
	}
	if !log.Has(year) {
		return nil
	}
	delete(log, year)
	return f.Save(log)
}
