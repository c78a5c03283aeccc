// Package changes stores named, reusable atomic changes for a timeline and
// resolves a selection of them into one recipe.
//
// An atomic change is a small recipe with a name and a description, kept in
// the timeline's atomic_changes.yml. Resolving several changes fails closed:
// if two of them write the same (archetype, component, field) the whole
// selection is rejected, listing every colliding key, instead of letting
// order decide silently.
package changes

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/fsutil"
	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/schema"
	"github.com/roach88/strata/internal/validation"
)

// Change is one named atomic change.
type Change struct {
	Name          string        `yaml:"-" json:"name" validate:"required,max=128,pathsafe"`
	Description   string        `yaml:"description,omitempty" json:"description,omitempty"`
	Version       int           `yaml:"version,omitempty" json:"version"`
	Modifications recipe.Recipe `yaml:"modifications" json:"-"`
}

// Store is the atomic change file of one timeline.
type Store struct {
	path string
}

// NewStore returns a store backed by path. The file is created on first Put.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// List returns every change sorted by name.
func (s *Store) List() ([]Change, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Change, 0, len(all))
	for _, name := range sortedNames(all) {
		out = append(out, *all[name])
	}
	return out, nil
}

// Get returns one change or NOT_FOUND.
func (s *Store) Get(name string) (Change, error) {
	all, err := s.load()
	if err != nil {
		return Change{}, err
	}
	c, ok := all[name]
	if !ok {
		return Change{}, errs.NotFound("atomic change %q does not exist", name)
	}
	return *c, nil
}

// Put creates a change at version 1, or stores a new version of an existing
// one. The stored change is returned.
func (s *Store) Put(c Change) (Change, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := validation.Struct(c); err != nil {
		return Change{}, err
	}
	if c.Modifications.Compact().IsEmpty() {
		return Change{}, errs.Validation("atomic change %q has no modifications", c.Name)
	}
	if err := recipe.Validate(c.Modifications); err != nil {
		return Change{}, err
	}

	all, err := s.load()
	if err != nil {
		return Change{}, err
	}
	c.Version = 1
	if prev, ok := all[c.Name]; ok {
		c.Version = prev.Version + 1
	}
	c.Modifications = c.Modifications.Clone()
	all[c.Name] = &c
	if err := s.save(all); err != nil {
		return Change{}, err
	}
	return c, nil
}

// Delete removes a change or returns NOT_FOUND.
func (s *Store) Delete(name string) error {
	all, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := all[name]; !ok {
		return errs.NotFound("atomic change %q does not exist", name)
	}
	delete(all, name)
	return s.save(all)
}

// Select returns the named changes in the given order. Unknown names are
// reported together in one NOT_FOUND error.
func (s *Store) Select(names []string) ([]Change, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	var missing []string
	out := make([]Change, 0, len(names))
	for _, n := range names {
		c, ok := all[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		out = append(out, *c)
	}
	if len(missing) > 0 {
		return nil, errs.NotFound("unknown atomic changes").WithKeys(missing...)
	}
	return out, nil
}

// Detect reports every key written by more than one of the named changes.
func (s *Store) Detect(names []string) ([]Conflict, error) {
	selected, err := s.Select(names)
	if err != nil {
		return nil, err
	}
	return DetectConflicts(selected), nil
}

// Resolve merges the named changes, in order, into one recipe.
// Unknown names fail with NOT_FOUND; overlapping keys fail with CONFLICT.
func (s *Store) Resolve(names []string) (recipe.Recipe, error) {
	if len(names) == 0 {
		return nil, errs.Validation("no atomic changes selected")
	}
	selected, err := s.Select(names)
	if err != nil {
		return nil, err
	}
	return Resolve(selected)
}

// Resolve merges already-loaded changes. See Store.Resolve.
func Resolve(selected []Change) (recipe.Recipe, error) {
	if conflicts := DetectConflicts(selected); len(conflicts) > 0 {
		keys := make([]string, len(conflicts))
		for i, c := range conflicts {
			keys[i] = c.String()
		}
		return nil, errs.Conflict("%d field(s) are modified by more than one atomic change", len(conflicts)).WithKeys(keys...)
	}
	recipes := make([]recipe.Recipe, len(selected))
	for i, c := range selected {
		recipes[i] = c.Modifications
	}
	return recipe.Merge(recipes...), nil
}

func (s *Store) load() (map[string]*Change, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]*Change{}, nil
	}
	if err != nil {
		return nil, errs.IO("read", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]*Change{}, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Validation("atomic change file %s is not valid YAML: %v", s.path, err)
	}
	if doc == nil {
		return map[string]*Change{}, nil
	}
	if err := schema.ValidateChanges(doc); err != nil {
		return nil, fmt.Errorf("atomic change file %s: %w", s.path, err)
	}

	all := map[string]*Change{}
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, errs.Validation("atomic change file %s: %v", s.path, err)
	}
	for name, c := range all {
		if c == nil {
			c = &Change{}
			all[name] = c
		}
		c.Name = name
		if c.Version == 0 {
			c.Version = 1
		}
		if c.Modifications == nil {
			c.Modifications = recipe.Recipe{}
		}
	}
	return all, nil
}

func (s *Store) save(all map[string]*Change) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(all); err != nil {
		return fmt.Errorf("failed to encode atomic changes: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path, buf.Bytes())
}

func sortedNames(all map[string]*Change) []string {
	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
