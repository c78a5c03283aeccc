package recipe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/strata/internal/errs"
)

// Fields maps a field name to its new value.
type Fields map[string]Value

// Components maps a component name (wall, roof, floor, window,
// construction_type) to its field assignments.
type Components map[string]Fields

// Recipe maps an archetype name to its component edits.
type Recipe map[string]Components

// Path addresses a single leaf of a recipe.
type Path struct {
	Archetype string
	Component string
	Field     string
}

// String renders the path as archetype.component.field.
func (p Path) String() string {
	return fmt.Sprintf("%s.%s.%s", p.Archetype, p.Component, p.Field)
}

// ParsePath parses archetype.component.field.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 || hasBlank(parts) {
		return Path{}, errs.Validation("recipe path %q must be archetype.component.field", s)
	}
	return Path{Archetype: parts[0], Component: parts[1], Field: parts[2]}, nil
}

func hasBlank(parts []string) bool {
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return true
		}
	}
	return false
}

// Set assigns a leaf, creating intermediate maps as needed.
func (r Recipe) Set(archetype, component, field string, v Value) {
	comps, ok := r[archetype]
	if !ok {
		comps = Components{}
		r[archetype] = comps
	}
	fields, ok := comps[component]
	if !ok {
		fields = Fields{}
		comps[component] = fields
	}
	fields[field] = v
}

// Get returns a leaf and whether it is present.
func (r Recipe) Get(archetype, component, field string) (Value, bool) {
	v, ok := r[archetype][component][field]
	return v, ok
}

// IsEmpty reports whether the recipe names no archetypes.
func (r Recipe) IsEmpty() bool { return len(r) == 0 }

// Clone returns a deep copy.
func (r Recipe) Clone() Recipe {
	out := make(Recipe, len(r))
	for arch, comps := range r {
		cc := make(Components, len(comps))
		for comp, fields := range comps {
			ff := make(Fields, len(fields))
			for f, v := range fields {
				ff[f] = v
			}
			cc[comp] = ff
		}
		out[arch] = cc
	}
	return out
}

// Archetypes returns archetype names in sorted order.
func (r Recipe) Archetypes() []string {
	return sortedKeys(r)
}

// Walk visits every leaf in sorted (archetype, component, field) order.
func (r Recipe) Walk(fn func(p Path, v Value)) {
	for _, arch := range sortedKeys(r) {
		comps := r[arch]
		for _, comp := range sortedKeys(comps) {
			fields := comps[comp]
			for _, f := range sortedKeys(fields) {
				fn(Path{Archetype: arch, Component: comp, Field: f}, fields[f])
			}
		}
	}
}

// Paths returns every leaf path, Keep leaves included, in sorted order.
func (r Recipe) Paths() []Path {
	var paths []Path
	r.Walk(func(p Path, _ Value) { paths = append(paths, p) })
	return paths
}

// Compact returns a copy without Keep leaves or empty branches.
func (r Recipe) Compact() Recipe {
	out := Recipe{}
	r.Walk(func(p Path, v Value) {
		if !v.IsKeep() {
			out.Set(p.Archetype, p.Component, p.Field, v)
		}
	})
	return out
}

// Len returns the number of non-Keep leaves.
func (r Recipe) Len() int {
	n := 0
	r.Walk(func(_ Path, v Value) {
		if !v.IsKeep() {
			n++
		}
	})
	return n
}

// Equal reports whether two recipes hold the same leaves.
func Equal(a, b Recipe) bool {
	if len(a.Paths()) != len(b.Paths()) {
		return false
	}
	equal := true
	a.Walk(func(p Path, v Value) {
		other, ok := b.Get(p.Archetype, p.Component, p.Field)
		if !ok || other != v {
			equal = false
		}
	})
	return equal
}

// Merge deep-merges recipes left to right. Later set values overwrite earlier
// ones; a later Keep never erases an earlier set value. Inputs are not
// modified.
func Merge(recipes ...Recipe) Recipe {
	out := Recipe{}
	for _, r := range recipes {
		r.Walk(func(p Path, v Value) {
			if v.IsKeep() {
				if _, ok := out.Get(p.Archetype, p.Component, p.Field); ok {
					return
				}
			}
			out.Set(p.Archetype, p.Component, p.Field, v)
		})
	}
	return out
}

// Builder assembles a Recipe fluently.
//
//	r := recipe.NewBuilder().
//		Set("STANDARD1", "wall", "thickness_1_m", recipe.Number(0.15)).
//		Build()
type Builder struct {
	r Recipe
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{r: Recipe{}}
}

// Set assigns a leaf.
func (b *Builder) Set(archetype, component, field string, v Value) *Builder {
	b.r.Set(archetype, component, field, v)
	return b
}

// Keep records a field explicitly left untouched.
func (b *Builder) Keep(archetype, component, field string) *Builder {
	b.r.Set(archetype, component, field, Keep())
	return b
}

// Build returns the assembled recipe.
func (b *Builder) Build() Recipe {
	return b.r.Clone()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
