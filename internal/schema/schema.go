// Package schema validates user-authored YAML documents against embedded CUE
// definitions before they are decoded into typed values.
//
// Two documents are user-authored: recipe files passed to `strata apply`
// and the per-timeline atomic change file. Both are checked structurally
// here; value rules (non-empty materials, non-negative thickness) live in
// recipe.Validate.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/strata/internal/errs"
)

//go:embed strata.cue
var schemaSource string

// Definitions exposed by the embedded schema.
const (
	DefRecipe  = "#Recipe"
	DefChanges = "#Changes"
)

var (
	mu       sync.Mutex
	once     sync.Once
	ctx      *cue.Context
	root     cue.Value
	buildErr error
)

func load() error {
	once.Do(func() {
		ctx = cuecontext.New()
		root = ctx.CompileString(schemaSource, cue.Filename("strata.cue"))
		buildErr = root.Err()
	})
	return buildErr
}

// ValidateRecipe checks a decoded recipe document.
func ValidateRecipe(doc any) error {
	return Validate(DefRecipe, doc)
}

// ValidateChanges checks a decoded atomic change document.
func ValidateChanges(doc any) error {
	return Validate(DefChanges, doc)
}

// Validate unifies doc with the named definition and requires a concrete
// result. Every CUE error is reported as a key of one VALIDATION error.
func Validate(def string, doc any) error {
	mu.Lock()
	defer mu.Unlock()

	if err := load(); err != nil {
		return fmt.Errorf("failed to compile embedded schema: %w", err)
	}
	schema := root.LookupPath(cue.ParsePath(def))
	if !schema.Exists() {
		return fmt.Errorf("schema definition %s not found", def)
	}

	v := ctx.Encode(normalizeKeys(doc))
	if err := v.Err(); err != nil {
		return errs.Validation("document cannot be represented: %v", err)
	}
	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return errs.Validation("document does not match %s", def).WithKeys(formatCUEErrors(err)...)
	}
	return nil
}

// formatCUEErrors flattens a CUE error list into sorted messages.
func formatCUEErrors(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		out = append(out, e.Error())
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	sort.Strings(out)
	return out
}

// normalizeKeys converts map[any]any (produced by yaml for non-string keys)
// into map[string]any so CUE can encode it.
func normalizeKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeKeys(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = normalizeKeys(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeKeys(e)
		}
		return out
	default:
		return v
	}
}
