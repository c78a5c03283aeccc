package recipe

import (
	"fmt"
	"strings"

	"github.com/roach88/strata/internal/errs"
)

// ConstructionTypeComponent is the pseudo-component whose fields are written
// straight onto the archetype row instead of forking an envelope code.
const ConstructionTypeComponent = "construction_type"

// Validate checks authoring rules that do not need any table:
//   - archetype, component and field names are non-empty
//   - material names and construction_type values are non-empty strings
//   - thickness fields are non-negative numbers
//
// All violations are reported together in one VALIDATION error.
func Validate(r Recipe) error {
	var problems []string
	for arch, comps := range r {
		if strings.TrimSpace(arch) == "" {
			problems = append(problems, "empty archetype name")
		}
		for comp := range comps {
			if strings.TrimSpace(comp) == "" {
				problems = append(problems, fmt.Sprintf("%s: empty component name", arch))
			}
		}
	}
	r.Walk(func(p Path, v Value) {
		if strings.TrimSpace(p.Field) == "" {
			problems = append(problems, fmt.Sprintf("%s.%s: empty field name", p.Archetype, p.Component))
			return
		}
		if v.IsKeep() {
			return
		}
		switch {
		case strings.HasPrefix(p.Field, "material_name"), p.Component == ConstructionTypeComponent:
			if s, ok := v.Str(); ok && strings.TrimSpace(s) == "" {
				problems = append(problems, fmt.Sprintf("%s: value must not be empty", p))
			}
		case strings.HasPrefix(p.Field, "thickness"):
			f, ok := v.Float()
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: thickness must be a number, got %s", p, v.Kind()))
			} else if f < 0 {
				problems = append(problems, fmt.Sprintf("%s: thickness must be non-negative, got %s", p, v.Format()))
			}
		}
	})
	if len(problems) > 0 {
		return errs.Validation("invalid modification recipe").WithKeys(problems...)
	}
	return nil
}
