package recipe

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/schema"
)

// Decode parses a YAML recipe document, checks its shape against the
// embedded schema and its values with Validate. name labels errors.
func Decode(data []byte, name string) (Recipe, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errs.Validation("recipe %s is empty", name)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Validation("recipe %s is not valid YAML: %v", name, err)
	}
	if err := schema.ValidateRecipe(doc); err != nil {
		return nil, fmt.Errorf("recipe %s: %w", name, err)
	}
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errs.Validation("recipe %s: %v", name, err)
	}
	if r == nil {
		r = Recipe{}
	}
	if err := Validate(r); err != nil {
		return nil, err
	}
	return r, nil
}

// ReadFile reads and decodes the recipe at path.
func ReadFile(path string) (Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFound("recipe file %s does not exist", path)
		}
		return nil, errs.IO("read", path, err)
	}
	return Decode(data, path)
}
