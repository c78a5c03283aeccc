// Package validation wraps go-playground/validator with strata's custom rules
// and converts its errors into errs.Error values.
package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/strata/internal/errs"
)

var invalidNameChars = `/\:*?"<>|`

var reservedNames = []string{
	"CON", "PRN", "AUX", "NUL",
	"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
	"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
}

// validate is the shared validator instance, with custom rules registered
// in init.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("pathsafe", validatePathSafe)
}

// validatePathSafe accepts names usable as a folder name on every platform.
func validatePathSafe(fl validator.FieldLevel) bool {
	return checkName(fl.Field().String()) == ""
}

// checkName returns why name is unusable as a folder name, or "".
func checkName(name string) string {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return "must not be empty"
	case strings.ContainsAny(trimmed, invalidNameChars):
		return fmt.Sprintf("must not contain any of %s", strings.Join(strings.Split(invalidNameChars, ""), " "))
	case slices.Contains(reservedNames, strings.ToUpper(trimmed)):
		return fmt.Sprintf("%q is a reserved system name", trimmed)
	case strings.HasPrefix(trimmed, ".") || strings.HasSuffix(trimmed, "."):
		return "must not start or end with a period"
	case strings.HasSuffix(name, " "):
		return "must not end with a space"
	}
	return ""
}

// TimelineName validates and returns the trimmed timeline name.
func TimelineName(name string) (string, error) {
	if reason := checkName(strings.TrimLeft(name, " \t")); reason != "" {
		return "", errs.Validation("invalid timeline name %q: %s", name, reason)
	}
	return strings.TrimSpace(name), nil
}

// Struct validates v using its `validate` tags. Failures become a single
// VALIDATION error listing "Field: tag" pairs.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Validation("invalid %T: %v", v, err)
	}
	keys := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			keys = append(keys, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			keys = append(keys, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return errs.Validation("invalid %T", v).WithKeys(keys...)
}
