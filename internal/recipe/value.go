package recipe

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Tolerance is the absolute difference under which two numbers match.
var Tolerance = decimal.New(1, -9)

// Kind identifies the type held by a Value.
type Kind uint8

const (
	// KindKeep means "leave the current value untouched".
	KindKeep Kind = iota
	KindNumber
	KindString
	KindBool
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindKeep:
		return "keep"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Value is one field assignment in a recipe.
// The zero Value is Keep.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
}

// Keep returns the "no change" value.
func Keep() Value { return Value{} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int returns a numeric value from an integer.
func Int(i int64) Value { return Number(float64(i)) }

// Text returns a string value.
func Text(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// FromAny converts a decoded YAML/JSON scalar into a Value.
// nil becomes Keep.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Keep(), nil
	case Value:
		return val, nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(float64(val)), nil
	case int:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case uint64:
		return Number(float64(val)), nil
	case string:
		return Text(val), nil
	case bool:
		return Bool(val), nil
	default:
		return Value{}, fmt.Errorf("unsupported recipe value type %T", v)
	}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsKeep reports whether v leaves the current value untouched.
func (v Value) IsKeep() bool { return v.kind == KindKeep }

// Float returns the numeric value and whether v is a number.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Str returns the string value and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Any returns v as a plain Go scalar; Keep is nil.
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Format renders v the way it is written into a table cell.
// Numbers use the shortest exact decimal form; Keep renders as "".
func (v Value) Format() string {
	switch v.kind {
	case KindNumber:
		if math.IsInf(v.num, 0) || math.IsNaN(v.num) {
			return strconv.FormatFloat(v.num, 'g', -1, 64)
		}
		return decimal.NewFromFloat(v.num).String()
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.kind == KindKeep {
		return "null"
	}
	return v.Format()
}

// Matches reports whether a table cell holds v.
// Keep matches anything. Numbers match within Tolerance when the cell parses
// as a number; everything else compares trimmed strings.
func (v Value) Matches(cell string) bool {
	cell = strings.TrimSpace(cell)
	switch v.kind {
	case KindKeep:
		return true
	case KindNumber:
		actual, err := decimal.NewFromString(cell)
		if err != nil || math.IsInf(v.num, 0) || math.IsNaN(v.num) {
			return cell == v.Format()
		}
		return actual.Sub(decimal.NewFromFloat(v.num)).Abs().LessThanOrEqual(Tolerance)
	case KindBool:
		return strings.EqualFold(cell, v.Format())
	default:
		return cell == strings.TrimSpace(v.str)
	}
}

// MarshalYAML encodes Keep as null and scalars as themselves.
func (v Value) MarshalYAML() (any, error) {
	return v.Any(), nil
}

// UnmarshalYAML decodes a scalar node. Mappings and sequences are rejected.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: recipe value must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!null":
		*v = Keep()
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(strings.ReplaceAll(node.Value, "_", ""), 64)
		if err != nil {
			var i int64
			if derr := node.Decode(&i); derr != nil {
				return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
			}
			f = float64(i)
		}
		*v = Number(f)
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return fmt.Errorf("line %d: invalid bool %q", node.Line, node.Value)
		}
		*v = Bool(b)
	default:
		*v = Text(node.Value)
	}
	return nil
}
