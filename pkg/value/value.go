package value

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// TypeTag is the runtime type of a Variant. Puzzle mechanics (door locks,
// pickup filters, weapon weaknesses) compare tags, never values.
type TypeTag string

const (
	TagString  TypeTag = "string"
	TagNumber  TypeTag = "number"
	TagBoolean TypeTag = "boolean"
)

// ParseTag converts a tag name into a TypeTag.
func ParseTag(s string) (TypeTag, error) {
	t := TypeTag(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown type tag %q (expected string, number or boolean)", s)
	}
	return t, nil
}

func (t TypeTag) Valid() bool {
	switch t {
	case TagString, TagNumber, TagBoolean:
		return true
	}
	return false
}

// Complement is the weakness a phase-shifting enemy takes on after a hit.
// string and number swap; boolean falls back to string.
func (t TypeTag) Complement() TypeTag {
	switch t {
	case TagString:
		return TagNumber
	case TagNumber:
		return TagString
	default:
		return TagString
	}
}

func (t TypeTag) String() string {
	return string(t)
}

// Variant is a scalar tagged with its runtime type.
type Variant struct {
	Tag  TypeTag
	Str  string
	Num  float64
	Bool bool
}

func String(s string) Variant {
	return Variant{Tag: TagString, Str: s}
}

func Number(n float64) Variant {
	return Variant{Tag: TagNumber, Num: n}
}

func Boolean(b bool) Variant {
	return Variant{Tag: TagBoolean, Bool: b}
}

// Of builds a Variant from a Go scalar. Integer and float kinds map to number.
func Of(v any) (Variant, error) {
	switch x := v.(type) {
	case string:
		return String(x), nil
	case bool:
		return Boolean(x), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case float64:
		return Number(x), nil
	case Variant:
		return x, nil
	default:
		return Variant{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// SameTag reports whether two variants carry the same type tag.
func (v Variant) SameTag(o Variant) bool {
	return v.Tag == o.Tag
}

// Interface returns the underlying scalar.
func (v Variant) Interface() any {
	switch v.Tag {
	case TagString:
		return v.Str
	case TagNumber:
		return v.Num
	case TagBoolean:
		return v.Bool
	}
	return nil
}

// String renders the value the way a learner would type it: strings quoted.
func (v Variant) String() string {
	switch v.Tag {
	case TagString:
		return strconv.Quote(v.Str)
	case TagNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case TagBoolean:
		return strconv.FormatBool(v.Bool)
	}
	return "undefined"
}

func (v Variant) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Variant) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Of(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Variant) MarshalYAML() (any, error) {
	return v.Interface(), nil
}

// UnmarshalYAML keeps the scalar's YAML type: "10" is a string, 10 a number.
func (v *Variant) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: value must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!str":
		*v = String(node.Value)
	case "!!int", "!!float":
		n, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid number %q: %w", node.Line, node.Value, err)
		}
		*v = Number(n)
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return fmt.Errorf("line %d: invalid boolean %q: %w", node.Line, node.Value, err)
		}
		*v = Boolean(b)
	default:
		return fmt.Errorf("line %d: unsupported value type %s", node.Line, node.ShortTag())
	}
	return nil
}
