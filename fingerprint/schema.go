package fingerprint

import (
	"fmt"
	"sort"
)

// Kind constrains the type of a schema field.
type Kind int

const (
	// KindAny accepts any scalar.
	KindAny Kind = iota
	// KindNumber accepts numeric values.
	KindNumber
	// KindString accepts categorical/string values.
	KindString
	// KindBool accepts booleans.
	KindBool
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "any"
	}
}

// Field describes one expected input field.
type Field struct {
	Kind     Kind
	Required bool

	// Min and Max bound numeric fields when set.
	Min *float64
	Max *float64

	// Allowed restricts string fields to a categorical set.
	// Compared against normalized (lower-cased) values.
	Allowed []string
}

// Schema validates normalized input for one model.
type Schema struct {
	Fields map[string]Field

	// AllowUnknown permits fields that are not declared in Fields.
	AllowUnknown bool
}

// Bound is a helper for populating Field.Min and Field.Max.
func Bound(v float64) *float64 { return &v }

// Validate checks normalized input against the schema. It returns the first
// violation in field-name order so errors are deterministic.
func (s Schema) Validate(in Input) error {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := s.Fields[name]
		v, ok := in[name]
		if !ok {
			if field.Required {
				return &InputError{Field: name, Reason: "missing required field"}
			}
			continue
		}
		if err := field.check(name, v); err != nil {
			return err
		}
	}

	if !s.AllowUnknown {
		for _, name := range in.Keys() {
			if _, ok := s.Fields[name]; !ok {
				return &InputError{Field: name, Reason: "unknown field"}
			}
		}
	}
	return nil
}

func (f Field) check(name string, v any) error {
	switch f.Kind {
	case KindNumber:
		n, ok := v.(float64)
		if !ok {
			return &InputError{Field: name, Reason: "expected number"}
		}
		if f.Min != nil && n < *f.Min {
			return &InputError{Field: name, Reason: fmt.Sprintf("value %v below minimum %v", n, *f.Min)}
		}
		if f.Max != nil && n > *f.Max {
			return &InputError{Field: name, Reason: fmt.Sprintf("value %v above maximum %v", n, *f.Max)}
		}
	case KindString:
		s, ok := v.(string)
		if !ok {
			return &InputError{Field: name, Reason: "expected string"}
		}
		if len(f.Allowed) > 0 && !contains(f.Allowed, s) {
			return &InputError{Field: name, Reason: fmt.Sprintf("value %q not allowed", s)}
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return &InputError{Field: name, Reason: "expected bool"}
		}
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if normalizeString(s) == v {
			return true
		}
	}
	return false
}
