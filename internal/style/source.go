// Package style resolves per-record display properties from fixed settings
// or from attribute table fields.
package style

import (
	"fmt"
	"strings"
)

type sourceKind int

const (
	kindCurrent sourceKind = iota // Layer default
	kindFixed
	kindField
)

// Source says where one styleable property comes from. The zero value
// uses the destination's current default.
type Source[T any] struct {
	kind  sourceKind
	field string
	value T
}

// Current uses the destination's current default for the property
func Current[T any]() Source[T] { return Source[T]{} }

// Fixed uses v for every record
func Fixed[T any](v T) Source[T] { return Source[T]{kind: kindFixed, value: v} }

// FromField reads the property from the named attribute field
func FromField[T any](name string) Source[T] { return Source[T]{kind: kindField, field: name} }

// IsCurrent reports whether the source defers to the destination default
func (s Source[T]) IsCurrent() bool { return s.kind == kindCurrent }

// Field returns the field name of a FromField source and whether it is one
func (s Source[T]) Field() (string, bool) { return s.field, s.kind == kindField }

// Value returns the value of a Fixed source and whether it is one
func (s Source[T]) Value() (T, bool) { return s.value, s.kind == kindFixed }

func (s Source[T]) String() string {
	switch s.kind {
	case kindFixed:
		return fmt.Sprintf("%v", s.value)
	case kindField:
		return "field:" + s.field
	}
	return "current"
}

const fieldPrefix = "field:"

// Parse reads a source setting: "" or "current" selects the default,
// "field:NAME" reads the named field, anything else is parsed as a fixed value.
func Parse[T any](setting string, parse func(string) (T, error)) (Source[T], error) {
	s := strings.TrimSpace(setting)
	switch {
	case s == "" || strings.EqualFold(s, "current"):
		return Current[T](), nil
	case len(s) >= len(fieldPrefix) && strings.EqualFold(s[:len(fieldPrefix)], fieldPrefix):
		name := strings.TrimSpace(s[len(fieldPrefix):])
		if name == "" {
			return Source[T]{}, fmt.Errorf("empty field name in %q", setting)
		}
		return FromField[T](name), nil
	}
	v, err := parse(s)
	if err != nil {
		return Source[T]{}, fmt.Errorf("parse %q: %w", setting, err)
	}
	return Fixed(v), nil
}
