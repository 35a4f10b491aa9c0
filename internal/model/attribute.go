package model

import (
	"strconv"
	"strings"
	"time"
)

// ValueKind identifies which field of a Value is set
type ValueKind int

const (
	KindNull ValueKind = iota
	KindText
	KindInteger
	KindFloat
	KindDate
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	}
	return "null"
}

// Value is one typed attribute cell
type Value struct {
	Kind  ValueKind
	Text  string
	Int   int64
	Float float64
	Date  time.Time
	Bool  bool
}

func TextValue(s string) Value    { return Value{Kind: KindText, Text: s} }
func IntValue(i int64) Value      { return Value{Kind: KindInteger, Int: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Date: t} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func NullValue() Value            { return Value{} }
func (v Value) IsNull() bool      { return v.Kind == KindNull }

// Number returns the value as float64 for integer and float kinds
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInteger:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}

// String formats the value as text. Null formats as the empty string.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindDate:
		return v.Date.Format("2006-01-02")
	case KindBool:
		return strconv.FormatBool(v.Bool)
	}
	return ""
}

// AttributeRow is an ordered mapping from field name to value.
// Field names are unique within a row.
type AttributeRow struct {
	names  []string
	values []Value
	index  map[string]int
}

// NewAttributeRow creates an empty row with room for n fields
func NewAttributeRow(n int) *AttributeRow {
	return &AttributeRow{
		names:  make([]string, 0, n),
		values: make([]Value, 0, n),
		index:  make(map[string]int, n),
	}
}

// Set stores v under name, replacing an existing value of the same name
func (r *AttributeRow) Set(name string, v Value) {
	if i, ok := r.index[name]; ok {
		r.values[i] = v
		return
	}
	r.index[name] = len(r.names)
	r.names = append(r.names, name)
	r.values = append(r.values, v)
}

// Get looks up a field by name. An exact match wins; otherwise the first
// case-insensitive match is returned, since DBF field names are usually
// stored upper case.
func (r *AttributeRow) Get(name string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	if i, ok := r.index[name]; ok {
		return r.values[i], true
	}
	for i, n := range r.names {
		if strings.EqualFold(n, name) {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Len returns the number of fields
func (r *AttributeRow) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Names returns the field names in table order
func (r *AttributeRow) Names() []string {
	if r == nil {
		return nil
	}
	return r.names
}

// At returns the i-th field name and value
func (r *AttributeRow) At(i int) (string, Value) {
	return r.names[i], r.values[i]
}
