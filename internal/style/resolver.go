package style

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dyuri/shpimport/internal/model"
)

// ErrMissingField reports a FromField source whose field is absent from the
// row or whose value does not convert to the property's type
var ErrMissingField = errors.New("missing field")

// Resolve returns the value for one property. Fixed values are returned
// as is, Current returns fallback, and FromField converts the row's value
// with coerce. A missing or unconvertible field yields fallback together
// with an error wrapping ErrMissingField.
func Resolve[T any](src Source[T], row *model.AttributeRow, fallback T, coerce func(model.Value) (T, error)) (T, error) {
	switch src.kind {
	case kindFixed:
		return src.value, nil
	case kindField:
		v, ok := row.Get(src.field)
		if !ok {
			return fallback, fmt.Errorf("%w: %q not in row", ErrMissingField, src.field)
		}
		out, err := coerce(v)
		if err != nil {
			return fallback, fmt.Errorf("%w: %q: %v", ErrMissingField, src.field, err)
		}
		return out, nil
	}
	return fallback, nil
}

// Config holds the source of every styleable property
type Config struct {
	Layer    Source[string]
	Color    Source[model.Color]
	LineType Source[string]
	Width    Source[float64]
	Label    Source[string] // Current means no label
}

// Defaults are the destination's current settings used as fallbacks
type Defaults struct {
	Layer    string
	Color    model.Color
	LineType string
	Width    float64
}

// Style is the resolved display of one record
type Style struct {
	Layer    string
	Color    model.Color
	LineType string
	Width    float64
	Label    string
	HasLabel bool
}

// Resolver resolves a Config against attribute rows
type Resolver struct {
	cfg      Config
	defaults Defaults
}

// NewResolver creates a resolver. Layer falls back to defaults.Layer.
func NewResolver(cfg Config, defaults Defaults) *Resolver {
	return &Resolver{cfg: cfg, defaults: defaults}
}

// Config returns the resolver's configuration
func (r *Resolver) Config() Config { return r.cfg }

// Resolve resolves every property for one row. Each property is resolved
// independently; the returned errors all wrap ErrMissingField.
func (r *Resolver) Resolve(row *model.AttributeRow) (Style, []error) {
	var errs []error
	collect := func(prop string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prop, err))
		}
	}

	var st Style
	var err error
	st.Layer, err = Resolve(r.cfg.Layer, row, r.defaults.Layer, LayerValue)
	collect("layer", err)
	st.Color, err = Resolve(r.cfg.Color, row, r.defaults.Color, ColorValue)
	collect("color", err)
	st.LineType, err = Resolve(r.cfg.LineType, row, r.defaults.LineType, LineTypeValue)
	collect("linetype", err)
	st.Width, err = Resolve(r.cfg.Width, row, r.defaults.Width, WidthValue)
	collect("width", err)

	if !r.cfg.Label.IsCurrent() {
		st.Label, err = Resolve(r.cfg.Label, row, "", LabelValue)
		collect("label", err)
		st.HasLabel = err == nil
	}
	return st, errs
}

// ColorValue converts text colors ("#rrggbb", "r,g,b", names) and integer
// colors (basic palette 1-9, packed RGB otherwise)
func ColorValue(v model.Value) (model.Color, error) {
	switch v.Kind {
	case model.KindText:
		return model.ParseColor(v.Text)
	case model.KindInteger:
		return model.ColorFromIndex(v.Int)
	case model.KindFloat:
		if v.Float == math.Trunc(v.Float) {
			return model.ColorFromIndex(int64(v.Float))
		}
	}
	return model.Color{}, fmt.Errorf("cannot use %s value %q as color", v.Kind, v.String())
}

// LineTypeValue accepts non-empty text and upper-cases it
func LineTypeValue(v model.Value) (string, error) {
	if v.Kind != model.KindText || strings.TrimSpace(v.Text) == "" {
		return "", fmt.Errorf("cannot use %s value %q as line type", v.Kind, v.String())
	}
	return strings.ToUpper(strings.TrimSpace(v.Text)), nil
}

// WidthValue accepts non-negative numbers, in millimetres
func WidthValue(v model.Value) (float64, error) {
	n, ok := v.Number()
	if !ok || n < 0 || math.IsNaN(n) {
		return 0, fmt.Errorf("cannot use %s value %q as width", v.Kind, v.String())
	}
	return n, nil
}

// LabelValue formats any non-null value as text
func LabelValue(v model.Value) (string, error) {
	if v.IsNull() {
		return "", fmt.Errorf("null label")
	}
	return strings.TrimSpace(v.String()), nil
}

// LayerValue accepts any non-null value that formats to non-empty text
func LayerValue(v model.Value) (string, error) {
	s, err := LabelValue(v)
	if err != nil || s == "" {
		return "", fmt.Errorf("cannot use %s value %q as layer name", v.Kind, v.String())
	}
	return s, nil
}

// ParseWidth parses a fixed width setting
func ParseWidth(s string) (float64, error) {
	w, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if w < 0 {
		return 0, fmt.Errorf("negative width %v", w)
	}
	return w, nil
}

// ParseText returns s unchanged
func ParseText(s string) (string, error) { return s, nil }
