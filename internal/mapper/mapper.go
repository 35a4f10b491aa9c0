// Package mapper converts decoded shape records into drawing entities.
package mapper

import (
	"fmt"

	"github.com/dyuri/shpimport/internal/drawing"
	"github.com/dyuri/shpimport/internal/model"
	"github.com/dyuri/shpimport/internal/style"
	"github.com/paulmach/orb"
)

// PointMode selects how Point family records are imported
type PointMode int

const (
	PointAsPoint PointMode = iota
	PointAsLabel
)

// ParsePointMode parses "point" or "label"
func ParsePointMode(s string) (PointMode, error) {
	switch s {
	case "", "point":
		return PointAsPoint, nil
	case "label":
		return PointAsLabel, nil
	}
	return PointAsPoint, fmt.Errorf("unknown point mode %q", s)
}

func (m PointMode) String() string {
	if m == PointAsLabel {
		return "label"
	}
	return "point"
}

// Options control the mapping
type Options struct {
	PointMode PointMode
	// TrustPartTypes uses the ring roles declared by MultiPatch part types
	// instead of recomputing them from the signed area
	TrustPartTypes bool
}

// Skipped reports whether g produces no entities by its type
func Skipped(g model.Geometry) bool {
	_, ok := g.(*model.Null)
	return ok
}

// Map converts one record to entities. Null and unknown records map to no
// entities. The Record field of the returned entities is left zero.
func Map(g model.Geometry, st style.Style, opts Options) ([]drawing.Entity, error) {
	b := builder{attrs: drawing.Attributes{Color: st.Color, LineType: st.LineType, Width: st.Width}}

	switch g := g.(type) {
	case *model.Null:
		return nil, nil
	case *model.Point:
		v := drawing.Vertex{X: g.X, Y: g.Y, Z: g.Z}
		if opts.PointMode == PointAsLabel && st.HasLabel {
			b.text(v, st.Label)
			return b.out, nil
		}
		b.point(v)
		return b.out, nil
	case *model.MultiPoint:
		for i, c := range g.Points {
			b.point(drawing.Vertex{X: c.X, Y: c.Y, Z: at(g.Z, i)})
		}
	case *model.MultiPatch:
		for i := range g.Parts {
			b.patchPart(&g.PolyShape, i, g.PartTypes[i], opts.TrustPartTypes)
		}
	case *model.PolyShape:
		polygon := g.Shape.Family() == model.FamilyPolygon
		for i := range g.Parts {
			if polygon {
				b.ring(g, i, classify(g, i))
			} else {
				b.chain(g, i)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported geometry %T", g)
	}

	if st.HasLabel {
		if v, ok := anchor(g); ok {
			b.text(v, st.Label)
		}
	}
	return b.out, nil
}

type builder struct {
	attrs drawing.Attributes
	out   []drawing.Entity
}

func (b *builder) add(e drawing.Entity) {
	e.Attrs = b.attrs
	b.out = append(b.out, e)
}

func (b *builder) point(v drawing.Vertex) {
	b.add(drawing.Entity{Kind: drawing.KindPoint, Vertices: []drawing.Vertex{v}})
}

func (b *builder) text(v drawing.Vertex, s string) {
	b.add(drawing.Entity{Kind: drawing.KindText, Vertices: []drawing.Vertex{v}, Text: s})
}

// chain maps an open part: two vertices become a line, a single vertex a
// point, and empty parts are dropped
func (b *builder) chain(ps *model.PolyShape, part int) {
	vs := vertices(ps, part)
	switch len(vs) {
	case 0:
	case 1:
		b.point(vs[0])
	case 2:
		b.add(drawing.Entity{Kind: drawing.KindLine, Vertices: vs})
	default:
		b.add(drawing.Entity{Kind: drawing.KindPolyline, Vertices: vs})
	}
}

// ring maps a closed part to a closed polyline with the part's own vertices
func (b *builder) ring(ps *model.PolyShape, part int, role drawing.RingRole) {
	vs := vertices(ps, part)
	switch len(vs) {
	case 0:
	case 1:
		b.point(vs[0])
	default:
		b.add(drawing.Entity{Kind: drawing.KindPolyline, Vertices: vs, Closed: true, Ring: role})
	}
}

func (b *builder) triangle(v0, v1, v2 drawing.Vertex) {
	b.add(drawing.Entity{
		Kind:     drawing.KindPolyline,
		Vertices: []drawing.Vertex{v0, v1, v2},
		Closed:   true,
	})
}

func (b *builder) patchPart(ps *model.PolyShape, part int, pt model.PatchPartType, trust bool) {
	switch pt {
	case model.PatchTriangleStrip:
		vs := vertices(ps, part)
		for i := 0; i+2 < len(vs); i++ {
			b.triangle(vs[i], vs[i+1], vs[i+2])
		}
	case model.PatchTriangleFan:
		vs := vertices(ps, part)
		for i := 1; i+1 < len(vs); i++ {
			b.triangle(vs[0], vs[i], vs[i+1])
		}
	default:
		role := classify(ps, part)
		if trust {
			switch pt {
			case model.PatchOuterRing, model.PatchFirstRing:
				role = drawing.RingOuter
			case model.PatchInnerRing:
				role = drawing.RingInner
			}
		}
		b.ring(ps, part, role)
	}
}

// classify infers the ring role from the signed area: clockwise rings are
// outer boundaries, counter-clockwise rings are holes. Zero-area rings are
// treated as outer.
func classify(ps *model.PolyShape, part int) drawing.RingRole {
	start, end := ps.PartRange(part)
	if end-start < 3 {
		return drawing.RingOuter
	}
	r := make(orb.Ring, 0, end-start)
	for _, c := range ps.Points[start:end] {
		r = append(r, orb.Point{c.X, c.Y})
	}
	if r.Orientation() == orb.CCW {
		return drawing.RingInner
	}
	return drawing.RingOuter
}

func vertices(ps *model.PolyShape, part int) []drawing.Vertex {
	start, end := ps.PartRange(part)
	vs := make([]drawing.Vertex, 0, end-start)
	for i := start; i < end; i++ {
		vs = append(vs, drawing.Vertex{X: ps.Points[i].X, Y: ps.Points[i].Y, Z: ps.ZAt(i)})
	}
	return vs
}

// anchor returns the first vertex of the record's first part
func anchor(g model.Geometry) (drawing.Vertex, bool) {
	switch g := g.(type) {
	case *model.MultiPoint:
		if len(g.Points) > 0 {
			return drawing.Vertex{X: g.Points[0].X, Y: g.Points[0].Y, Z: at(g.Z, 0)}, true
		}
	case *model.PolyShape:
		return polyAnchor(g)
	case *model.MultiPatch:
		return polyAnchor(&g.PolyShape)
	}
	return drawing.Vertex{}, false
}

func polyAnchor(ps *model.PolyShape) (drawing.Vertex, bool) {
	if len(ps.Parts) == 0 {
		return drawing.Vertex{}, false
	}
	start, end := ps.PartRange(0)
	if start >= end {
		return drawing.Vertex{}, false
	}
	return drawing.Vertex{X: ps.Points[start].X, Y: ps.Points[start].Y, Z: ps.ZAt(start)}, true
}

func at(vals []float64, i int) float64 {
	if i < len(vals) {
		return vals[i]
	}
	return 0
}
