package model

import "fmt"

// ShapeType is the geometry type code stored in the shapefile header and
// in every record header. The constant values are the on-disk codes.
type ShapeType int32

const (
	ShapeNull        ShapeType = 0
	ShapePoint       ShapeType = 1
	ShapeArc         ShapeType = 3 // Polyline
	ShapePolygon     ShapeType = 5
	ShapeMultiPoint  ShapeType = 8
	ShapePointZ      ShapeType = 11
	ShapeArcZ        ShapeType = 13
	ShapePolygonZ    ShapeType = 15
	ShapeMultiPointZ ShapeType = 18
	ShapePointM      ShapeType = 21
	ShapeArcM        ShapeType = 23
	ShapePolygonM    ShapeType = 25
	ShapeMultiPointM ShapeType = 28
	ShapeMultiPatch  ShapeType = 31

	ShapeUnknown ShapeType = -1
)

// Family groups shape types that share a record layout
type Family int

const (
	FamilyNone Family = iota
	FamilyPoint
	FamilyMultiPoint
	FamilyArc
	FamilyPolygon
	FamilyMultiPatch
)

var shapeNames = map[ShapeType]string{
	ShapeNull:        "Null",
	ShapePoint:       "Point",
	ShapeArc:         "Arc",
	ShapePolygon:     "Polygon",
	ShapeMultiPoint:  "MultiPoint",
	ShapePointZ:      "PointZ",
	ShapeArcZ:        "ArcZ",
	ShapePolygonZ:    "PolygonZ",
	ShapeMultiPointZ: "MultiPointZ",
	ShapePointM:      "PointM",
	ShapeArcM:        "ArcM",
	ShapePolygonM:    "PolygonM",
	ShapeMultiPointM: "MultiPointM",
	ShapeMultiPatch:  "MultiPatch",
}

// ParseShapeType maps an on-disk code to a ShapeType. Codes outside the
// supported set map to ShapeUnknown.
func ParseShapeType(code int32) ShapeType {
	st := ShapeType(code)
	if _, ok := shapeNames[st]; ok {
		return st
	}
	return ShapeUnknown
}

func (s ShapeType) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int32(s))
}

// Valid reports whether s is one of the supported shape types (Null included)
func (s ShapeType) Valid() bool {
	_, ok := shapeNames[s]
	return ok
}

// Family returns the record layout family of s
func (s ShapeType) Family() Family {
	switch s {
	case ShapePoint, ShapePointM, ShapePointZ:
		return FamilyPoint
	case ShapeMultiPoint, ShapeMultiPointM, ShapeMultiPointZ:
		return FamilyMultiPoint
	case ShapeArc, ShapeArcM, ShapeArcZ:
		return FamilyArc
	case ShapePolygon, ShapePolygonM, ShapePolygonZ:
		return FamilyPolygon
	case ShapeMultiPatch:
		return FamilyMultiPatch
	}
	return FamilyNone
}

// HasZ reports whether records of this type carry elevation
func (s ShapeType) HasZ() bool {
	switch s {
	case ShapePointZ, ShapeMultiPointZ, ShapeArcZ, ShapePolygonZ, ShapeMultiPatch:
		return true
	}
	return false
}

// HasM reports whether records of this type may carry a measure block.
// Z types carry an optional measure block after the Z block.
func (s ShapeType) HasM() bool {
	switch s {
	case ShapePointM, ShapeMultiPointM, ShapeArcM, ShapePolygonM:
		return true
	}
	return s.HasZ()
}

// Dimension is the coordinate layout shared by compatible shape types
type Dimension int

const (
	DimensionXY  Dimension = iota // Point, Arc, Polygon, MultiPoint
	DimensionXYM                  // M types
	DimensionXYZ                  // Z types and MultiPatch
)

// Dimension returns the coordinate layout of s. Records of a file must
// share both the family and the dimension of the file's shape type.
func (s ShapeType) Dimension() Dimension {
	switch {
	case s.HasZ():
		return DimensionXYZ
	case s.HasM():
		return DimensionXYM
	}
	return DimensionXY
}

// PatchPartType tags each part of a MultiPatch record
type PatchPartType int32

const (
	PatchTriangleStrip PatchPartType = 0
	PatchTriangleFan   PatchPartType = 1
	PatchOuterRing     PatchPartType = 2
	PatchInnerRing     PatchPartType = 3
	PatchFirstRing     PatchPartType = 4
	PatchRing          PatchPartType = 5
)

func (p PatchPartType) String() string {
	switch p {
	case PatchTriangleStrip:
		return "TriangleStrip"
	case PatchTriangleFan:
		return "TriangleFan"
	case PatchOuterRing:
		return "OuterRing"
	case PatchInnerRing:
		return "InnerRing"
	case PatchFirstRing:
		return "FirstRing"
	case PatchRing:
		return "Ring"
	}
	return fmt.Sprintf("PatchPart(%d)", int32(p))
}

// Valid reports whether p is a known part type
func (p PatchPartType) Valid() bool {
	return p >= PatchTriangleStrip && p <= PatchRing
}

// IsRing reports whether the part describes a ring rather than triangles
func (p PatchPartType) IsRing() bool {
	return p >= PatchOuterRing && p <= PatchRing
}

// BoundingBox is the extent stored in the file header and multi-part records.
// Z and M ranges are zero when the shape type does not carry them.
type BoundingBox struct {
	MinX, MinY float64
	MaxX, MaxY float64
	MinZ, MaxZ float64
	MinM, MaxM float64
}

// Coord is a planar vertex
type Coord struct {
	X, Y float64
}

// Geometry is one decoded shape record. The concrete types are Null,
// Point, MultiPoint, PolyShape and MultiPatch.
type Geometry interface {
	Type() ShapeType
	geometry()
}

// Null is an empty record. Unknown record type codes also decode to Null
// with Shape set to ShapeUnknown.
type Null struct {
	Shape ShapeType
	Code  int32 // raw record type code
}

func (n *Null) Type() ShapeType { return n.Shape }
func (*Null) geometry()         {}

// Point is a Point, PointM or PointZ record
type Point struct {
	Shape ShapeType
	X, Y  float64
	Z     float64
	M     float64
	HasZ  bool
	HasM  bool
}

func (p *Point) Type() ShapeType { return p.Shape }
func (*Point) geometry()         {}

// MultiPoint is a MultiPoint, MultiPointM or MultiPointZ record.
// Z and M are either empty or parallel to Points.
type MultiPoint struct {
	Shape  ShapeType
	BBox   BoundingBox
	Points []Coord
	Z      []float64
	M      []float64
}

func (m *MultiPoint) Type() ShapeType { return m.Shape }
func (*MultiPoint) geometry()         {}

// PolyShape holds Arc and Polygon family records. Vertices of all parts
// are stored in one flat array; Parts holds the start index of each part.
// Z and M are either empty or parallel to Points.
type PolyShape struct {
	Shape  ShapeType
	BBox   BoundingBox
	Parts  []int
	Points []Coord
	Z      []float64
	M      []float64
}

func (p *PolyShape) Type() ShapeType { return p.Shape }
func (*PolyShape) geometry()         {}

// NumParts returns the number of parts
func (p *PolyShape) NumParts() int { return len(p.Parts) }

// PartRange returns the half-open vertex range [start, end) of part i
func (p *PolyShape) PartRange(i int) (start, end int) {
	start = p.Parts[i]
	if i+1 < len(p.Parts) {
		return start, p.Parts[i+1]
	}
	return start, len(p.Points)
}

// PartLen returns the vertex count of part i
func (p *PolyShape) PartLen(i int) int {
	start, end := p.PartRange(i)
	return end - start
}

// ZAt returns the elevation of vertex i, or 0 when the record has none
func (p *PolyShape) ZAt(i int) float64 {
	if i < len(p.Z) {
		return p.Z[i]
	}
	return 0
}

// MultiPatch is a PolyShape whose parts are tagged with a PatchPartType
type MultiPatch struct {
	PolyShape
	PartTypes []PatchPartType
}

func (*MultiPatch) geometry() {}
