package binary

import (
	"encoding/binary"
	"fmt"

	"github.com/dyuri/shpimport/internal/model"
)

var le = binary.LittleEndian

// DecodeGeometry decodes the content of one record (everything after the
// 8-byte record header). fileType is the shape type from the file header;
// every non-null record must share its family and dimension. The returned warnings
// flag parts with fewer than two vertices.
func DecodeGeometry(content []byte, fileType model.ShapeType) (model.Geometry, []error, error) {
	c := NewBytesCursor(content)
	code, err := c.Int32(le)
	if err != nil {
		return nil, nil, fmt.Errorf("read shape type: %w", err)
	}

	st := model.ParseShapeType(code)
	switch {
	case st == model.ShapeNull:
		return &model.Null{Shape: model.ShapeNull}, nil, nil
	case st == model.ShapeUnknown:
		return &model.Null{Shape: model.ShapeUnknown, Code: code}, nil, nil
	case !compatible(st, fileType):
		return nil, nil, fmt.Errorf("%w: %s in %s file", ErrShapeTypeMismatch, st, fileType)
	}

	switch st.Family() {
	case model.FamilyPoint:
		p, err := readPoint(c, st)
		return p, nil, err
	case model.FamilyMultiPoint:
		mp, err := readMultiPoint(c, st)
		return mp, nil, err
	case model.FamilyArc, model.FamilyPolygon:
		ps, _, err := readPolyShape(c, st, false)
		if err != nil {
			return nil, nil, err
		}
		return ps, degenerateParts(ps), nil
	case model.FamilyMultiPatch:
		ps, types, err := readPolyShape(c, st, true)
		if err != nil {
			return nil, nil, err
		}
		return &model.MultiPatch{PolyShape: *ps, PartTypes: types}, degenerateParts(ps), nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedShapeType, st)
}

// compatible reports whether a record of type st may appear in a file of
// type fileType
func compatible(st, fileType model.ShapeType) bool {
	return st.Family() == fileType.Family() && st.Dimension() == fileType.Dimension()
}

// readPoint reads X, Y and the Z/M fields the type defines. The M of a
// PointZ record is optional.
func readPoint(c *Cursor, st model.ShapeType) (*model.Point, error) {
	p := &model.Point{Shape: st}
	var err error
	if p.X, err = c.Float64(le); err != nil {
		return nil, fmt.Errorf("read point: %w", err)
	}
	if p.Y, err = c.Float64(le); err != nil {
		return nil, fmt.Errorf("read point: %w", err)
	}

	switch st {
	case model.ShapePointZ:
		if p.Z, err = c.Float64(le); err != nil {
			return nil, fmt.Errorf("read point z: %w", err)
		}
		p.HasZ = true
		if c.Remaining() >= 8 {
			p.M, _ = c.Float64(le)
			p.HasM = true
		}
	case model.ShapePointM:
		if p.M, err = c.Float64(le); err != nil {
			return nil, fmt.Errorf("read point m: %w", err)
		}
		p.HasM = true
	}
	return p, nil
}

func readBBox(c *Cursor) (model.BoundingBox, error) {
	v, err := c.Float64s(4, le)
	if err != nil {
		return model.BoundingBox{}, fmt.Errorf("read bbox: %w", err)
	}
	return model.BoundingBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, nil
}

func readCount(c *Cursor, what string) (int, error) {
	n, err := c.Int32(le)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", what, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative %s %d", ErrCorruptGeometry, what, n)
	}
	return int(n), nil
}

func readCoords(c *Cursor, n int) ([]model.Coord, error) {
	flat, err := c.Float64s(2*n, le)
	if err != nil {
		return nil, fmt.Errorf("read %d points: %w", n, err)
	}
	pts := make([]model.Coord, n)
	for i := range pts {
		pts[i] = model.Coord{X: flat[2*i], Y: flat[2*i+1]}
	}
	return pts, nil
}

// readRange reads a min/max pair followed by n values
func readRange(c *Cursor, n int) (lo, hi float64, vals []float64, err error) {
	mm, err := c.Float64s(2, le)
	if err != nil {
		return 0, 0, nil, err
	}
	vals, err = c.Float64s(n, le)
	if err != nil {
		return 0, 0, nil, err
	}
	return mm[0], mm[1], vals, nil
}

// readMeasures reads the trailing M block when the record has room for it
func readMeasures(c *Cursor, st model.ShapeType, n int, box *model.BoundingBox) ([]float64, error) {
	if !st.HasM() || c.Remaining() < int64(16+8*n) {
		return nil, nil
	}
	lo, hi, m, err := readRange(c, n)
	if err != nil {
		return nil, fmt.Errorf("read m block: %w", err)
	}
	box.MinM, box.MaxM = lo, hi
	return m, nil
}

func readMultiPoint(c *Cursor, st model.ShapeType) (*model.MultiPoint, error) {
	box, err := readBBox(c)
	if err != nil {
		return nil, err
	}
	n, err := readCount(c, "point count")
	if err != nil {
		return nil, err
	}
	mp := &model.MultiPoint{Shape: st, BBox: box}
	if mp.Points, err = readCoords(c, n); err != nil {
		return nil, err
	}
	if st.HasZ() {
		lo, hi, z, err := readRange(c, n)
		if err != nil {
			return nil, fmt.Errorf("read z block: %w", err)
		}
		mp.BBox.MinZ, mp.BBox.MaxZ, mp.Z = lo, hi, z
	}
	if mp.M, err = readMeasures(c, st, n, &mp.BBox); err != nil {
		return nil, err
	}
	return mp, nil
}

// readPolyShape reads the shared Arc/Polygon/MultiPatch layout. For
// MultiPatch the part type array follows the part start array.
func readPolyShape(c *Cursor, st model.ShapeType, patch bool) (*model.PolyShape, []model.PatchPartType, error) {
	box, err := readBBox(c)
	if err != nil {
		return nil, nil, err
	}
	numParts, err := readCount(c, "part count")
	if err != nil {
		return nil, nil, err
	}
	numPoints, err := readCount(c, "point count")
	if err != nil {
		return nil, nil, err
	}

	starts, err := c.Int32s(numParts, le)
	if err != nil {
		return nil, nil, fmt.Errorf("read part starts: %w", err)
	}
	parts := make([]int, numParts)
	for i, s := range starts {
		if s < 0 || int(s) >= numPoints {
			return nil, nil, fmt.Errorf("%w: part %d starts at %d, point count %d",
				ErrCorruptGeometry, i, s, numPoints)
		}
		if i > 0 && s < starts[i-1] {
			return nil, nil, fmt.Errorf("%w: part %d starts at %d before part %d at %d",
				ErrCorruptGeometry, i, s, i-1, starts[i-1])
		}
		parts[i] = int(s)
	}

	var types []model.PatchPartType
	if patch {
		raw, err := c.Int32s(numParts, le)
		if err != nil {
			return nil, nil, fmt.Errorf("read part types: %w", err)
		}
		types = make([]model.PatchPartType, numParts)
		for i, t := range raw {
			pt := model.PatchPartType(t)
			if !pt.Valid() {
				return nil, nil, fmt.Errorf("%w: part %d has type %d", ErrCorruptGeometry, i, t)
			}
			types[i] = pt
		}
	}

	ps := &model.PolyShape{Shape: st, BBox: box, Parts: parts}
	if ps.Points, err = readCoords(c, numPoints); err != nil {
		return nil, nil, err
	}
	if st.HasZ() {
		lo, hi, z, err := readRange(c, numPoints)
		if err != nil {
			return nil, nil, fmt.Errorf("read z block: %w", err)
		}
		ps.BBox.MinZ, ps.BBox.MaxZ, ps.Z = lo, hi, z
	}
	if ps.M, err = readMeasures(c, st, numPoints, &ps.BBox); err != nil {
		return nil, nil, err
	}
	return ps, types, nil
}

// degenerateParts flags parts that span zero or one vertex
func degenerateParts(ps *model.PolyShape) []error {
	var warnings []error
	for i := range ps.Parts {
		if n := ps.PartLen(i); n < 2 {
			warnings = append(warnings, fmt.Errorf("%w: part %d has %d vertices", ErrDegeneratePart, i, n))
		}
	}
	return warnings
}
