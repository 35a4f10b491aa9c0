package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/dyuri/shpimport/internal/model"
)

// Writer encodes geometry records into a .shp main file and its .shx index
type Writer struct {
	shapeType model.ShapeType
	records   *bytes.Buffer // Record headers and content, after the file header
	index     []IndexEntry
	bbox      model.BoundingBox
	hasBox    bool
}

// NewWriter creates a writer for a file of the given shape type
func NewWriter(st model.ShapeType) *Writer {
	return &Writer{
		shapeType: st,
		records:   &bytes.Buffer{},
	}
}

// Write appends one record. Null geometries are allowed in any file;
// other geometries must have the family and dimension of the writer's
// shape type.
func (w *Writer) Write(g model.Geometry) error {
	content, err := w.encode(g)
	if err != nil {
		return fmt.Errorf("encode record %d: %w", len(w.index)+1, err)
	}
	return w.WriteRaw(content)
}

// WriteRaw appends one record whose content is already encoded
func (w *Writer) WriteRaw(content []byte) error {
	if len(content)%2 != 0 {
		return fmt.Errorf("record content length %d is not a whole number of words", len(content))
	}
	offset := int64(HeaderSize + w.records.Len())
	var hdr [recordHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:], uint32(len(w.index)+1))
	binary.BigEndian.PutUint32(hdr[4:], uint32(len(content)/2))
	w.records.Write(hdr[:])
	w.records.Write(content)
	w.index = append(w.index, IndexEntry{Offset: offset, ContentLength: int64(len(content))})
	return nil
}

// Len returns the number of records written so far
func (w *Writer) Len() int { return len(w.index) }

// WriteTo writes the main file to shp and, when shx is not nil, the index
func (w *Writer) WriteTo(shp, shx io.Writer) error {
	h := &Header{
		FileCode:   FileCode,
		FileLength: int64(HeaderSize + w.records.Len()),
		Version:    Version,
		ShapeType:  w.shapeType,
		BBox:       w.bbox,
	}
	if _, err := shp.Write(encodeHeader(h)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := shp.Write(w.records.Bytes()); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	if shx == nil {
		return nil
	}
	return WriteIndex(shx, h, w.index)
}

// WriteIndex writes a .shx file for the given main file header and entries
func WriteIndex(w io.Writer, h *Header, entries []IndexEntry) error {
	ih := *h
	ih.FileLength = int64(HeaderSize + indexEntrySize*len(entries))
	if _, err := w.Write(encodeHeader(&ih)); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}
	buf := make([]byte, indexEntrySize*len(entries))
	for i, e := range entries {
		binary.BigEndian.PutUint32(buf[8*i:], uint32(e.Offset/2))
		binary.BigEndian.PutUint32(buf[8*i+4:], uint32(e.ContentLength/2))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write index entries: %w", err)
	}
	return nil
}

func encodeHeader(h *Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:], uint32(FileCode))
	binary.BigEndian.PutUint32(buf[24:], uint32(h.FileLength/2))
	binary.LittleEndian.PutUint32(buf[28:], uint32(Version))
	binary.LittleEndian.PutUint32(buf[32:], uint32(h.ShapeType))
	box := []float64{
		h.BBox.MinX, h.BBox.MinY, h.BBox.MaxX, h.BBox.MaxY,
		h.BBox.MinZ, h.BBox.MaxZ, h.BBox.MinM, h.BBox.MaxM,
	}
	for i, v := range box {
		binary.LittleEndian.PutUint64(buf[36+8*i:], math.Float64bits(v))
	}
	return buf
}

// recordBuf accumulates little-endian record content
type recordBuf struct {
	bytes.Buffer
}

func (b *recordBuf) int32(v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	b.Write(tmp[:])
}

func (b *recordBuf) float64s(vals ...float64) {
	var tmp [8]byte
	for _, v := range vals {
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
		b.Write(tmp[:])
	}
}

func (w *Writer) encode(g model.Geometry) ([]byte, error) {
	var b recordBuf
	if g.Type() == model.ShapeNull {
		b.int32(int32(model.ShapeNull))
		return b.Bytes(), nil
	}
	if !compatible(g.Type(), w.shapeType) {
		return nil, fmt.Errorf("%w: %s in %s file", ErrShapeTypeMismatch, g.Type(), w.shapeType)
	}
	b.int32(int32(g.Type()))

	switch g := g.(type) {
	case *model.Point:
		b.float64s(g.X, g.Y)
		switch g.Shape {
		case model.ShapePointZ:
			b.float64s(g.Z, g.M)
		case model.ShapePointM:
			b.float64s(g.M)
		}
		w.extend([]model.Coord{{X: g.X, Y: g.Y}}, []float64{g.Z})
	case *model.MultiPoint:
		box := bounds(g.Points)
		b.float64s(box.MinX, box.MinY, box.MaxX, box.MaxY)
		b.int32(int32(len(g.Points)))
		writeCoords(&b, g.Points)
		writeChannels(&b, g.Shape, len(g.Points), g.Z, g.M)
		w.extend(g.Points, g.Z)
	case *model.PolyShape:
		writePoly(&b, g, nil)
		w.extend(g.Points, g.Z)
	case *model.MultiPatch:
		writePoly(&b, &g.PolyShape, g.PartTypes)
		w.extend(g.Points, g.Z)
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", ErrUnsupportedShapeType, g)
	}
	return b.Bytes(), nil
}

func writePoly(b *recordBuf, ps *model.PolyShape, types []model.PatchPartType) {
	box := bounds(ps.Points)
	b.float64s(box.MinX, box.MinY, box.MaxX, box.MaxY)
	b.int32(int32(len(ps.Parts)))
	b.int32(int32(len(ps.Points)))
	for _, p := range ps.Parts {
		b.int32(int32(p))
	}
	if types != nil {
		for _, t := range types {
			b.int32(int32(t))
		}
	}
	writeCoords(b, ps.Points)
	writeChannels(b, ps.Shape, len(ps.Points), ps.Z, ps.M)
}

func writeCoords(b *recordBuf, pts []model.Coord) {
	for _, p := range pts {
		b.float64s(p.X, p.Y)
	}
}

// writeChannels writes the Z block for Z types (zeros when z is short) and
// the M block when m holds a value per vertex
func writeChannels(b *recordBuf, st model.ShapeType, n int, z, m []float64) {
	if st.HasZ() {
		if len(z) != n {
			z = make([]float64, n)
		}
		lo, hi := minMax(z)
		b.float64s(lo, hi)
		b.float64s(z...)
	}
	if st.HasM() && len(m) == n && n > 0 {
		lo, hi := minMax(m)
		b.float64s(lo, hi)
		b.float64s(m...)
	}
}

func (w *Writer) extend(pts []model.Coord, z []float64) {
	if len(pts) == 0 {
		return
	}
	box := bounds(pts)
	if len(z) > 0 {
		box.MinZ, box.MaxZ = minMax(z)
	}
	if !w.hasBox {
		w.bbox, w.hasBox = box, true
		return
	}
	w.bbox.MinX = math.Min(w.bbox.MinX, box.MinX)
	w.bbox.MinY = math.Min(w.bbox.MinY, box.MinY)
	w.bbox.MaxX = math.Max(w.bbox.MaxX, box.MaxX)
	w.bbox.MaxY = math.Max(w.bbox.MaxY, box.MaxY)
	w.bbox.MinZ = math.Min(w.bbox.MinZ, box.MinZ)
	w.bbox.MaxZ = math.Max(w.bbox.MaxZ, box.MaxZ)
}

func bounds(pts []model.Coord) model.BoundingBox {
	if len(pts) == 0 {
		return model.BoundingBox{}
	}
	box := model.BoundingBox{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		box.MinX = math.Min(box.MinX, p.X)
		box.MinY = math.Min(box.MinY, p.Y)
		box.MaxX = math.Max(box.MaxX, p.X)
		box.MaxY = math.Max(box.MaxY, p.Y)
	}
	return box
}

func minMax(v []float64) (lo, hi float64) {
	if len(v) == 0 {
		return 0, 0
	}
	lo, hi = v[0], v[0]
	for _, x := range v[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}
