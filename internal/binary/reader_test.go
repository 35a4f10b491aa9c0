package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/dyuri/shpimport/internal/model"
)

// buildFile encodes geoms into main file and index bytes
func buildFile(t *testing.T, st model.ShapeType, geoms ...model.Geometry) ([]byte, []byte) {
	t.Helper()
	w := NewWriter(st)
	for _, g := range geoms {
		if err := w.Write(g); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	var shp, shx bytes.Buffer
	if err := w.WriteTo(&shp, &shx); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	return shp.Bytes(), shx.Bytes()
}

func openReader(t *testing.T, shp []byte) *Reader {
	t.Helper()
	r := NewReader(bytes.NewReader(shp), int64(len(shp)))
	if _, err := r.ReadHeader(); err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	return r
}

// TestReadHeader tests basic header parsing
func TestReadHeader(t *testing.T) {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:], FileCode)
	binary.BigEndian.PutUint32(buf[24:], 50)
	binary.LittleEndian.PutUint32(buf[28:], Version)
	binary.LittleEndian.PutUint32(buf[32:], uint32(model.ShapePolygonZ))

	h, err := ReadHeader(NewBytesCursor(buf))
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if h.ShapeType != model.ShapePolygonZ {
		t.Errorf("ShapeType = %s, want PolygonZ", h.ShapeType)
	}
	if h.FileLength != 100 {
		t.Errorf("FileLength = %d, want 100", h.FileLength)
	}
}

func TestReadHeaderErrors(t *testing.T) {
	valid, _ := buildFile(t, model.ShapePoint, &model.Point{Shape: model.ShapePoint, X: 1, Y: 2})

	badCode := append([]byte(nil), valid...)
	binary.BigEndian.PutUint32(badCode[0:], 1234)

	badType := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(badType[32:], 7)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"truncated", valid[:60], ErrTruncatedInput},
		{"empty", nil, ErrTruncatedInput},
		{"bad file code", badCode, ErrBadSignature},
		{"unsupported type", badType, ErrUnsupportedShapeType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(tt.data), int64(len(tt.data)))
			_, err := r.ReadHeader()
			if !errors.Is(err, tt.want) {
				t.Errorf("ReadHeader error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCursorTruncated(t *testing.T) {
	c := NewBytesCursor([]byte{1, 2, 3})
	if _, err := c.Uint16(binary.LittleEndian); err != nil {
		t.Fatalf("Uint16 failed: %v", err)
	}
	if _, err := c.Uint32(binary.LittleEndian); !errors.Is(err, ErrTruncatedInput) {
		t.Errorf("Uint32 error = %v, want ErrTruncatedInput", err)
	}
	if c.Pos() != 2 {
		t.Errorf("Pos = %d after failed read, want 2", c.Pos())
	}
	if err := c.Seek(4); !errors.Is(err, ErrTruncatedInput) {
		t.Errorf("Seek error = %v, want ErrTruncatedInput", err)
	}
	if _, err := c.Float64s(1<<30, binary.LittleEndian); !errors.Is(err, ErrTruncatedInput) {
		t.Errorf("Float64s error = %v, want ErrTruncatedInput", err)
	}
}

func TestDecodePoints(t *testing.T) {
	tests := []struct {
		name string
		pt   *model.Point
	}{
		{"point", &model.Point{Shape: model.ShapePoint, X: 12.5, Y: -3.25}},
		{"point m", &model.Point{Shape: model.ShapePointM, X: 1, Y: 2, M: 7, HasM: true}},
		{"point z", &model.Point{Shape: model.ShapePointZ, X: 1, Y: 2, Z: 300.5, M: 4, HasZ: true, HasM: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shp, _ := buildFile(t, tt.pt.Shape, tt.pt)
			r := openReader(t, shp)
			rec, err := r.Next()
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			got, ok := rec.Geometry.(*model.Point)
			if !ok {
				t.Fatalf("Geometry = %T, want *model.Point", rec.Geometry)
			}
			if *got != *tt.pt {
				t.Errorf("Point = %+v, want %+v", *got, *tt.pt)
			}
			if rec.Number != 1 {
				t.Errorf("Number = %d, want 1", rec.Number)
			}
			if _, err := r.Next(); err != io.EOF {
				t.Errorf("second Next error = %v, want io.EOF", err)
			}
		})
	}
}

func TestDecodePointZWithoutMeasure(t *testing.T) {
	var b recordBuf
	b.int32(int32(model.ShapePointZ))
	b.float64s(1, 2, 3)

	g, _, err := DecodeGeometry(b.Bytes(), model.ShapePointZ)
	if err != nil {
		t.Fatalf("DecodeGeometry failed: %v", err)
	}
	p := g.(*model.Point)
	if !p.HasZ || p.Z != 3 {
		t.Errorf("Z = %v (HasZ %v), want 3", p.Z, p.HasZ)
	}
	if p.HasM {
		t.Errorf("HasM = true, want false")
	}
}

func TestDecodeMultiPointZ(t *testing.T) {
	mp := &model.MultiPoint{
		Shape:  model.ShapeMultiPointZ,
		Points: []model.Coord{{X: 0, Y: 0}, {X: 5, Y: 1}, {X: -2, Y: 8}},
		Z:      []float64{10, 20, 30},
		M:      []float64{1, 2, 3},
	}
	shp, _ := buildFile(t, mp.Shape, mp)
	rec, err := openReader(t, shp).Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	got := rec.Geometry.(*model.MultiPoint)
	if len(got.Points) != 3 {
		t.Fatalf("Got %d points, want 3", len(got.Points))
	}
	if got.Points[2] != (model.Coord{X: -2, Y: 8}) {
		t.Errorf("Points[2] = %+v, want {-2 8}", got.Points[2])
	}
	if got.Z[1] != 20 || got.M[2] != 3 {
		t.Errorf("Z = %v, M = %v", got.Z, got.M)
	}
	if got.BBox.MinX != -2 || got.BBox.MaxY != 8 || got.BBox.MaxZ != 30 {
		t.Errorf("BBox = %+v", got.BBox)
	}
}

func TestDecodeArcParts(t *testing.T) {
	arc := &model.PolyShape{
		Shape:  model.ShapeArc,
		Parts:  []int{0, 2},
		Points: []model.Coord{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}},
	}
	shp, _ := buildFile(t, arc.Shape, arc)
	rec, err := openReader(t, shp).Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	got := rec.Geometry.(*model.PolyShape)
	if got.NumParts() != 2 {
		t.Fatalf("NumParts = %d, want 2", got.NumParts())
	}
	if got.PartLen(0) != 2 || got.PartLen(1) != 3 {
		t.Errorf("part lengths = %d, %d, want 2, 3", got.PartLen(0), got.PartLen(1))
	}
	if len(rec.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", rec.Warnings)
	}
}

func TestDecodeMultiPatch(t *testing.T) {
	mp := &model.MultiPatch{
		PolyShape: model.PolyShape{
			Shape: model.ShapeMultiPatch,
			Parts: []int{0, 4},
			Points: []model.Coord{
				{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1},
				{X: 0, Y: 0}, {X: 0, Y: 2}, {X: 2, Y: 2}, {X: 0, Y: 0},
			},
			Z: []float64{1, 2, 3, 4, 5, 6, 7, 8},
		},
		PartTypes: []model.PatchPartType{model.PatchTriangleStrip, model.PatchOuterRing},
	}
	shp, _ := buildFile(t, mp.Shape, mp)
	rec, err := openReader(t, shp).Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	got, ok := rec.Geometry.(*model.MultiPatch)
	if !ok {
		t.Fatalf("Geometry = %T, want *model.MultiPatch", rec.Geometry)
	}
	if len(got.PartTypes) != 2 || got.PartTypes[1] != model.PatchOuterRing {
		t.Errorf("PartTypes = %v", got.PartTypes)
	}
	if got.ZAt(6) != 7 {
		t.Errorf("ZAt(6) = %v, want 7", got.ZAt(6))
	}
}

// polyContent builds Arc record content with the given part starts
func polyContent(starts []int32, numPoints int) []byte {
	var b recordBuf
	b.int32(int32(model.ShapeArc))
	b.float64s(0, 0, 1, 1)
	b.int32(int32(len(starts)))
	b.int32(int32(numPoints))
	for _, s := range starts {
		b.int32(s)
	}
	for i := 0; i < numPoints; i++ {
		b.float64s(float64(i), float64(i))
	}
	return b.Bytes()
}

func TestDecodeCorruptPartStarts(t *testing.T) {
	tests := []struct {
		name   string
		starts []int32
	}{
		{"descending", []int32{0, 3, 1}},
		{"out of bounds", []int32{0, 4}},
		{"negative", []int32{-1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeGeometry(polyContent(tt.starts, 4), model.ShapeArc)
			if !errors.Is(err, ErrCorruptGeometry) {
				t.Errorf("error = %v, want ErrCorruptGeometry", err)
			}
		})
	}
}

func TestDecodeDegeneratePartWarns(t *testing.T) {
	g, warnings, err := DecodeGeometry(polyContent([]int32{0, 1, 1}, 3), model.ShapeArc)
	if err != nil {
		t.Fatalf("DecodeGeometry failed: %v", err)
	}
	if g.(*model.PolyShape).NumParts() != 3 {
		t.Errorf("degenerate parts were not retained")
	}
	if len(warnings) != 2 {
		t.Fatalf("Got %d warnings, want 2", len(warnings))
	}
	for _, w := range warnings {
		if !errors.Is(w, ErrDegeneratePart) {
			t.Errorf("warning = %v, want ErrDegeneratePart", w)
		}
	}
}

func TestDecodeShapeTypes(t *testing.T) {
	var null recordBuf
	null.int32(0)
	g, _, err := DecodeGeometry(null.Bytes(), model.ShapePolygon)
	if err != nil || g.Type() != model.ShapeNull {
		t.Errorf("null record = %v, %v", g, err)
	}

	var unknown recordBuf
	unknown.int32(99)
	g, _, err = DecodeGeometry(unknown.Bytes(), model.ShapePolygon)
	if err != nil || g.Type() != model.ShapeUnknown {
		t.Errorf("unknown record = %v, %v", g, err)
	}

	var point recordBuf
	point.int32(int32(model.ShapePoint))
	point.float64s(1, 2)
	_, _, err = DecodeGeometry(point.Bytes(), model.ShapePointZ)
	if !errors.Is(err, ErrShapeTypeMismatch) || !errors.Is(err, ErrCorruptGeometry) {
		t.Errorf("mismatch error = %v, want ErrShapeTypeMismatch", err)
	}

	for _, fileType := range []model.ShapeType{model.ShapePolygon, model.ShapeArc, model.ShapeMultiPoint, model.ShapePointM} {
		g, _, err = DecodeGeometry(point.Bytes(), fileType)
		if !errors.Is(err, ErrShapeTypeMismatch) {
			t.Errorf("point in %s file = %v, %v, want ErrShapeTypeMismatch", fileType, g, err)
		}
	}

	var arc recordBuf
	arc.int32(int32(model.ShapeArc))
	arc.float64s(0, 0, 1, 1)
	arc.int32(1)
	arc.int32(2)
	arc.int32(0)
	arc.float64s(0, 0, 1, 1)
	if _, _, err = DecodeGeometry(arc.Bytes(), model.ShapePolygon); !errors.Is(err, ErrShapeTypeMismatch) {
		t.Errorf("arc in polygon file error = %v, want ErrShapeTypeMismatch", err)
	}
	if g, _, err = DecodeGeometry(arc.Bytes(), model.ShapeArc); err != nil || g.Type() != model.ShapeArc {
		t.Errorf("arc in arc file = %v, %v", g, err)
	}

	_, _, err = DecodeGeometry(point.Bytes()[:12], model.ShapePoint)
	if !errors.Is(err, ErrTruncatedInput) {
		t.Errorf("short point error = %v, want ErrTruncatedInput", err)
	}
}

func TestReaderIndexed(t *testing.T) {
	geoms := []model.Geometry{
		&model.Point{Shape: model.ShapePoint, X: 1, Y: 1},
		&model.Null{Shape: model.ShapeNull},
		&model.Point{Shape: model.ShapePoint, X: 3, Y: 3},
	}
	shp, shx := buildFile(t, model.ShapePoint, geoms...)

	_, entries, err := ReadIndex(bytes.NewReader(shx), int64(len(shx)))
	if err != nil {
		t.Fatalf("ReadIndex failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Got %d entries, want 3", len(entries))
	}
	if entries[0].Offset != HeaderSize || entries[0].ContentLength != 20 {
		t.Errorf("entries[0] = %+v, want {100 20}", entries[0])
	}

	r := openReader(t, shp)
	if err := r.UseIndex(entries); err != nil {
		t.Fatalf("UseIndex failed: %v", err)
	}
	if r.NumRecords() != 3 {
		t.Errorf("NumRecords = %d, want 3", r.NumRecords())
	}
	rec, err := r.RecordAt(2)
	if err != nil {
		t.Fatalf("RecordAt failed: %v", err)
	}
	if p := rec.Geometry.(*model.Point); p.X != 3 {
		t.Errorf("RecordAt(2).X = %v, want 3", p.X)
	}

	count := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
	if count != 3 {
		t.Errorf("read %d records, want 3", count)
	}
}

func TestReaderIndexMismatch(t *testing.T) {
	shp, shx := buildFile(t, model.ShapePoint,
		&model.Point{Shape: model.ShapePoint, X: 1, Y: 1},
		&model.Point{Shape: model.ShapePoint, X: 2, Y: 2})

	_, entries, err := ReadIndex(bytes.NewReader(shx), int64(len(shx)))
	if err != nil {
		t.Fatalf("ReadIndex failed: %v", err)
	}
	entries[1].Offset = 4096

	r := openReader(t, shp)
	if err := r.UseIndex(entries); !errors.Is(err, ErrIndexMismatch) {
		t.Fatalf("UseIndex error = %v, want ErrIndexMismatch", err)
	}
	if r.Indexed() {
		t.Errorf("Indexed = true after rejected index")
	}
	if r.NumRecords() != -1 {
		t.Errorf("NumRecords = %d, want -1", r.NumRecords())
	}
}

func TestReaderSequentialTruncatedRecord(t *testing.T) {
	shp, _ := buildFile(t, model.ShapePoint,
		&model.Point{Shape: model.ShapePoint, X: 1, Y: 1},
		&model.Point{Shape: model.ShapePoint, X: 2, Y: 2})
	// Cut the second record's content short; the declared file length
	// still claims the full size.
	shp = shp[:len(shp)-6]

	r := openReader(t, shp)
	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next failed: %v", err)
	}
	rec, err := r.Next()
	if !errors.Is(err, ErrTruncatedInput) {
		t.Fatalf("second Next error = %v, want ErrTruncatedInput", err)
	}
	if rec == nil || rec.Index != 1 {
		t.Errorf("record = %+v, want index 1", rec)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("third Next error = %v, want io.EOF", err)
	}
}

func TestScanAndWriteIndex(t *testing.T) {
	shp, shx := buildFile(t, model.ShapePoint,
		&model.Point{Shape: model.ShapePoint, X: 1, Y: 1},
		&model.Point{Shape: model.ShapePoint, X: 2, Y: 2})

	r := openReader(t, shp)
	entries, err := r.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	var rebuilt bytes.Buffer
	if err := WriteIndex(&rebuilt, r.Header(), entries); err != nil {
		t.Fatalf("WriteIndex failed: %v", err)
	}
	if !bytes.Equal(rebuilt.Bytes(), shx) {
		t.Errorf("rebuilt index differs from written index")
	}
}

func TestLoadIndexShapeTypeMismatch(t *testing.T) {
	shp, _ := buildFile(t, model.ShapePoint, &model.Point{Shape: model.ShapePoint, X: 1, Y: 1})
	_, shx := buildFile(t, model.ShapePointZ, &model.Point{Shape: model.ShapePointZ, X: 1, Y: 1, HasZ: true})

	r := openReader(t, shp)
	if err := r.LoadIndex(bytes.NewReader(shx), int64(len(shx))); !errors.Is(err, ErrIndexMismatch) {
		t.Fatalf("LoadIndex error = %v, want ErrIndexMismatch", err)
	}
	if r.Indexed() {
		t.Errorf("Indexed = true after rejected index")
	}

	_, shx = buildFile(t, model.ShapePoint, &model.Point{Shape: model.ShapePoint, X: 1, Y: 1})
	if err := r.LoadIndex(bytes.NewReader(shx), int64(len(shx))); err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}
	if r.NumRecords() != 1 {
		t.Errorf("NumRecords = %d, want 1", r.NumRecords())
	}
}

func TestReaderIndexMustCoverFile(t *testing.T) {
	shp, shx := buildFile(t, model.ShapePoint,
		&model.Point{Shape: model.ShapePoint, X: 1, Y: 1},
		&model.Point{Shape: model.ShapePoint, X: 2, Y: 2},
		&model.Point{Shape: model.ShapePoint, X: 3, Y: 3})
	_, entries, err := ReadIndex(bytes.NewReader(shx), int64(len(shx)))
	if err != nil {
		t.Fatalf("ReadIndex failed: %v", err)
	}

	r := openReader(t, shp)
	if err := r.UseIndex(entries[:2]); !errors.Is(err, ErrIndexMismatch) {
		t.Fatalf("short index error = %v, want ErrIndexMismatch", err)
	}
	swapped := []IndexEntry{entries[1], entries[0], entries[2]}
	if err := r.UseIndex(swapped); !errors.Is(err, ErrIndexMismatch) {
		t.Fatalf("out of order index error = %v, want ErrIndexMismatch", err)
	}
	if r.Indexed() {
		t.Fatalf("Indexed = true after rejected index")
	}

	count := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
	if count != 3 {
		t.Errorf("sequential walk read %d records, want 3", count)
	}
}

func TestReaderTrailerIsNotARecord(t *testing.T) {
	shp, _ := buildFile(t, model.ShapePoint, &model.Point{Shape: model.ShapePoint, X: 1, Y: 1})
	shp = append(shp, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(shp[24:], uint32(len(shp)/2))

	r := openReader(t, shp)
	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next failed: %v", err)
	}
	rec, err := r.Next()
	if err != io.EOF || rec != nil {
		t.Fatalf("second Next = %v, %v, want nil, io.EOF", rec, err)
	}
	if !errors.Is(r.Trailer(), ErrTruncatedInput) {
		t.Errorf("Trailer = %v, want ErrTruncatedInput", r.Trailer())
	}
}

func TestWriterRejectsOtherFamily(t *testing.T) {
	w := NewWriter(model.ShapePolygon)
	if err := w.Write(&model.Point{Shape: model.ShapePoint, X: 1, Y: 1}); !errors.Is(err, ErrShapeTypeMismatch) {
		t.Errorf("Write error = %v, want ErrShapeTypeMismatch", err)
	}
	if err := w.Write(&model.Null{Shape: model.ShapeNull}); err != nil {
		t.Errorf("Write null failed: %v", err)
	}
	if w.Len() != 1 {
		t.Errorf("Len = %d, want 1", w.Len())
	}
}
