package text

import (
	"errors"
	"strings"
	"testing"

	"github.com/dyuri/shpimport/internal/binary"
	"github.com/dyuri/shpimport/internal/dbf"
	"github.com/dyuri/shpimport/internal/model"
)

func TestWriteHeader(t *testing.T) {
	h := &binary.Header{
		FileCode:   9994,
		FileLength: 236,
		Version:    1000,
		ShapeType:  model.ShapePolygonZ,
		BBox:       model.BoundingBox{MinX: 1, MinY: 2, MaxX: 10.5, MaxY: 20, MinZ: -3, MaxZ: 7},
	}

	var buf strings.Builder
	if err := NewWriter(&buf).WriteHeader("parcels.shp", h, true, 4); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"[_file]\n",
		"Name=parcels.shp\n",
		"ShapeType=PolygonZ\n",
		"BBox=1,2,10.5,20\n",
		"ZRange=-3,7\n",
		"Indexed=true\n",
		"Records=4\n",
		"[end]\n\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "MRange") {
		t.Errorf("PolygonZ header should not list an M range:\n%s", out)
	}
}

func TestWriteHeaderUnknownCount(t *testing.T) {
	var buf strings.Builder
	h := &binary.Header{ShapeType: model.ShapePoint}
	if err := NewWriter(&buf).WriteHeader("a.shp", h, false, -1); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}
	if strings.Contains(buf.String(), "Records=") {
		t.Errorf("unexpected record count:\n%s", buf.String())
	}
}

func TestWriteTable(t *testing.T) {
	fields := []dbf.Field{
		{Name: "NAME", Type: 'C', Length: 20},
		{Name: "AREA", Type: 'N', Length: 12, Decimals: 3},
	}
	var buf strings.Builder
	err := NewWriter(&buf).WriteTable("parcels.dbf", dbf.Header{NumRecords: 4, LanguageDriver: 0x57}, fields)
	if err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	want := "[_table]\nName=parcels.dbf\nRows=4\nLanguageDriver=0x57\n" +
		"Field=NAME,C,20,0\nField=AREA,N,12,3\n[end]\n\n"
	if buf.String() != want {
		t.Errorf("got\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteRecordPolyline(t *testing.T) {
	rec := &binary.Record{
		Index:  2,
		Number: 3,
		Offset: 300,
		Geometry: &model.PolyShape{
			Shape:  model.ShapeArc,
			Parts:  []int{0, 2},
			Points: []model.Coord{{0, 0}, {1, 1}, {5, 5}, {6, 5}, {7, 5}},
		},
		Warnings: []error{errors.New("degenerate part 0")},
	}
	row := model.NewAttributeRow(2)
	row.Set("NAME", model.TextValue("Main St"))
	row.Set("NOTE", model.NullValue())

	var buf strings.Builder
	w := NewWriter(&buf)
	w.MaxPoints = 2
	if err := w.WriteRecord(rec, row, nil); err != nil {
		t.Fatalf("WriteRecord failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"[_record]\nIndex=2\nNumber=3\nOffset=300\n",
		"Type=Arc\n",
		"NumParts=2\nNumPoints=5\n",
		"Part=0,2\n  0,0\n  1,1\n",
		"Part=2,3\n  5,5\n  6,5\n  ... 1 more\n",
		"Warning=degenerate part 0\n",
		"Attr=NAME,Main St\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "NOTE") {
		t.Errorf("null attribute should be omitted:\n%s", out)
	}
}

func TestWriteRecordMultiPatch(t *testing.T) {
	rec := &binary.Record{
		Geometry: &model.MultiPatch{
			PolyShape: model.PolyShape{
				Shape:  model.ShapeMultiPatch,
				Parts:  []int{0},
				Points: []model.Coord{{0, 0}, {1, 0}, {0, 1}},
				Z:      []float64{1, 2, 3},
			},
			PartTypes: []model.PatchPartType{model.PatchTriangleFan},
		},
	}
	var buf strings.Builder
	if err := NewWriter(&buf).WriteRecord(rec, nil, nil); err != nil {
		t.Fatalf("WriteRecord failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Type=MultiPatch\n", "Part=0,3,TriangleFan\n", "  1,0,2\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteRecordPoint(t *testing.T) {
	rec := &binary.Record{Geometry: &model.Point{Shape: model.ShapePointZ, X: 3, Y: 4, Z: 12, HasZ: true}}
	var buf strings.Builder
	if err := NewWriter(&buf).WriteRecord(rec, nil, nil); err != nil {
		t.Fatalf("WriteRecord failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Point=3,4\nZ=12\n") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestWriteRecordError(t *testing.T) {
	rec := &binary.Record{Index: 5, Number: 6, Geometry: &model.Null{Shape: model.ShapeUnknown, Code: 77}}
	var buf strings.Builder
	if err := NewWriter(&buf).WriteRecord(rec, nil, binary.ErrCorruptGeometry); err != nil {
		t.Fatalf("WriteRecord failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Error=corrupt geometry\n") {
		t.Errorf("missing error line:\n%s", out)
	}
	if strings.Contains(out, "Type=") {
		t.Errorf("geometry should not be listed for a failed record:\n%s", out)
	}

	buf.Reset()
	if err := NewWriter(&buf).WriteRecord(rec, nil, nil); err != nil {
		t.Fatalf("WriteRecord failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Code=77\n") {
		t.Errorf("unknown record should list its code:\n%s", buf.String())
	}
}
