// Package text writes a human-readable dump of shapefile headers, attribute
// fields and decoded records in a sectioned key=value format.
package text

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dyuri/shpimport/internal/binary"
	"github.com/dyuri/shpimport/internal/dbf"
	"github.com/dyuri/shpimport/internal/model"
)

// Writer writes dump sections
type Writer struct {
	w io.Writer
	// MaxPoints limits the vertices listed per record, 0 lists all
	MaxPoints int
}

// NewWriter creates a new dump writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// WriteHeader writes the [_file] section. records is -1 when unknown.
func (w *Writer) WriteHeader(name string, h *binary.Header, indexed bool, records int) error {
	// Format:
	// [_file]
	// Name=roads.shp
	// ShapeType=Arc
	// ...
	// [end]

	_, err := fmt.Fprintf(w.w, "[_file]\nName=%s\n", name)
	if err != nil {
		return err
	}
	fmt.Fprintf(w.w, "ShapeType=%s\n", h.ShapeType)
	fmt.Fprintf(w.w, "FileLength=%d\n", h.FileLength)
	fmt.Fprintf(w.w, "BBox=%s,%s,%s,%s\n", num(h.BBox.MinX), num(h.BBox.MinY), num(h.BBox.MaxX), num(h.BBox.MaxY))
	if h.ShapeType.HasZ() {
		fmt.Fprintf(w.w, "ZRange=%s,%s\n", num(h.BBox.MinZ), num(h.BBox.MaxZ))
	}
	if h.ShapeType.HasM() {
		fmt.Fprintf(w.w, "MRange=%s,%s\n", num(h.BBox.MinM), num(h.BBox.MaxM))
	}
	fmt.Fprintf(w.w, "Indexed=%t\n", indexed)
	if records >= 0 {
		fmt.Fprintf(w.w, "Records=%d\n", records)
	}

	_, err = fmt.Fprintf(w.w, "[end]\n\n")
	return err
}

// WriteTable writes the [_table] section with one Field line per column
func (w *Writer) WriteTable(name string, h dbf.Header, fields []dbf.Field) error {
	_, err := fmt.Fprintf(w.w, "[_table]\nName=%s\nRows=%d\nLanguageDriver=0x%02x\n",
		name, h.NumRecords, h.LanguageDriver)
	if err != nil {
		return err
	}
	for _, f := range fields {
		// Field=NAME,C,12,0
		fmt.Fprintf(w.w, "Field=%s,%c,%d,%d\n", f.Name, f.Type, f.Length, f.Decimals)
	}
	_, err = fmt.Fprintf(w.w, "[end]\n\n")
	return err
}

// WriteRecord writes a [_record] section. recErr is the record-level
// decode error, if any; row may be nil.
func (w *Writer) WriteRecord(rec *binary.Record, row *model.AttributeRow, recErr error) error {
	_, err := fmt.Fprintf(w.w, "[_record]\nIndex=%d\nNumber=%d\nOffset=%d\n", rec.Index, rec.Number, rec.Offset)
	if err != nil {
		return err
	}

	if recErr != nil {
		fmt.Fprintf(w.w, "Error=%v\n", recErr)
	} else {
		w.writeGeometry(rec.Geometry)
		for _, warn := range rec.Warnings {
			fmt.Fprintf(w.w, "Warning=%v\n", warn)
		}
	}

	for i := 0; i < row.Len(); i++ {
		name, v := row.At(i)
		if v.IsNull() {
			continue
		}
		fmt.Fprintf(w.w, "Attr=%s,%s\n", name, v)
	}

	_, err = fmt.Fprintf(w.w, "[end]\n\n")
	return err
}

func (w *Writer) writeGeometry(g model.Geometry) {
	fmt.Fprintf(w.w, "Type=%s\n", g.Type())

	switch g := g.(type) {
	case *model.Null:
		if g.Shape == model.ShapeUnknown {
			fmt.Fprintf(w.w, "Code=%d\n", g.Code)
		}
	case *model.Point:
		fmt.Fprintf(w.w, "Point=%s,%s\n", num(g.X), num(g.Y))
		if g.HasZ {
			fmt.Fprintf(w.w, "Z=%s\n", num(g.Z))
		}
		if g.HasM {
			fmt.Fprintf(w.w, "M=%s\n", num(g.M))
		}
	case *model.MultiPoint:
		fmt.Fprintf(w.w, "NumPoints=%d\n", len(g.Points))
		w.writePoints(g.Points, g.Z, 0, len(g.Points))
	case *model.MultiPatch:
		w.writeParts(&g.PolyShape, g.PartTypes)
	case *model.PolyShape:
		w.writeParts(g, nil)
	}
}

func (w *Writer) writeParts(ps *model.PolyShape, types []model.PatchPartType) {
	fmt.Fprintf(w.w, "NumParts=%d\nNumPoints=%d\n", ps.NumParts(), len(ps.Points))
	for i := range ps.Parts {
		start, end := ps.PartRange(i)
		// Part=0,5 or Part=0,5,TriangleStrip
		if types != nil {
			fmt.Fprintf(w.w, "Part=%d,%d,%s\n", start, end-start, types[i])
		} else {
			fmt.Fprintf(w.w, "Part=%d,%d\n", start, end-start)
		}
		w.writePoints(ps.Points, ps.Z, start, end)
	}
}

func (w *Writer) writePoints(pts []model.Coord, z []float64, start, end int) {
	limit := end
	if w.MaxPoints > 0 && end-start > w.MaxPoints {
		limit = start + w.MaxPoints
	}
	for i := start; i < limit; i++ {
		if i < len(z) {
			fmt.Fprintf(w.w, "  %s,%s,%s\n", num(pts[i].X), num(pts[i].Y), num(z[i]))
		} else {
			fmt.Fprintf(w.w, "  %s,%s\n", num(pts[i].X), num(pts[i].Y))
		}
	}
	if limit < end {
		fmt.Fprintf(w.w, "  ... %d more\n", end-limit)
	}
}
