package drawing

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/dyuri/shpimport/internal/model"
)

// dxfWriter emits group code / value pairs
type dxfWriter struct {
	w   *bufio.Writer
	err error
}

func (dw *dxfWriter) pair(code int, value string) {
	if dw.err != nil {
		return
	}
	_, dw.err = fmt.Fprintf(dw.w, "%3d\n%s\n", code, value)
}

func (dw *dxfWriter) float(code int, v float64) {
	dw.pair(code, strconv.FormatFloat(v, 'f', -1, 64))
}

func (dw *dxfWriter) int(code int, v int) {
	dw.pair(code, strconv.Itoa(v))
}

// aciIndex returns the basic color index matching c, or 7
func aciIndex(c model.Color) int {
	for i := 1; i <= 9; i++ {
		if ref, _ := model.ColorFromIndex(int64(i)); ref == c {
			return i
		}
	}
	return 7
}

// WriteDXF writes the drawing as an ASCII DXF file with a layer table,
// a line type table and one entity per drawing entity. Colors are written
// both as the nearest basic index and as true color.
func WriteDXF(w io.Writer, d *Drawing) error {
	dw := &dxfWriter{w: bufio.NewWriter(w)}
	layers := d.Layers()
	_, defaults := d.Defaults()

	linetypes := map[string]bool{"CONTINUOUS": true}
	if defaults.LineType != "" {
		linetypes[defaults.LineType] = true
	}
	for _, l := range layers {
		for _, e := range l.Entities {
			if e.Attrs.LineType != "" {
				linetypes[e.Attrs.LineType] = true
			}
		}
	}
	names := make([]string, 0, len(linetypes))
	for name := range linetypes {
		names = append(names, name)
	}
	sort.Strings(names)

	dw.pair(0, "SECTION")
	dw.pair(2, "HEADER")
	dw.pair(9, "$ACADVER")
	dw.pair(1, "AC1015")
	dw.pair(0, "ENDSEC")

	dw.pair(0, "SECTION")
	dw.pair(2, "TABLES")

	dw.pair(0, "TABLE")
	dw.pair(2, "LTYPE")
	dw.int(70, len(names))
	for _, name := range names {
		dw.pair(0, "LTYPE")
		dw.pair(2, name)
		dw.int(70, 0)
		dw.pair(3, "")
		dw.int(72, 65)
		dw.int(73, 0)
		dw.float(40, 0)
	}
	dw.pair(0, "ENDTAB")

	dw.pair(0, "TABLE")
	dw.pair(2, "LAYER")
	dw.int(70, len(layers))
	for _, l := range layers {
		dw.pair(0, "LAYER")
		dw.pair(2, l.Name)
		dw.int(70, 0)
		dw.int(62, aciIndex(defaults.Color))
		dw.pair(6, orDefault(defaults.LineType, "CONTINUOUS"))
	}
	dw.pair(0, "ENDTAB")
	dw.pair(0, "ENDSEC")

	dw.pair(0, "SECTION")
	dw.pair(2, "ENTITIES")
	for _, l := range layers {
		for _, e := range l.Entities {
			writeDXFEntity(dw, l.Name, e)
		}
	}
	dw.pair(0, "ENDSEC")
	dw.pair(0, "EOF")

	if dw.err != nil {
		return fmt.Errorf("write dxf: %w", dw.err)
	}
	return dw.w.Flush()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func writeCommon(dw *dxfWriter, layer string, e Entity) {
	dw.pair(8, layer)
	dw.int(62, aciIndex(e.Attrs.Color))
	dw.int(420, e.Attrs.Color.Packed())
	dw.pair(6, orDefault(e.Attrs.LineType, "CONTINUOUS"))
	dw.int(370, int(e.Attrs.Width*100))
}

func writeVertex(dw *dxfWriter, base int, v Vertex) {
	dw.float(base, v.X)
	dw.float(base+10, v.Y)
	dw.float(base+20, v.Z)
}

func writeDXFEntity(dw *dxfWriter, layer string, e Entity) {
	switch e.Kind {
	case KindPoint:
		dw.pair(0, "POINT")
		writeCommon(dw, layer, e)
		writeVertex(dw, 10, e.Vertices[0])
	case KindLine:
		dw.pair(0, "LINE")
		writeCommon(dw, layer, e)
		writeVertex(dw, 10, e.Vertices[0])
		writeVertex(dw, 11, e.Vertices[1])
	case KindText:
		dw.pair(0, "TEXT")
		writeCommon(dw, layer, e)
		writeVertex(dw, 10, e.Vertices[0])
		dw.float(40, 1)
		dw.pair(1, e.Text)
	case KindPolyline:
		flags := 8 // 3D polyline
		if e.Closed {
			flags |= 1
		}
		dw.pair(0, "POLYLINE")
		writeCommon(dw, layer, e)
		dw.int(66, 1)
		writeVertex(dw, 10, Vertex{})
		dw.int(70, flags)
		for _, v := range e.Vertices {
			dw.pair(0, "VERTEX")
			dw.pair(8, layer)
			writeVertex(dw, 10, v)
			dw.int(70, 32)
		}
		dw.pair(0, "SEQEND")
		dw.pair(8, layer)
	}
}
