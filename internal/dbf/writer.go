package dbf

import (
	"bytes"
	stdbinary "encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dyuri/shpimport/internal/model"
)

// Writer builds a dBASE III table in memory
type Writer struct {
	fields []Field
	rows   [][]model.Value
	ldid   byte
}

// NewWriter creates a table writer for the given fields. Field offsets are
// computed from the lengths.
func NewWriter(fields []Field) (*Writer, error) {
	offset := 1
	out := make([]Field, len(fields))
	for i, f := range fields {
		if len(f.Name) == 0 || len(f.Name) > 10 {
			return nil, fmt.Errorf("field %d: name %q must be 1-10 bytes", i, f.Name)
		}
		if f.Length <= 0 || f.Length > 254 {
			return nil, fmt.Errorf("field %s: length %d out of range", f.Name, f.Length)
		}
		f.offset = offset
		offset += f.Length
		out[i] = f
	}
	return &Writer{fields: out}, nil
}

// SetLanguageDriver sets the LDID byte written to the header
func (w *Writer) SetLanguageDriver(ldid byte) { w.ldid = ldid }

// AddRow appends a record. Missing trailing values are written blank.
func (w *Writer) AddRow(values ...model.Value) error {
	if len(values) > len(w.fields) {
		return fmt.Errorf("row has %d values for %d fields", len(values), len(w.fields))
	}
	w.rows = append(w.rows, values)
	return nil
}

// WriteTo writes the header, descriptors and records
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	recLen := 1
	for _, f := range w.fields {
		recLen += f.Length
	}
	hdrLen := headerSize + descriptorSize*len(w.fields) + 1

	var buf bytes.Buffer
	hdr := make([]byte, headerSize)
	hdr[0] = 0x03
	now := time.Now()
	hdr[1], hdr[2], hdr[3] = byte(now.Year()-1900), byte(now.Month()), byte(now.Day())
	stdbinary.LittleEndian.PutUint32(hdr[4:], uint32(len(w.rows)))
	stdbinary.LittleEndian.PutUint16(hdr[8:], uint16(hdrLen))
	stdbinary.LittleEndian.PutUint16(hdr[10:], uint16(recLen))
	hdr[29] = w.ldid
	buf.Write(hdr)

	for _, f := range w.fields {
		desc := make([]byte, descriptorSize)
		copy(desc[:11], f.Name)
		desc[11] = f.Type
		desc[16] = byte(f.Length)
		desc[17] = byte(f.Decimals)
		buf.Write(desc)
	}
	buf.WriteByte(terminator)

	for _, row := range w.rows {
		buf.WriteByte(' ')
		for i, f := range w.fields {
			v := model.NullValue()
			if i < len(row) {
				v = row[i]
			}
			buf.WriteString(encodeCell(f, v))
		}
	}
	buf.WriteByte(0x1A)
	return buf.WriteTo(out)
}

// encodeCell formats a value to exactly f.Length bytes
func encodeCell(f Field, v model.Value) string {
	var s string
	rightAlign := false
	switch f.Type {
	case 'N', 'F':
		rightAlign = true
		switch v.Kind {
		case model.KindInteger:
			s = strconv.FormatInt(v.Int, 10)
		case model.KindFloat:
			s = strconv.FormatFloat(v.Float, 'f', f.Decimals, 64)
		case model.KindText:
			s = v.Text
		}
	case 'D':
		if v.Kind == model.KindDate {
			s = v.Date.Format("20060102")
		}
	case 'L':
		s = "?"
		if v.Kind == model.KindBool {
			s = "F"
			if v.Bool {
				s = "T"
			}
		}
	default:
		s = v.String()
	}
	if len(s) > f.Length {
		s = s[:f.Length]
	}
	pad := strings.Repeat(" ", f.Length-len(s))
	if rightAlign {
		return pad + s
	}
	return s + pad
}
