// Package dbf reads the dBASE attribute table that accompanies a shapefile.
package dbf

import (
	"bytes"
	stdbinary "encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dyuri/shpimport/internal/binary"
	"github.com/dyuri/shpimport/internal/model"
	"golang.org/x/text/encoding"
)

const (
	headerSize     = 32
	descriptorSize = 32
	terminator     = 0x0D
	deletedFlag    = '*'
)

// ErrBadTable reports a table header that cannot describe valid records
var ErrBadTable = errors.New("bad attribute table")

// Field describes one column of the table
type Field struct {
	Name     string
	Type     byte // dBASE type tag: C, N, F, D, L, I, O, M, ...
	Length   int
	Decimals int
	offset   int // Offset inside a record, after the deletion flag
}

// Header is the fixed part of the table header
type Header struct {
	Version        byte
	Updated        time.Time
	NumRecords     int
	HeaderLength   int
	RecordLength   int
	LanguageDriver byte // Code page marker (LDID)
}

// Reader decodes fixed-length records from a .dbf file
type Reader struct {
	c       *binary.Cursor
	header  Header
	fields  []Field
	decoder *encoding.Decoder // Text decoder for C fields; nil keeps raw bytes
	next    int
}

// Option configures a Reader
type Option func(*Reader)

// WithEncoding overrides the text encoding derived from the language driver byte
func WithEncoding(enc encoding.Encoding) Option {
	return func(r *Reader) {
		if enc != nil {
			r.decoder = enc.NewDecoder()
		}
	}
}

// NewReader reads the table header and field descriptors
func NewReader(r io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	rd := &Reader{c: binary.NewCursor(r, size)}

	buf, err := rd.c.Read(headerSize)
	if err != nil {
		return nil, fmt.Errorf("read table header: %w", err)
	}
	rd.header = Header{
		Version:        buf[0],
		NumRecords:     int(stdbinary.LittleEndian.Uint32(buf[4:8])),
		HeaderLength:   int(stdbinary.LittleEndian.Uint16(buf[8:10])),
		RecordLength:   int(stdbinary.LittleEndian.Uint16(buf[10:12])),
		LanguageDriver: buf[29],
	}
	if buf[2] >= 1 && buf[2] <= 12 && buf[3] >= 1 && buf[3] <= 31 {
		rd.header.Updated = time.Date(1900+int(buf[1]), time.Month(buf[2]), int(buf[3]), 0, 0, 0, 0, time.UTC)
	}
	if enc := EncodingForLanguageDriver(rd.header.LanguageDriver); enc != nil {
		rd.decoder = enc.NewDecoder()
	}
	for _, opt := range opts {
		opt(rd)
	}

	if rd.header.HeaderLength < headerSize+1 || rd.header.RecordLength < 1 {
		return nil, fmt.Errorf("%w: header length %d, record length %d",
			ErrBadTable, rd.header.HeaderLength, rd.header.RecordLength)
	}
	if err := rd.readFields(); err != nil {
		return nil, err
	}
	return rd, nil
}

func (r *Reader) readFields() error {
	offset := 1
	for r.c.Pos()+1 <= int64(r.header.HeaderLength) {
		first, err := r.c.Read(1)
		if err != nil {
			return fmt.Errorf("read field descriptor: %w", err)
		}
		if first[0] == terminator {
			break
		}
		rest, err := r.c.Read(descriptorSize - 1)
		if err != nil {
			return fmt.Errorf("read field descriptor: %w", err)
		}
		desc := append(first, rest...)

		name := desc[:11]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		f := Field{
			Name:     strings.TrimSpace(r.decodeText(name)),
			Type:     desc[11],
			Length:   int(desc[16]),
			Decimals: int(desc[17]),
			offset:   offset,
		}
		offset += f.Length
		r.fields = append(r.fields, f)
	}
	if offset > r.header.RecordLength {
		return fmt.Errorf("%w: fields span %d bytes, record length %d",
			ErrBadTable, offset, r.header.RecordLength)
	}
	return nil
}

// Header returns the table header
func (r *Reader) Header() Header { return r.header }

// Fields returns the field descriptors in table order
func (r *Reader) Fields() []Field { return r.fields }

// NumRecords returns the record count declared in the header
func (r *Reader) NumRecords() int { return r.header.NumRecords }

// Row decodes record i. The second result reports the deletion flag.
func (r *Reader) Row(i int) (*model.AttributeRow, bool, error) {
	if i < 0 || i >= r.header.NumRecords {
		return nil, false, fmt.Errorf("row %d out of range [0, %d)", i, r.header.NumRecords)
	}
	off := int64(r.header.HeaderLength) + int64(i)*int64(r.header.RecordLength)
	if err := r.c.Seek(off); err != nil {
		return nil, false, fmt.Errorf("row %d: %w", i, err)
	}
	rec, err := r.c.Read(r.header.RecordLength)
	if err != nil {
		return nil, false, fmt.Errorf("row %d: %w", i, err)
	}

	row := model.NewAttributeRow(len(r.fields))
	for _, f := range r.fields {
		row.Set(f.Name, r.decodeField(f, rec[f.offset:f.offset+f.Length]))
	}
	return row, rec[0] == deletedFlag, nil
}

// Next decodes the next record in order and returns io.EOF after the last one
func (r *Reader) Next() (*model.AttributeRow, error) {
	if r.next >= r.header.NumRecords {
		return nil, io.EOF
	}
	row, _, err := r.Row(r.next)
	r.next++
	return row, err
}

func (r *Reader) decodeText(raw []byte) string {
	if r.decoder == nil {
		return string(raw)
	}
	s, err := r.decoder.Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(s)
}

// decodeField converts the raw bytes of one cell by the field's type tag.
// Blank numeric, date and logical cells decode to null; numeric cells that
// do not parse keep their text so callers can report the bad value.
func (r *Reader) decodeField(f Field, raw []byte) model.Value {
	switch f.Type {
	case 'C':
		return model.TextValue(strings.TrimRight(r.decodeText(raw), " \x00"))
	case 'N', 'F':
		s := strings.TrimSpace(strings.Trim(string(raw), "\x00"))
		if s == "" || strings.Trim(s, "*") == "" {
			return model.NullValue()
		}
		if f.Type == 'N' && f.Decimals == 0 {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				return model.IntValue(v)
			}
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return model.FloatValue(v)
		}
		return model.TextValue(s)
	case 'D':
		s := strings.TrimSpace(string(raw))
		if s == "" || strings.Trim(s, "0") == "" {
			return model.NullValue()
		}
		if t, err := time.Parse("20060102", s); err == nil {
			return model.DateValue(t)
		}
		return model.TextValue(s)
	case 'L':
		switch strings.TrimSpace(string(raw)) {
		case "T", "t", "Y", "y":
			return model.BoolValue(true)
		case "F", "f", "N", "n":
			return model.BoolValue(false)
		}
		return model.NullValue()
	case 'I':
		if len(raw) == 4 {
			return model.IntValue(int64(int32(stdbinary.LittleEndian.Uint32(raw))))
		}
	case 'O':
		if len(raw) == 8 {
			return model.FloatValue(math.Float64frombits(stdbinary.LittleEndian.Uint64(raw)))
		}
	case '@', 'T':
		if len(raw) == 8 {
			// Julian day number and milliseconds since midnight
			day := int64(int32(stdbinary.LittleEndian.Uint32(raw[0:4])))
			ms := int64(int32(stdbinary.LittleEndian.Uint32(raw[4:8])))
			if day == 0 {
				return model.NullValue()
			}
			t := time.Unix((day-2440588)*86400, ms*int64(time.Millisecond)).UTC()
			return model.DateValue(t)
		}
	}
	return model.TextValue(strings.TrimSpace(r.decodeText(raw)))
}
