package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/dyuri/shpimport/internal/model"
)

const (
	HeaderSize       = 100  // Main file and index header length in bytes
	FileCode         = 9994 // Big-endian signature at offset 0
	Version          = 1000
	recordHeaderSize = 8
	indexEntrySize   = 8
)

// Common errors
var (
	ErrTruncatedInput       = errors.New("truncated input")
	ErrBadSignature         = errors.New("bad shapefile signature")
	ErrUnsupportedShapeType = errors.New("unsupported shape type")
	ErrCorruptGeometry      = errors.New("corrupt geometry")
	ErrShapeTypeMismatch    = fmt.Errorf("%w: record shape type differs from file", ErrCorruptGeometry)
	ErrDegeneratePart       = errors.New("degenerate part")
	ErrIndexMismatch        = errors.New("index inconsistent with main file")
)

// Header is the fixed 100-byte shapefile header
type Header struct {
	FileCode   int32
	FileLength int64 // Declared length in bytes (stored as 16-bit words)
	Version    int32
	ShapeType  model.ShapeType
	BBox       model.BoundingBox
}

// IndexEntry locates one record in the main file. Both values are in bytes;
// Offset points at the record header, ContentLength excludes it.
type IndexEntry struct {
	Offset        int64
	ContentLength int64
}

// Record is one decoded geometry record
type Record struct {
	Index    int   // Zero-based ordinal in the file
	Number   int32 // Record number from the record header (1-based)
	Offset   int64 // Offset of the record header
	Geometry model.Geometry
	Warnings []error // Non-fatal findings such as degenerate parts
}

// ReadHeader reads and validates a shapefile (or index) header at the
// start of the cursor's source
func ReadHeader(c *Cursor) (*Header, error) {
	if err := c.Seek(0); err != nil {
		return nil, err
	}
	buf, err := c.Read(HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("read header bytes: %w", err)
	}

	// Offset 0x00: file code, big-endian
	code := int32(binary.BigEndian.Uint32(buf[0:4]))
	if code != FileCode {
		return nil, fmt.Errorf("%w: file code %d, want %d", ErrBadSignature, code, FileCode)
	}

	// Offset 0x1C: version, little-endian
	version := int32(binary.LittleEndian.Uint32(buf[28:32]))
	if version != Version {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrBadSignature, version, Version)
	}

	// Offset 0x20: shape type
	rawType := int32(binary.LittleEndian.Uint32(buf[32:36]))
	st := model.ParseShapeType(rawType)
	if st == model.ShapeUnknown {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedShapeType, rawType)
	}

	// Offset 0x18: file length in 16-bit words, big-endian
	h := &Header{
		FileCode:   code,
		FileLength: 2 * int64(binary.BigEndian.Uint32(buf[24:28])),
		Version:    version,
		ShapeType:  st,
	}

	// Offset 0x24: Xmin, Ymin, Xmax, Ymax, Zmin, Zmax, Mmin, Mmax
	box := make([]float64, 8)
	for i := range box {
		box[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[36+8*i:]))
	}
	h.BBox = model.BoundingBox{
		MinX: box[0], MinY: box[1], MaxX: box[2], MaxY: box[3],
		MinZ: box[4], MaxZ: box[5], MinM: box[6], MaxM: box[7],
	}
	return h, nil
}

// ReadIndex decodes a .shx file into its record entries
func ReadIndex(r io.ReaderAt, size int64) (*Header, []IndexEntry, error) {
	c := NewCursor(r, size)
	h, err := ReadHeader(c)
	if err != nil {
		return nil, nil, fmt.Errorf("read index header: %w", err)
	}

	body := size - HeaderSize
	if h.FileLength < size {
		body = h.FileLength - HeaderSize
	}
	if body < 0 {
		return nil, nil, fmt.Errorf("%w: declared index length %d", ErrIndexMismatch, h.FileLength)
	}
	n := int(body / indexEntrySize)
	raw, err := c.Int32s(n*2, binary.BigEndian)
	if err != nil {
		return nil, nil, fmt.Errorf("read index entries: %w", err)
	}

	entries := make([]IndexEntry, n)
	for i := range entries {
		entries[i] = IndexEntry{
			Offset:        2 * int64(raw[2*i]),
			ContentLength: 2 * int64(raw[2*i+1]),
		}
	}
	return h, entries, nil
}

// Reader walks the geometry records of a .shp file, either through an
// index or sequentially by following each record's declared length
type Reader struct {
	c       *Cursor
	header  *Header
	index   []IndexEntry // nil when walking sequentially
	end     int64        // Last usable byte offset (exclusive)
	next    int          // Ordinal of the next record
	pos     int64        // Next record offset for sequential walking
	stopped bool
	trailer error // Bytes too short for a record header at the end of the walk
}

// NewReader creates a shapefile reader over r, which holds size bytes
func NewReader(r io.ReaderAt, size int64) *Reader {
	return &Reader{
		c:   NewCursor(r, size),
		pos: HeaderSize,
	}
}

// ReadHeader reads and validates the main file header. It must be called
// before any record is read.
func (r *Reader) ReadHeader() (*Header, error) {
	h, err := ReadHeader(r.c)
	if err != nil {
		return nil, err
	}
	r.header = h
	r.end = r.c.Size()
	if h.FileLength >= HeaderSize && h.FileLength < r.end {
		r.end = h.FileLength
	}
	r.pos = HeaderSize
	return h, nil
}

// Header returns the parsed header, or nil before ReadHeader
func (r *Reader) Header() *Header { return r.header }

// UseIndex switches the reader to indexed access. The entries must lie in
// file order without overlapping and the last record must end exactly at
// the main file's declared length; otherwise the index is unusable, the
// reader keeps walking sequentially and ErrIndexMismatch is returned.
func (r *Reader) UseIndex(entries []IndexEntry) error {
	if r.header == nil {
		return fmt.Errorf("use index: header not read")
	}
	next := int64(HeaderSize)
	for i, e := range entries {
		if e.Offset < next || e.ContentLength < 0 ||
			e.Offset+recordHeaderSize+e.ContentLength > r.end {
			return fmt.Errorf("%w: entry %d (offset %d, length %d) overlaps a record or lies outside %d bytes",
				ErrIndexMismatch, i, e.Offset, e.ContentLength, r.end)
		}
		next = e.Offset + recordHeaderSize + e.ContentLength
	}
	if next != r.end {
		return fmt.Errorf("%w: %d entries cover %d of %d bytes",
			ErrIndexMismatch, len(entries), next, r.end)
	}
	r.index = entries
	return nil
}

// LoadIndex reads a .shx file and switches the reader to it when its
// header matches the main file and every entry fits
func (r *Reader) LoadIndex(idx io.ReaderAt, size int64) error {
	if r.header == nil {
		return fmt.Errorf("load index: header not read")
	}
	ih, entries, err := ReadIndex(idx, size)
	if err != nil {
		return err
	}
	if ih.ShapeType != r.header.ShapeType {
		return fmt.Errorf("%w: index shape type %s, main file %s",
			ErrIndexMismatch, ih.ShapeType, r.header.ShapeType)
	}
	return r.UseIndex(entries)
}

// Trailer reports leftover bytes after the last record of a sequential
// walk that are too short to hold a record header. It is set once Next
// has returned io.EOF.
func (r *Reader) Trailer() error { return r.trailer }

// Indexed reports whether records are located through the index
func (r *Reader) Indexed() bool { return r.index != nil }

// NumRecords returns the record count when known from the index, or -1
func (r *Reader) NumRecords() int {
	if r.index == nil {
		return -1
	}
	return len(r.index)
}

// Next decodes the next record. It returns io.EOF after the last record.
// A record-level error comes with a non-nil Record carrying its position;
// the caller may keep calling Next. When walking sequentially a record
// whose length runs past the end of the file stops the walk.
func (r *Reader) Next() (*Record, error) {
	if r.header == nil {
		return nil, fmt.Errorf("read record: header not read")
	}
	if r.stopped {
		return nil, io.EOF
	}

	var offset int64
	if r.index != nil {
		if r.next >= len(r.index) {
			return nil, io.EOF
		}
		offset = r.index[r.next].Offset
	} else {
		if r.pos+recordHeaderSize > r.end {
			if r.pos != r.end {
				r.stopped = true
				r.trailer = fmt.Errorf("%w: %d trailing bytes at offset %d",
					ErrTruncatedInput, r.end-r.pos, r.pos)
			}
			return nil, io.EOF
		}
		offset = r.pos
	}

	rec := &Record{Index: r.next, Offset: offset}
	r.next++

	number, content, err := r.readRecordAt(offset)
	rec.Number = number
	if err != nil {
		if r.index == nil {
			r.stopped = true
		}
		return rec, err
	}
	if r.index == nil {
		r.pos = offset + recordHeaderSize + int64(len(content))
	}

	geom, warnings, err := DecodeGeometry(content, r.header.ShapeType)
	if err != nil {
		return rec, fmt.Errorf("record %d: %w", number, err)
	}
	rec.Geometry = geom
	rec.Warnings = warnings
	return rec, nil
}

// RecordAt decodes record i through the index
func (r *Reader) RecordAt(i int) (*Record, error) {
	if r.index == nil {
		return nil, fmt.Errorf("random access requires an index")
	}
	if i < 0 || i >= len(r.index) {
		return nil, fmt.Errorf("record %d out of range [0, %d)", i, len(r.index))
	}
	rec := &Record{Index: i, Offset: r.index[i].Offset}
	number, content, err := r.readRecordAt(rec.Offset)
	rec.Number = number
	if err != nil {
		return rec, err
	}
	rec.Geometry, rec.Warnings, err = DecodeGeometry(content, r.header.ShapeType)
	if err != nil {
		return rec, fmt.Errorf("record %d: %w", number, err)
	}
	return rec, nil
}

// Scan walks the record headers sequentially without decoding geometry and
// returns an index entry per record
func (r *Reader) Scan() ([]IndexEntry, error) {
	if r.header == nil {
		return nil, fmt.Errorf("scan: header not read")
	}
	var entries []IndexEntry
	pos := int64(HeaderSize)
	for pos+recordHeaderSize <= r.end {
		if err := r.c.Seek(pos); err != nil {
			return entries, err
		}
		if _, err := r.c.Int32(binary.BigEndian); err != nil {
			return entries, err
		}
		words, err := r.c.Int32(binary.BigEndian)
		if err != nil {
			return entries, err
		}
		length := 2 * int64(words)
		if words < 0 || pos+recordHeaderSize+length > r.end {
			return entries, fmt.Errorf("%w: record at offset %d declares %d bytes",
				ErrTruncatedInput, pos, length)
		}
		entries = append(entries, IndexEntry{Offset: pos, ContentLength: length})
		pos += recordHeaderSize + length
	}
	return entries, nil
}

// readRecordAt reads the record header at offset and returns the record
// number and raw content bytes
func (r *Reader) readRecordAt(offset int64) (int32, []byte, error) {
	if err := r.c.Seek(offset); err != nil {
		return 0, nil, err
	}
	number, err := r.c.Int32(binary.BigEndian)
	if err != nil {
		return 0, nil, fmt.Errorf("read record header: %w", err)
	}
	words, err := r.c.Int32(binary.BigEndian)
	if err != nil {
		return number, nil, fmt.Errorf("read record header: %w", err)
	}
	length := 2 * int64(words)
	if words < 0 || offset+recordHeaderSize+length > r.end {
		return number, nil, fmt.Errorf("%w: record %d at offset %d declares %d bytes, file ends at %d",
			ErrTruncatedInput, number, offset, length, r.end)
	}
	content, err := r.c.Read(int(length))
	if err != nil {
		return number, nil, fmt.Errorf("read record %d content: %w", number, err)
	}
	return number, content, nil
}
