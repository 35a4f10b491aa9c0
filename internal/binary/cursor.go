package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Cursor is a positioned reader over a fixed-size byte source. Every read
// that would run past the end of the source fails with ErrTruncatedInput.
type Cursor struct {
	r    io.ReaderAt
	size int64
	pos  int64
}

// NewCursor creates a cursor over r, which holds size bytes
func NewCursor(r io.ReaderAt, size int64) *Cursor {
	return &Cursor{r: r, size: size}
}

// NewBytesCursor creates a cursor over an in-memory buffer
func NewBytesCursor(b []byte) *Cursor {
	return NewCursor(bytes.NewReader(b), int64(len(b)))
}

// Pos returns the current absolute offset
func (c *Cursor) Pos() int64 { return c.pos }

// Size returns the total size of the source
func (c *Cursor) Size() int64 { return c.size }

// Remaining returns the number of bytes after the current offset
func (c *Cursor) Remaining() int64 { return c.size - c.pos }

// Seek moves to an absolute offset. Seeking to Size() is allowed.
func (c *Cursor) Seek(off int64) error {
	if off < 0 || off > c.size {
		return fmt.Errorf("%w: seek to %d beyond %d bytes", ErrTruncatedInput, off, c.size)
	}
	c.pos = off
	return nil
}

// Skip advances the cursor by n bytes
func (c *Cursor) Skip(n int64) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

// need checks that n more bytes are available
func (c *Cursor) need(n int64) error {
	if n < 0 || n > c.Remaining() {
		return fmt.Errorf("%w: need %d bytes at offset %d, %d available",
			ErrTruncatedInput, n, c.pos, c.Remaining())
	}
	return nil
}

// Read reads exactly n bytes
func (c *Cursor) Read(n int) ([]byte, error) {
	if err := c.need(int64(n)); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	got, err := c.r.ReadAt(buf, c.pos)
	if got < n {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: read %d of %d bytes at offset %d: %v",
			ErrTruncatedInput, got, n, c.pos, err)
	}
	c.pos += int64(n)
	return buf, nil
}

// Uint16 reads a 2-byte unsigned integer
func (c *Cursor) Uint16(order binary.ByteOrder) (uint16, error) {
	b, err := c.Read(2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(b), nil
}

// Uint32 reads a 4-byte unsigned integer
func (c *Cursor) Uint32(order binary.ByteOrder) (uint32, error) {
	b, err := c.Read(4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

// Int32 reads a 4-byte signed integer
func (c *Cursor) Int32(order binary.ByteOrder) (int32, error) {
	v, err := c.Uint32(order)
	return int32(v), err
}

// Float64 reads an IEEE 754 double
func (c *Cursor) Float64(order binary.ByteOrder) (float64, error) {
	b, err := c.Read(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(order.Uint64(b)), nil
}

// Float64s reads n consecutive doubles. The length is checked before
// anything is allocated so a corrupt count cannot trigger a huge allocation.
func (c *Cursor) Float64s(n int, order binary.ByteOrder) ([]float64, error) {
	if err := c.need(int64(n) * 8); err != nil {
		return nil, err
	}
	b, err := c.Read(n * 8)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(order.Uint64(b[i*8:]))
	}
	return out, nil
}

// Int32s reads n consecutive 4-byte signed integers
func (c *Cursor) Int32s(n int, order binary.ByteOrder) ([]int32, error) {
	if err := c.need(int64(n) * 4); err != nil {
		return nil, err
	}
	b, err := c.Read(n * 4)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(order.Uint32(b[i*4:]))
	}
	return out, nil
}
