package cdf

import (
	"encoding/binary"
	"fmt"
)

// cursor walks big-endian record fields. The first out-of-range access
// sticks in err and every later read returns zero.
type cursor struct {
	buf []byte
	pos int64
	err error
}

func newCursor(buf []byte, off int64) *cursor {
	c := &cursor{buf: buf}
	c.seek(off)
	return c
}

func (c *cursor) seek(off int64) {
	if c.err == nil && (off < 0 || off > int64(len(c.buf))) {
		c.err = fmt.Errorf("%w: offset %d outside file of %d bytes", ErrFormat, off, len(c.buf))
	}
	c.pos = off
}

func (c *cursor) take(n int64) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > c.remaining() {
		c.err = fmt.Errorf("%w: truncated record at offset %d", ErrFormat, c.pos)
		return nil
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) skip(n int64) { c.take(n) }

// remaining is the number of bytes after the current position.
func (c *cursor) remaining() int64 {
	if c.pos > int64(len(c.buf)) {
		return 0
	}
	return int64(len(c.buf)) - c.pos
}

func (c *cursor) i32() int32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (c *cursor) i64() int64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// header reads the size/type pair that opens every internal record and
// checks the type.
func (c *cursor) header(want int32) (size int64) {
	start := c.pos
	size = c.i64()
	typ := c.i32()
	if c.err == nil && typ != want {
		c.err = fmt.Errorf("%w: record at offset %d has type %d, want %d", ErrFormat, start, typ, want)
	}
	return size
}

// name reads a NUL-padded fixed-width string.
func (c *cursor) name(width int64) string {
	b := c.take(width)
	for i, ch := range b {
		if ch == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
