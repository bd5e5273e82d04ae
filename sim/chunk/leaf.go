package chunk

import (
	"fmt"
)

// BytesChunk is a leaf chunk holding literal bytes.
type BytesChunk struct {
	sealable
	data []byte
}

// NewBytesChunk returns a mutable chunk holding a copy of data.
func NewBytesChunk(data []byte) *BytesChunk {
	return &BytesChunk{data: append([]byte(nil), data...)}
}

func (c *BytesChunk) Kind() Kind    { return KindBytes }
func (c *BytesChunk) Length() int64 { return int64(len(c.data)) }
func (c *BytesChunk) Seal()         { c.sealed = true }

// Bytes returns a copy of the content.
func (c *BytesChunk) Bytes() []byte {
	return append([]byte(nil), c.data...)
}

// ByteAt returns the byte at offset i.
func (c *BytesChunk) ByteAt(i int64) (byte, error) {
	if err := checkRange(c.Length(), i, 1); err != nil {
		return 0, err
	}
	return c.data[i], nil
}

// SetByte overwrites the byte at offset i.
func (c *BytesChunk) SetByte(i int64, b byte) error {
	if err := c.checkMutable(c); err != nil {
		return err
	}
	if err := checkRange(c.Length(), i, 1); err != nil {
		return err
	}
	c.data[i] = b
	return nil
}

// SetBytes replaces the whole content with a copy of data.
func (c *BytesChunk) SetBytes(data []byte) error {
	if err := c.checkMutable(c); err != nil {
		return err
	}
	c.data = append(c.data[:0:0], data...)
	return nil
}

func (c *BytesChunk) String() string {
	if len(c.data) <= 8 {
		return fmt.Sprintf("BytesChunk(%d, % x)", len(c.data), c.data)
	}
	return fmt.Sprintf("BytesChunk(%d, % x ...)", len(c.data), c.data[:8])
}

// ByteCountChunk is a leaf chunk that models length without carrying data.
// Reading its content yields the fill byte repeated Length times.
type ByteCountChunk struct {
	sealable
	length int64
	fill   byte
}

// NewByteCountChunk returns a mutable chunk of the given length. A negative
// length is rejected with ErrRange.
func NewByteCountChunk(length int64, fill byte) (*ByteCountChunk, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrRange, length)
	}
	return &ByteCountChunk{length: length, fill: fill}, nil
}

func (c *ByteCountChunk) Kind() Kind    { return KindByteCount }
func (c *ByteCountChunk) Length() int64 { return c.length }
func (c *ByteCountChunk) Seal()         { c.sealed = true }

// Fill returns the byte the content reads as.
func (c *ByteCountChunk) Fill() byte { return c.fill }

func (c *ByteCountChunk) Bytes() []byte {
	return appendRange(make([]byte, 0, c.length), c, 0, c.length)
}

// SetLength changes the modelled length.
func (c *ByteCountChunk) SetLength(length int64) error {
	if err := c.checkMutable(c); err != nil {
		return err
	}
	if length < 0 {
		return fmt.Errorf("%w: negative length %d", ErrRange, length)
	}
	c.length = length
	return nil
}

func (c *ByteCountChunk) String() string {
	return fmt.Sprintf("ByteCountChunk(%d, fill=%#02x)", c.length, c.fill)
}
