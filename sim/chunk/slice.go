package chunk

import (
	"fmt"
)

// SliceChunk is a zero-copy view of [offset, offset+length) of another chunk.
// The viewed chunk is sealed when the slice is created so the view stays
// valid for as long as it exists.
type SliceChunk struct {
	sealable
	source Chunk
	offset int64
	length int64
}

// NewSliceChunk returns a view of length bytes of c starting at offset.
// A slice of a slice is collapsed into a slice of the innermost source.
func NewSliceChunk(c Chunk, offset, length int64) (*SliceChunk, error) {
	if err := checkRange(c.Length(), offset, length); err != nil {
		return nil, err
	}
	if s, ok := c.(*SliceChunk); ok {
		c = s.source
		offset += s.offset
	}
	c.Seal()
	return &SliceChunk{source: c, offset: offset, length: length}, nil
}

func (c *SliceChunk) Kind() Kind    { return KindSlice }
func (c *SliceChunk) Length() int64 { return c.length }

// Seal sets the flag only; a slice has no mutators.
func (c *SliceChunk) Seal() { c.sealed = true }

// Chunk returns the viewed chunk.
func (c *SliceChunk) Chunk() Chunk { return c.source }

// Offset returns the start of the view within Chunk.
func (c *SliceChunk) Offset() int64 { return c.offset }

func (c *SliceChunk) Bytes() []byte {
	return appendRange(make([]byte, 0, c.length), c.source, c.offset, c.length)
}

func (c *SliceChunk) String() string {
	return fmt.Sprintf("SliceChunk([%d, %d) of %s)", c.offset, c.offset+c.length, c.source)
}

// Peek returns length bytes of c starting at offset, allocating as little as
// possible: c itself for the full range, a fresh ByteCountChunk for
// byte-count content, otherwise a SliceChunk. Peek never seals c; a slice of
// a mutable chunk views a sealed snapshot of it.
func Peek(c Chunk, offset, length int64) (Chunk, error) {
	if err := checkRange(c.Length(), offset, length); err != nil {
		return nil, err
	}
	if offset == 0 && length == c.Length() {
		return c, nil
	}
	switch c := c.(type) {
	case *ByteCountChunk:
		bc, _ := NewByteCountChunk(length, c.fill)
		bc.Seal()
		return bc, nil
	case *SliceChunk:
		return Peek(c.source, c.offset+offset, length)
	default:
		s, err := NewSliceChunk(snapshot(c), offset, length)
		if err != nil {
			return nil, err
		}
		s.Seal()
		return s, nil
	}
}

// snapshot returns c if it is sealed, otherwise a sealed copy that later
// writes to c do not reach.
func snapshot(c Chunk) Chunk {
	if c.IsSealed() {
		return c
	}
	switch c := c.(type) {
	case *BytesChunk:
		s := NewBytesChunk(c.data)
		s.Seal()
		return s
	case *SequenceChunk:
		s := c.Clone()
		s.Seal()
		return s
	}
	return c
}

// Merge returns a single chunk equal to the concatenation of a and b when
// the two are compatible, and nil when they should be kept separate.
// Neither argument is modified.
func Merge(a, b Chunk) Chunk {
	switch a := a.(type) {
	case *ByteCountChunk:
		if b, ok := b.(*ByteCountChunk); ok && a.fill == b.fill {
			m, _ := NewByteCountChunk(a.length+b.length, a.fill)
			m.Seal()
			return m
		}
	case *BytesChunk:
		if b, ok := b.(*BytesChunk); ok {
			data := make([]byte, 0, len(a.data)+len(b.data))
			m := &BytesChunk{data: append(append(data, a.data...), b.data...)}
			m.Seal()
			return m
		}
	case *SliceChunk:
		if b, ok := b.(*SliceChunk); ok && a.source == b.source && a.offset+a.length == b.offset {
			if a.offset == 0 && a.length+b.length == a.source.Length() {
				return a.source
			}
			m := &SliceChunk{source: a.source, offset: a.offset, length: a.length + b.length}
			m.Seal()
			return m
		}
	case *SequenceChunk:
		// Sequences flatten instead of merging.
	}
	return nil
}
