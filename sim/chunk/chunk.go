// Package chunk implements the byte-sequence model that packets are built
// from.
//
// A Chunk is one of four kinds: two leaf kinds (*BytesChunk carrying literal
// data, *ByteCountChunk carrying only a length), *SliceChunk (a zero-copy view
// of a sub-range of another chunk) and *SequenceChunk (an ordered
// concatenation). The set is closed: the unexported marker method keeps other
// packages from adding kinds, so every function over chunks is a total type
// switch.
//
// Chunks start mutable. Seal makes a chunk immutable for good; once sealed, a
// chunk can be shared by any number of packets and slices, and changing it
// requires forking a copy first. Go's garbage collector replaces explicit
// reference counting: a chunk lives as long as its longest holder.
package chunk

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrImmutableChunk is returned when a sealed chunk is asked to change.
	ErrImmutableChunk = errors.New("chunk is sealed")

	// ErrRange is returned when an offset or length falls outside a chunk.
	ErrRange = errors.New("chunk range out of bounds")
)

// Kind identifies the concrete chunk variant.
type Kind int

const (
	KindBytes Kind = iota
	KindByteCount
	KindSlice
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindByteCount:
		return "bytecount"
	case KindSlice:
		return "slice"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Chunk is a contiguous or composite span of bytes.
type Chunk interface {
	// Kind returns the concrete variant.
	Kind() Kind
	// Length returns the number of bytes; never negative.
	Length() int64
	// IsSealed reports whether the chunk is immutable.
	IsSealed() bool
	// Seal makes the chunk immutable. Sealing is one-way.
	Seal()
	// Bytes materializes the content into a new slice.
	Bytes() []byte
	String() string

	isChunk()
}

// sealable carries the one-way immutability flag shared by every kind.
type sealable struct {
	sealed bool
}

func (s *sealable) IsSealed() bool { return s.sealed }

func (s *sealable) checkMutable(c Chunk) error {
	if s.sealed {
		return fmt.Errorf("%w: %s", ErrImmutableChunk, c)
	}
	return nil
}

func (*sealable) isChunk() {}

// checkRange validates [offset, offset+length) against total.
func checkRange(total, offset, length int64) error {
	if offset < 0 || length < 0 || offset > total || length > total-offset {
		return fmt.Errorf("%w: [%d, %d+%d) of %d bytes", ErrRange, offset, offset, length, total)
	}
	return nil
}

// appendRange appends length bytes of c starting at offset to dst. The range
// must already be validated.
func appendRange(dst []byte, c Chunk, offset, length int64) []byte {
	if length == 0 {
		return dst
	}
	switch c := c.(type) {
	case *BytesChunk:
		return append(dst, c.data[offset:offset+length]...)
	case *ByteCountChunk:
		for i := int64(0); i < length; i++ {
			dst = append(dst, c.fill)
		}
		return dst
	case *SliceChunk:
		return appendRange(dst, c.source, c.offset+offset, length)
	case *SequenceChunk:
		pos := int64(0)
		end := offset + length
		for _, e := range c.chunks {
			elen := e.Length()
			if pos+elen <= offset {
				pos += elen
				continue
			}
			if pos >= end {
				break
			}
			from := max(offset, pos)
			to := min(end, pos+elen)
			dst = appendRange(dst, e, from-pos, to-from)
			pos += elen
		}
		return dst
	default:
		panic(fmt.Sprintf("chunk: unknown kind %T", c))
	}
}

// Equal reports whether a and b have the same byte content.
func Equal(a, b Chunk) bool {
	if a.Length() != b.Length() {
		return false
	}
	if a == b {
		return true
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}
