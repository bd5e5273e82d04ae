package chunk

import (
	"fmt"
	"strings"
)

// SequenceChunk is an ordered concatenation of chunks. Its length is always
// the sum of its element lengths; elements are sealed when inserted and never
// nested when inserted with flattening.
type SequenceChunk struct {
	sealable
	chunks []Chunk
	length int64
}

// NewSequenceChunk returns a mutable sequence holding elements in order,
// flattening nested sequences.
func NewSequenceChunk(elements ...Chunk) *SequenceChunk {
	s := &SequenceChunk{}
	for _, e := range elements {
		s.appendChunk(e, true)
	}
	return s
}

func (s *SequenceChunk) Kind() Kind    { return KindSequence }
func (s *SequenceChunk) Length() int64 { return s.length }

// Seal seals the sequence and every element.
func (s *SequenceChunk) Seal() {
	s.sealed = true
	for _, e := range s.chunks {
		e.Seal()
	}
}

func (s *SequenceChunk) Bytes() []byte {
	return appendRange(make([]byte, 0, s.length), s, 0, s.length)
}

// NumElements returns the number of elements.
func (s *SequenceChunk) NumElements() int { return len(s.chunks) }

// Elements returns a copy of the element list.
func (s *SequenceChunk) Elements() []Chunk {
	return append([]Chunk(nil), s.chunks...)
}

// Clone returns a mutable sequence sharing this sequence's (sealed) elements.
// It is the fork step before writing to a shared sequence.
func (s *SequenceChunk) Clone() *SequenceChunk {
	for _, e := range s.chunks {
		e.Seal()
	}
	return &SequenceChunk{chunks: append([]Chunk(nil), s.chunks...), length: s.length}
}

func (s *SequenceChunk) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SequenceChunk(%d, [", s.length)
	for i, e := range s.chunks {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteString("])")
	return b.String()
}

// Prepend inserts c at the front. With flatten, a sequence argument
// contributes its elements instead of being nested.
func (s *SequenceChunk) Prepend(c Chunk, flatten bool) error {
	if err := s.checkMutable(s); err != nil {
		return err
	}
	s.prependChunk(c, flatten)
	return nil
}

// Append inserts c at the back. With flatten, a sequence argument
// contributes its elements instead of being nested. A slice of a sequence is
// always decomposed into slices of the underlying elements.
func (s *SequenceChunk) Append(c Chunk, flatten bool) error {
	if err := s.checkMutable(s); err != nil {
		return err
	}
	s.appendChunk(c, flatten)
	return nil
}

func (s *SequenceChunk) appendChunk(c Chunk, flatten bool) {
	if c.Length() == 0 {
		return
	}
	switch c := c.(type) {
	case *SequenceChunk:
		if flatten {
			for _, e := range c.chunks {
				s.appendChunk(e, true)
			}
			return
		}
	case *SliceChunk:
		if seq, ok := c.source.(*SequenceChunk); ok {
			seq.forEachPiece(c.offset, c.length, func(piece Chunk) {
				s.appendChunk(piece, flatten)
			})
			return
		}
	}
	c.Seal()
	if n := len(s.chunks); n > 0 {
		if m := Merge(s.chunks[n-1], c); m != nil {
			s.chunks[n-1] = m
			s.length += c.Length()
			return
		}
	}
	s.chunks = append(s.chunks, c)
	s.length += c.Length()
}

func (s *SequenceChunk) prependChunk(c Chunk, flatten bool) {
	if c.Length() == 0 {
		return
	}
	switch c := c.(type) {
	case *SequenceChunk:
		if flatten {
			for i := len(c.chunks) - 1; i >= 0; i-- {
				s.prependChunk(c.chunks[i], true)
			}
			return
		}
	case *SliceChunk:
		if seq, ok := c.source.(*SequenceChunk); ok {
			var pieces []Chunk
			seq.forEachPiece(c.offset, c.length, func(piece Chunk) {
				pieces = append(pieces, piece)
			})
			for i := len(pieces) - 1; i >= 0; i-- {
				s.prependChunk(pieces[i], flatten)
			}
			return
		}
	}
	c.Seal()
	if len(s.chunks) > 0 {
		if m := Merge(c, s.chunks[0]); m != nil {
			s.chunks[0] = m
			s.length += c.Length()
			return
		}
	}
	s.chunks = append([]Chunk{c}, s.chunks...)
	s.length += c.Length()
}

// forEachPiece calls fn with the part of every element that overlaps
// [offset, offset+length): the element itself when fully contained, a slice
// of its tail when it straddles the start, a slice of its head when it
// straddles the end.
func (s *SequenceChunk) forEachPiece(offset, length int64, fn func(Chunk)) {
	end := offset + length
	pos := int64(0)
	for _, e := range s.chunks {
		elen := e.Length()
		if pos >= end {
			return
		}
		if pos+elen > offset {
			from := max(offset, pos)
			to := min(end, pos+elen)
			piece, err := Peek(e, from-pos, to-from)
			if err != nil {
				panic(fmt.Sprintf("chunk: sequence element bounds corrupted: %v", err))
			}
			fn(piece)
		}
		pos += elen
	}
}

// RemoveBeginning drops the first n bytes.
func (s *SequenceChunk) RemoveBeginning(n int64) error {
	if err := s.checkMutable(s); err != nil {
		return err
	}
	if err := checkRange(s.length, 0, n); err != nil {
		return err
	}
	s.length -= n
	for n > 0 {
		e := s.chunks[0]
		elen := e.Length()
		if elen <= n {
			s.chunks[0] = nil
			s.chunks = s.chunks[1:]
			n -= elen
			continue
		}
		rest, err := Peek(e, n, elen-n)
		if err != nil {
			return err
		}
		s.chunks[0] = rest
		n = 0
	}
	return nil
}

// RemoveEnd drops the last n bytes.
func (s *SequenceChunk) RemoveEnd(n int64) error {
	if err := s.checkMutable(s); err != nil {
		return err
	}
	if err := checkRange(s.length, 0, n); err != nil {
		return err
	}
	s.length -= n
	for n > 0 {
		last := len(s.chunks) - 1
		e := s.chunks[last]
		elen := e.Length()
		if elen <= n {
			s.chunks[last] = nil
			s.chunks = s.chunks[:last]
			n -= elen
			continue
		}
		rest, err := Peek(e, 0, elen-n)
		if err != nil {
			return err
		}
		s.chunks[last] = rest
		n = 0
	}
	return nil
}

// Iterator walks a SequenceChunk element by element from one end. Position
// is measured in bytes from the iterator's own end: from the front for a
// forward iterator, from the back for a backward one.
type Iterator struct {
	forward  bool
	index    int
	position int64
}

// ForwardIterator returns an iterator at the front of the sequence.
func (s *SequenceChunk) ForwardIterator() Iterator {
	return Iterator{forward: true}
}

// BackwardIterator returns an iterator at the back of the sequence.
func (s *SequenceChunk) BackwardIterator() Iterator {
	return Iterator{forward: false}
}

// IsForward reports the iteration direction.
func (it Iterator) IsForward() bool { return it.forward }

// Index returns the number of elements passed from the iterator's end.
func (it Iterator) Index() int { return it.index }

// Position returns the byte offset from the iterator's end.
func (it Iterator) Position() int64 { return it.position }

// element returns the element the iterator points at, or nil past the end.
func (s *SequenceChunk) element(it Iterator) Chunk {
	if it.index < 0 || it.index >= len(s.chunks) {
		return nil
	}
	if it.forward {
		return s.chunks[it.index]
	}
	return s.chunks[len(s.chunks)-1-it.index]
}

// Next advances it past the current element.
func (s *SequenceChunk) Next(it *Iterator) {
	e := s.element(*it)
	if e == nil {
		return
	}
	it.position += e.Length()
	it.index++
}

// Seek moves it to byte offset (from its own end) with a linear scan. The
// index ends on the element containing offset; when offset falls inside an
// element the iterator is not aligned on an element boundary.
func (s *SequenceChunk) Seek(it *Iterator, offset int64) error {
	if err := checkRange(s.length, offset, 0); err != nil {
		return err
	}
	it.index = 0
	pos := int64(0)
	for {
		e := s.element(*it)
		if e == nil || pos+e.Length() > offset {
			break
		}
		pos += e.Length()
		it.index++
	}
	it.position = offset
	return nil
}

// elementStart returns the position of the element it.index from the
// iterator's end.
func (s *SequenceChunk) elementStart(it Iterator) int64 {
	pos := int64(0)
	probe := Iterator{forward: it.forward}
	for probe.index < it.index {
		pos += s.element(probe).Length()
		probe.index++
	}
	return pos
}

// Peek returns length bytes starting at the iterator. When the iterator sits
// on an element boundary and length equals that element's length the element
// itself is returned; otherwise a SliceChunk over the sequence.
func (s *SequenceChunk) Peek(it Iterator, length int64) (Chunk, error) {
	if err := checkRange(s.length, it.position, length); err != nil {
		return nil, err
	}
	if e := s.element(it); e != nil && e.Length() == length && s.elementStart(it) == it.position {
		return e, nil
	}
	offset := it.position
	if !it.forward {
		offset = s.length - it.position - length
	}
	return Peek(s, offset, length)
}
