// Package packet defines the Packet envelope that carries one chunk tree
// plus metadata tags across protocol elements.
package packet

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/chunk"
)

// ErrEncapsulationNotSupported is returned when the legacy single-payload
// encapsulation model and the chunk model are mixed on one packet.
var ErrEncapsulationNotSupported = errors.New("encapsulation not supported on chunk-based packet")

var lastID atomic.Int64

// nextID returns a fresh process-wide packet identifier.
func nextID() int64 { return lastID.Add(1) }

// Packet is an envelope owning one chunk tree (its content) together with
// typed tags. The front and back pointers delimit the data part: popping
// moves a pointer without touching content, removing changes content.
//
// A packet holds either chunk content or an encapsulated packet, never both.
type Packet struct {
	id           int64
	treeID       int64
	name         string
	creationTime sim.Time

	content     chunk.Chunk
	frontOffset int64
	backOffset  int64

	encapsulated *Packet

	tags     map[tagKey]any
	bitError bool
}

// New returns a packet named name holding content, which may be nil for an
// empty packet.
func New(name string, content chunk.Chunk) *Packet {
	id := nextID()
	p := &Packet{id: id, treeID: id, name: name}
	if content != nil && content.Length() > 0 {
		content.Seal()
		p.content = content
	}
	return p
}

// NewAt is New with the creation time set.
func NewAt(name string, content chunk.Chunk, now sim.Time) *Packet {
	p := New(name, content)
	p.creationTime = now
	return p
}

// ID returns the packet's unique identifier.
func (p *Packet) ID() int64 { return p.id }

// TreeID identifies the logical packet: dups and fragments share it.
func (p *Packet) TreeID() int64 { return p.treeID }

func (p *Packet) Name() string        { return p.name }
func (p *Packet) SetName(name string) { p.name = name }

func (p *Packet) CreationTime() sim.Time     { return p.creationTime }
func (p *Packet) SetCreationTime(t sim.Time) { p.creationTime = t }
func (p *Packet) HasBitError() bool          { return p.bitError }
func (p *Packet) SetBitError(bitError bool)  { p.bitError = bitError }
func (p *Packet) FrontOffset() int64         { return p.frontOffset }
func (p *Packet) BackOffset() int64          { return p.backOffset }

// TotalLength returns the content length including popped regions. A packet
// in encapsulation mode reports the encapsulated packet's length.
func (p *Packet) TotalLength() int64 {
	if p.encapsulated != nil {
		return p.encapsulated.TotalLength()
	}
	if p.content == nil {
		return 0
	}
	return p.content.Length()
}

// DataLength returns the length between the front and back pointers.
func (p *Packet) DataLength() int64 {
	return p.TotalLength() - p.frontOffset - p.backOffset
}

// Content returns the root chunk, nil for an empty packet.
func (p *Packet) Content() chunk.Chunk { return p.content }

// Seal makes the content immutable, as done when the packet crosses an
// ownership boundary. Later mutations of the packet fork the content.
func (p *Packet) Seal() {
	if p.content != nil {
		p.content.Seal()
	}
}

// Dup returns a copy with a new ID and the same tree ID. Tags are copied;
// the content is shared and sealed, so either copy forks before writing.
func (p *Packet) Dup() *Packet {
	p.Seal()
	d := &Packet{
		id:           nextID(),
		treeID:       p.treeID,
		name:         p.name,
		creationTime: p.creationTime,
		content:      p.content,
		frontOffset:  p.frontOffset,
		backOffset:   p.backOffset,
		bitError:     p.bitError,
	}
	if p.encapsulated != nil {
		d.encapsulated = p.encapsulated.Dup()
	}
	d.copyTagsFrom(p)
	return d
}

func (p *Packet) String() string {
	flags := ""
	if p.bitError {
		flags = ", bit-error"
	}
	return fmt.Sprintf("%s(id=%d, tree=%d, length=%d%s)", p.name, p.id, p.treeID, p.TotalLength(), flags)
}

// === Peek / Pop ===

// PeekAtFront returns length bytes after the front pointer.
func (p *Packet) PeekAtFront(length int64) (chunk.Chunk, error) {
	return p.PeekDataAt(0, length)
}

// PeekAtBack returns length bytes before the back pointer.
func (p *Packet) PeekAtBack(length int64) (chunk.Chunk, error) {
	return p.PeekDataAt(p.DataLength()-length, length)
}

// PeekData returns the whole data part.
func (p *Packet) PeekData() (chunk.Chunk, error) {
	return p.PeekDataAt(0, p.DataLength())
}

// PeekDataAt returns length bytes at offset relative to the front pointer.
func (p *Packet) PeekDataAt(offset, length int64) (chunk.Chunk, error) {
	if err := p.checkChunkMode(); err != nil {
		return nil, err
	}
	if offset < 0 || length < 0 || offset+length > p.DataLength() {
		return nil, fmt.Errorf("%w: peek [%d, %d+%d) of %d data bytes", chunk.ErrRange, offset, offset, length, p.DataLength())
	}
	return p.peekContent(p.frontOffset+offset, length)
}

// PeekAll returns the whole content, popped regions included.
func (p *Packet) PeekAll() (chunk.Chunk, error) {
	if err := p.checkChunkMode(); err != nil {
		return nil, err
	}
	return p.peekContent(0, p.TotalLength())
}

func (p *Packet) peekContent(offset, length int64) (chunk.Chunk, error) {
	if p.content == nil || length == 0 {
		empty, _ := chunk.NewByteCountChunk(0, 0)
		empty.Seal()
		return empty, nil
	}
	// The returned chunk may share the content; the next write forks it.
	p.content.Seal()
	if seq, ok := p.content.(*chunk.SequenceChunk); ok {
		it := seq.ForwardIterator()
		if err := seq.Seek(&it, offset); err != nil {
			return nil, err
		}
		return seq.Peek(it, length)
	}
	return chunk.Peek(p.content, offset, length)
}

// PopAtFront returns length bytes after the front pointer and moves it past them.
func (p *Packet) PopAtFront(length int64) (chunk.Chunk, error) {
	c, err := p.PeekAtFront(length)
	if err != nil {
		return nil, err
	}
	p.frontOffset += length
	return c, nil
}

// PopAtBack returns length bytes before the back pointer and moves it past them.
func (p *Packet) PopAtBack(length int64) (chunk.Chunk, error) {
	c, err := p.PeekAtBack(length)
	if err != nil {
		return nil, err
	}
	p.backOffset += length
	return c, nil
}

// === Insert / Remove ===

// InsertAtFront prepends c to the content. The front pointer must be at
// the start of the content.
func (p *Packet) InsertAtFront(c chunk.Chunk) error {
	if err := p.checkChunkMode(); err != nil {
		return err
	}
	if p.frontOffset != 0 {
		return fmt.Errorf("%w: insert at front with %d popped bytes", chunk.ErrRange, p.frontOffset)
	}
	if c.Length() == 0 {
		return nil
	}
	if p.content == nil {
		c.Seal()
		p.content = c
		return nil
	}
	return p.mutableSequence().Prepend(c, true)
}

// InsertAtBack appends c to the content. The back pointer must be at the
// end of the content.
func (p *Packet) InsertAtBack(c chunk.Chunk) error {
	if err := p.checkChunkMode(); err != nil {
		return err
	}
	if p.backOffset != 0 {
		return fmt.Errorf("%w: insert at back with %d popped bytes", chunk.ErrRange, p.backOffset)
	}
	if c.Length() == 0 {
		return nil
	}
	if p.content == nil {
		c.Seal()
		p.content = c
		return nil
	}
	return p.mutableSequence().Append(c, true)
}

// RemoveAtFront drops length bytes from the start of the content. The
// front pointer must be at the start of the content.
func (p *Packet) RemoveAtFront(length int64) error {
	if err := p.checkChunkMode(); err != nil {
		return err
	}
	if p.frontOffset != 0 {
		return fmt.Errorf("%w: remove at front with %d popped bytes", chunk.ErrRange, p.frontOffset)
	}
	if length < 0 || length > p.DataLength() {
		return fmt.Errorf("%w: remove %d of %d data bytes", chunk.ErrRange, length, p.DataLength())
	}
	if length == 0 {
		return nil
	}
	if err := p.mutableSequence().RemoveBeginning(length); err != nil {
		return err
	}
	p.dropIfEmpty()
	return nil
}

// RemoveAtBack drops length bytes from the end of the content. The back
// pointer must be at the end of the content.
func (p *Packet) RemoveAtBack(length int64) error {
	if err := p.checkChunkMode(); err != nil {
		return err
	}
	if p.backOffset != 0 {
		return fmt.Errorf("%w: remove at back with %d popped bytes", chunk.ErrRange, p.backOffset)
	}
	if length < 0 || length > p.DataLength() {
		return fmt.Errorf("%w: remove %d of %d data bytes", chunk.ErrRange, length, p.DataLength())
	}
	if length == 0 {
		return nil
	}
	if err := p.mutableSequence().RemoveEnd(length); err != nil {
		return err
	}
	p.dropIfEmpty()
	return nil
}

// Trim removes the popped regions from the content and resets both pointers.
func (p *Packet) Trim() error {
	front, back := p.frontOffset, p.backOffset
	p.frontOffset, p.backOffset = 0, 0
	if err := p.RemoveAtFront(front); err != nil {
		p.frontOffset, p.backOffset = front, back
		return err
	}
	if err := p.RemoveAtBack(back); err != nil {
		p.backOffset = back
		return err
	}
	return nil
}

// mutableSequence returns the content as a SequenceChunk this packet may
// write to: a non-sequence root is promoted to a one-element sequence and a
// sealed sequence is forked.
func (p *Packet) mutableSequence() *chunk.SequenceChunk {
	seq, ok := p.content.(*chunk.SequenceChunk)
	switch {
	case !ok:
		seq = chunk.NewSequenceChunk(p.content)
	case seq.IsSealed():
		seq = seq.Clone()
	}
	p.content = seq
	return seq
}

func (p *Packet) dropIfEmpty() {
	if p.content != nil && p.content.Length() == 0 {
		p.content = nil
	}
}

// === Legacy encapsulation ===

func (p *Packet) checkChunkMode() error {
	if p.encapsulated != nil {
		return fmt.Errorf("%w: %s encapsulates %s", ErrEncapsulationNotSupported, p.name, p.encapsulated.name)
	}
	return nil
}

// Encapsulate wraps inner as this packet's single payload. Only valid on a
// packet without chunk content.
func (p *Packet) Encapsulate(inner *Packet) error {
	if p.content != nil {
		return fmt.Errorf("%w: %s has chunk content", ErrEncapsulationNotSupported, p.name)
	}
	if p.encapsulated != nil {
		return fmt.Errorf("%w: %s already encapsulates %s", ErrEncapsulationNotSupported, p.name, p.encapsulated.name)
	}
	p.encapsulated = inner
	return nil
}

// Decapsulate removes and returns the encapsulated packet.
func (p *Packet) Decapsulate() (*Packet, error) {
	if p.content != nil {
		return nil, fmt.Errorf("%w: %s has chunk content", ErrEncapsulationNotSupported, p.name)
	}
	inner := p.encapsulated
	p.encapsulated = nil
	return inner, nil
}

// Encapsulated returns the encapsulated packet, if any.
func (p *Packet) Encapsulated() *Packet { return p.encapsulated }
