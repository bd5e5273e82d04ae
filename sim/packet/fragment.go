package packet

import (
	"errors"
	"fmt"

	"github.com/inference-sim/chunkstream/sim/chunk"
)

// ErrFragmentSequence is returned when fragments of a logical packet arrive
// out of order or mixed with another packet's fragments.
var ErrFragmentSequence = errors.New("unexpected fragment")

// FragmentTag marks a packet as one piece of a preempted logical packet.
// An unsplit packet carries {FirstFragment: true, LastFragment: true}.
type FragmentTag struct {
	FirstFragment  bool
	LastFragment   bool
	FragmentNumber int
}

// FragmentOf returns p's fragment tag, treating an untagged packet as a
// complete single fragment.
func FragmentOf(p *Packet) FragmentTag {
	if tag, ok := FindTag[FragmentTag](p); ok {
		return tag
	}
	return FragmentTag{FirstFragment: true, LastFragment: true}
}

// Split cuts the content of p after length bytes into a head fragment and a
// tail remainder. Popped regions count as content. Both share p's tree ID,
// name, creation time and tags. The head keeps p's first flag and fragment
// number and is not last; the tail is not first, is last, and carries the
// next fragment number.
func Split(p *Packet, length int64) (head, tail *Packet, err error) {
	if err := p.checkChunkMode(); err != nil {
		return nil, nil, err
	}
	if length <= 0 || length >= p.TotalLength() {
		return nil, nil, fmt.Errorf("%w: split %s at %d of %d bytes", chunk.ErrRange, p.name, length, p.TotalLength())
	}
	headContent, err := p.peekContent(0, length)
	if err != nil {
		return nil, nil, err
	}
	tailContent, err := p.peekContent(length, p.TotalLength()-length)
	if err != nil {
		return nil, nil, err
	}
	tag := FragmentOf(p)

	head = p.derive(headContent)
	SetTag(head, FragmentTag{FirstFragment: tag.FirstFragment, LastFragment: false, FragmentNumber: tag.FragmentNumber})

	tail = p.derive(tailContent)
	SetTag(tail, FragmentTag{FirstFragment: false, LastFragment: true, FragmentNumber: tag.FragmentNumber + 1})
	return head, tail, nil
}

// Truncate returns a copy of p whose content is cut to its first length
// bytes. The copy shares p's tree ID and tags.
func Truncate(p *Packet, length int64) (*Packet, error) {
	if err := p.checkChunkMode(); err != nil {
		return nil, err
	}
	if length < 0 || length > p.TotalLength() {
		return nil, fmt.Errorf("%w: truncate %s to %d of %d bytes", chunk.ErrRange, p.name, length, p.TotalLength())
	}
	if length == 0 {
		return p.derive(nil), nil
	}
	content, err := p.peekContent(0, length)
	if err != nil {
		return nil, err
	}
	return p.derive(content), nil
}

// derive returns a new packet of the same logical tree holding content.
func (p *Packet) derive(content chunk.Chunk) *Packet {
	d := New(p.name, content)
	d.treeID = p.treeID
	d.creationTime = p.creationTime
	d.bitError = p.bitError
	d.copyTagsFrom(p)
	return d
}

// Reassembler rebuilds logical packets from their fragments. Fragments of one
// packet must arrive in fragment-number order and must not interleave with
// another packet's fragments, which is what a single preemptable stream
// delivers.
type Reassembler struct {
	pending  *Packet
	content  *chunk.SequenceChunk
	next     int
	bitError bool
}

// Pending reports whether a partially reassembled packet is held.
func (r *Reassembler) Pending() bool { return r.pending != nil }

// Add consumes one fragment. It returns the rebuilt packet when frag is the
// last fragment, and nil while more fragments are expected. A rebuilt packet
// is marked bit-error when any of its fragments was.
func (r *Reassembler) Add(frag *Packet) (*Packet, error) {
	tag := FragmentOf(frag)
	if r.pending == nil {
		if !tag.FirstFragment || tag.FragmentNumber != 0 {
			return nil, fmt.Errorf("%w: %s starts with fragment %d", ErrFragmentSequence, frag, tag.FragmentNumber)
		}
		if tag.LastFragment {
			return frag, nil
		}
		r.pending = frag
		r.content = chunk.NewSequenceChunk()
		r.next = 0
		r.bitError = false
	}
	if frag.treeID != r.pending.treeID || tag.FragmentNumber != r.next {
		err := fmt.Errorf("%w: got %s fragment %d, want tree %d fragment %d",
			ErrFragmentSequence, frag, tag.FragmentNumber, r.pending.treeID, r.next)
		r.Reset()
		return nil, err
	}
	data, err := frag.PeekData()
	if err != nil {
		r.Reset()
		return nil, err
	}
	if err := r.content.Append(data, true); err != nil {
		r.Reset()
		return nil, err
	}
	r.bitError = r.bitError || frag.HasBitError()
	r.next++
	if !tag.LastFragment {
		return nil, nil
	}

	whole := r.pending.derive(r.content)
	RemoveTag[FragmentTag](whole)
	whole.bitError = r.bitError
	r.Reset()
	return whole, nil
}

// Reset drops any partially reassembled packet.
func (r *Reassembler) Reset() {
	r.pending = nil
	r.content = nil
	r.next = 0
	r.bitError = false
}
