package scenario

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/packet"
	"github.com/inference-sim/chunkstream/sim/stream"
	"github.com/inference-sim/chunkstream/sim/trace"
	"github.com/inference-sim/chunkstream/sim/workload"
)

// LinkStats counts what reached the receiving end of a link.
type LinkStats struct {
	Delivered      int64 // logical packets, after reassembly
	DeliveredBytes int64
	Corrupted      int64 // delivered with a bit error
	Fragments      int64 // fragments received, whole packets excluded
	Lost           int64 // transmissions pushed while the link was down
}

// Link is the receiving end of the outgoing connection. It accepts one
// stream at a time, reassembles preempted frames and records every logical
// packet it delivers.
type Link struct {
	name  string
	sched stream.Scheduler
	trace *trace.SimulationTrace

	down      bool
	receiving *packet.Packet
	reasm     packet.Reassembler
	pieces    int
	stats     LinkStats
}

// NewLink creates a link that records deliveries into tr, which may be nil.
func NewLink(name string, sched stream.Scheduler, tr *trace.SimulationTrace) *Link {
	return &Link{name: name, sched: sched, trace: tr}
}

// Stats returns the delivery counters.
func (l *Link) Stats() LinkStats { return l.stats }

// Down reports whether the link has been disconnected.
func (l *Link) Down() bool { return l.down }

// Disconnect takes the link down. A stream already in progress may still
// end; every later packet is lost.
func (l *Link) Disconnect() {
	l.down = true
	l.reasm.Reset()
	l.pieces = 0
	logrus.Infof("[%v] %s: link down", l.sched.Now(), l.name)
}

func (l *Link) CanPushSomePacket() bool             { return !l.down }
func (l *Link) CanPushPacket(_ *packet.Packet) bool { return !l.down }

func (l *Link) PushPacket(p *packet.Packet) error {
	if l.down {
		l.lose(p)
		return nil
	}
	if l.receiving != nil {
		return fmt.Errorf("%w: %s: push of %s while receiving %s", stream.ErrPrecondition, l.name, p, l.receiving)
	}
	return l.deliver(p)
}

func (l *Link) PushPacketStart(p *packet.Packet, _ sim.Datarate) error {
	if l.down {
		l.lose(p)
		return nil
	}
	if l.receiving != nil {
		return fmt.Errorf("%w: %s: start of %s while receiving %s", stream.ErrPrecondition, l.name, p, l.receiving)
	}
	l.receiving = p
	return nil
}

func (l *Link) PushPacketProgress(p *packet.Packet, _ sim.Datarate, _ int64) error {
	if l.receiving == nil && !l.down {
		return fmt.Errorf("%w: %s: progress of %s without a stream", stream.ErrPrecondition, l.name, p)
	}
	return nil
}

func (l *Link) PushPacketEnd(p *packet.Packet) error {
	if l.receiving == nil {
		if l.down {
			return nil
		}
		return fmt.Errorf("%w: %s: end of %s without a stream", stream.ErrPrecondition, l.name, p)
	}
	if l.receiving.TreeID() != p.TreeID() {
		return fmt.Errorf("%w: %s: end of %s while receiving %s", stream.ErrPrecondition, l.name, p, l.receiving)
	}
	l.receiving = nil
	if l.down && !packet.FragmentOf(p).FirstFragment {
		// the head of this packet was dropped by Disconnect
		l.lose(p)
		return nil
	}
	return l.deliver(p)
}

func (l *Link) lose(p *packet.Packet) {
	l.stats.Lost++
	logrus.Debugf("[%v] %s: lost %s", l.sched.Now(), l.name, p)
}

// deliver passes p through the reassembler when it is a tagged fragment and
// records the logical packet once it is complete.
func (l *Link) deliver(p *packet.Packet) error {
	whole, pieces := p, 1
	if packet.HasTag[packet.FragmentTag](p) {
		if tag := packet.FragmentOf(p); !tag.FirstFragment || !tag.LastFragment {
			l.stats.Fragments++
		}
		l.pieces++
		var err error
		if whole, err = l.reasm.Add(p); err != nil {
			l.pieces = 0
			return fmt.Errorf("%s: %w", l.name, err)
		}
		if whole == nil {
			return nil
		}
		pieces, l.pieces = l.pieces, 0
	}

	now := l.sched.Now()
	src, _ := packet.FindTag[workload.SourceTag](whole)
	rec := trace.DeliveryRecord{
		Packet:    whole.Name(),
		TreeID:    whole.TreeID(),
		Clock:     int64(now),
		Length:    whole.TotalLength(),
		Fragments: pieces,
		BitError:  whole.HasBitError(),
		Express:   src.Class == workload.ClassExpress,
		Latency:   int64(now - whole.CreationTime()),
	}

	l.stats.Delivered++
	l.stats.DeliveredBytes += rec.Length
	if rec.BitError {
		l.stats.Corrupted++
	}
	if l.trace != nil {
		l.trace.RecordDelivery(rec)
	}
	logrus.Debugf("[%v] %s: delivered %s (%d B, %d fragments)", now, l.name, whole, rec.Length, rec.Fragments)
	return nil
}
