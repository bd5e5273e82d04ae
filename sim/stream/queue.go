package stream

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/packet"
)

// PacketQueue is a FIFO of packets waiting to be pulled.
// Pushing into a full queue drops the packet (drop tail).
type PacketQueue struct {
	name      string
	capacity  int // 0 = unlimited
	queue     []*packet.Packet
	collector PullListener
	dropped   int64
	pushed    int64
}

// NewPacketQueue creates an empty queue. A capacity of 0 means unlimited.
func NewPacketQueue(name string, capacity int) *PacketQueue {
	if capacity < 0 {
		panic(fmt.Sprintf("NewPacketQueue: capacity must be >= 0, got %d", capacity))
	}
	return &PacketQueue{name: name, capacity: capacity}
}

func (q *PacketQueue) Name() string                { return q.name }
func (q *PacketQueue) SetCollector(c PullListener) { q.collector = c }

// Len returns the number of queued packets.
func (q *PacketQueue) Len() int { return len(q.queue) }

// Dropped returns the number of packets discarded because the queue was full.
func (q *PacketQueue) Dropped() int64 { return q.dropped }

// Pushed returns the number of packets accepted into the queue.
func (q *PacketQueue) Pushed() int64 { return q.pushed }

// Peek returns the packet at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (q *PacketQueue) Peek() *packet.Packet {
	if len(q.queue) == 0 {
		return nil
	}
	return q.queue[0]
}

func (q *PacketQueue) full() bool {
	return q.capacity > 0 && len(q.queue) >= q.capacity
}

func (q *PacketQueue) CanPushSomePacket() bool             { return !q.full() }
func (q *PacketQueue) CanPushPacket(_ *packet.Packet) bool { return !q.full() }

// PushPacket appends p, or drops it when the queue is full. The collector
// is notified when the queue stops being empty.
func (q *PacketQueue) PushPacket(p *packet.Packet) error {
	if q.full() {
		q.dropped++
		logrus.Debugf("%s: queue full (%d), dropping %s", q.name, q.capacity, p)
		return nil
	}
	q.queue = append(q.queue, p)
	q.pushed++
	if len(q.queue) == 1 && q.collector != nil {
		q.collector.HandleCanPullPacketChanged()
	}
	return nil
}

func (q *PacketQueue) PushPacketStart(p *packet.Packet, _ sim.Datarate) error {
	return fmt.Errorf("%w: queue %s does not accept streams (%s)", ErrPrecondition, q.name, p)
}

func (q *PacketQueue) PushPacketProgress(p *packet.Packet, _ sim.Datarate, _ int64) error {
	return fmt.Errorf("%w: queue %s does not accept streams (%s)", ErrPrecondition, q.name, p)
}

func (q *PacketQueue) PushPacketEnd(p *packet.Packet) error {
	return fmt.Errorf("%w: queue %s does not accept streams (%s)", ErrPrecondition, q.name, p)
}

func (q *PacketQueue) CanPullSomePacket() bool { return len(q.queue) > 0 }

// PullPacket removes and returns the packet at the front of the queue.
func (q *PacketQueue) PullPacket() (*packet.Packet, error) {
	if len(q.queue) == 0 {
		return nil, fmt.Errorf("%w: queue %s is empty", ErrPrecondition, q.name)
	}
	p := q.queue[0]
	q.queue[0] = nil
	q.queue = q.queue[1:]
	return p, nil
}

func (q *PacketQueue) PullPacketStart(_ sim.Datarate) (*packet.Packet, error) {
	return nil, fmt.Errorf("%w: queue %s does not stream", ErrPrecondition, q.name)
}

func (q *PacketQueue) PullPacketEnd() (*packet.Packet, error) {
	return nil, fmt.Errorf("%w: queue %s does not stream", ErrPrecondition, q.name)
}

func (q *PacketQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, p := range q.queue {
		sb.WriteString(p.Name())
		if i < len(q.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
