package stream

import "fmt"

// PacketPusher is an active element that moves packets from a provider to a
// consumer whenever both sides allow it. It listens to both of them.
type PacketPusher struct {
	name     string
	provider PacketSource
	consumer PacketSink
	moved    int64
	pumping  bool
}

// NewPacketPusher connects provider to consumer. Callers still register the
// pusher as the provider's collector and the consumer's producer.
func NewPacketPusher(name string, provider PacketSource, consumer PacketSink) *PacketPusher {
	return &PacketPusher{name: name, provider: provider, consumer: consumer}
}

// Moved returns the number of packets handed to the consumer.
func (p *PacketPusher) Moved() int64 { return p.moved }

func (p *PacketPusher) HandleCanPullPacketChanged() { p.pump() }
func (p *PacketPusher) HandleCanPushPacketChanged() { p.pump() }

// pump moves packets until either side blocks. Notifications arriving from
// inside the loop are absorbed by the running loop.
func (p *PacketPusher) pump() {
	if p.pumping {
		return
	}
	p.pumping = true
	defer func() { p.pumping = false }()
	for p.provider.CanPullSomePacket() && p.consumer.CanPushSomePacket() {
		pkt, err := p.provider.PullPacket()
		if err != nil {
			fail(p.name, fmt.Errorf("pull: %w", err))
		}
		if err := p.consumer.PushPacket(pkt); err != nil {
			fail(p.name, fmt.Errorf("push %s: %w", pkt, err))
		}
		p.moved++
	}
}
