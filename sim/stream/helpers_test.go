package stream

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/chunk"
	"github.com/inference-sim/chunkstream/sim/packet"
)

// mockSink is a PacketSink whose answers are scripted per test.
type mockSink struct{ mock.Mock }

func (m *mockSink) CanPushSomePacket() bool { return m.Called().Bool(0) }
func (m *mockSink) CanPushPacket(p *packet.Packet) bool {
	return m.Called(p).Bool(0)
}
func (m *mockSink) PushPacket(p *packet.Packet) error { return m.Called(p).Error(0) }
func (m *mockSink) PushPacketStart(p *packet.Packet, rate sim.Datarate) error {
	return m.Called(p, rate).Error(0)
}
func (m *mockSink) PushPacketProgress(p *packet.Packet, rate sim.Datarate, position int64) error {
	return m.Called(p, rate, position).Error(0)
}
func (m *mockSink) PushPacketEnd(p *packet.Packet) error { return m.Called(p).Error(0) }

type mockPushListener struct{ mock.Mock }

func (m *mockPushListener) HandleCanPushPacketChanged() { m.Called() }

type mockPullListener struct{ mock.Mock }

func (m *mockPullListener) HandleCanPullPacketChanged() { m.Called() }

// sinkCall is one call observed by recordingSink.
type sinkCall struct {
	op       string
	at       sim.Time
	pkt      *packet.Packet
	position int64
}

// recordingSink accepts everything and records each call with its time.
type recordingSink struct {
	sched Scheduler
	calls []sinkCall
}

func newRecordingSink(sched Scheduler) *recordingSink {
	return &recordingSink{sched: sched}
}

func (r *recordingSink) record(op string, p *packet.Packet, position int64) {
	r.calls = append(r.calls, sinkCall{op: op, at: r.sched.Now(), pkt: p, position: position})
}

func (r *recordingSink) CanPushSomePacket() bool           { return true }
func (r *recordingSink) CanPushPacket(*packet.Packet) bool { return true }
func (r *recordingSink) PushPacket(p *packet.Packet) error {
	r.record("push", p, 0)
	return nil
}
func (r *recordingSink) PushPacketStart(p *packet.Packet, _ sim.Datarate) error {
	r.record("start", p, 0)
	return nil
}
func (r *recordingSink) PushPacketProgress(p *packet.Packet, _ sim.Datarate, position int64) error {
	r.record("progress", p, position)
	return nil
}
func (r *recordingSink) PushPacketEnd(p *packet.Packet) error {
	r.record("end", p, 0)
	return nil
}

// ends returns the packets delivered through PushPacketEnd or PushPacket.
func (r *recordingSink) ends() []sinkCall {
	var out []sinkCall
	for _, c := range r.calls {
		if c.op == "end" || c.op == "push" {
			out = append(out, c)
		}
	}
	return out
}

// testingT is satisfied by *testing.T and *rapid.T.
type testingT interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

// newPacket builds a packet of length bytes whose byte i is i mod 251.
func newPacket(t testingT, name string, length int) *packet.Packet {
	t.Helper()
	data := make([]byte, length)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return packet.New(name, chunk.NewBytesChunk(data))
}

func packetBytes(t testingT, p *packet.Packet) []byte {
	t.Helper()
	c, err := p.PeekAll()
	require.NoError(t, err)
	return c.Bytes()
}

func newStreamer(t testing.TB, sched Scheduler, cfg Config) *Streamer {
	t.Helper()
	s, err := NewStreamer("streamer", sched, cfg)
	require.NoError(t, err)
	return s
}
