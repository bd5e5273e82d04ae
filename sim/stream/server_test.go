package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/packet"
)

// serverSetup wires
//
//	expressQ ---------------------> server -> sink
//	preemptableQ -> streamer -----/
//
// with the server sending at 1000 B/s.
type serverSetup struct {
	kernel       *sim.Simulator
	expressQ     *PacketQueue
	preemptableQ *PacketQueue
	streamer     *Streamer
	server       *PreemptingServer
	sink         *recordingSink
}

func newServerSetup(t *testing.T) *serverSetup {
	t.Helper()
	kernel := sim.NewSimulator(0)
	setup := &serverSetup{
		kernel:       kernel,
		expressQ:     NewPacketQueue("express", 0),
		preemptableQ: NewPacketQueue("preemptable", 0),
		sink:         newRecordingSink(kernel),
	}
	setup.streamer = newStreamer(t, kernel, Config{
		Datarate:   sim.BytesPerSecond(1000),
		Preemption: &PreemptionConfig{MinPacketLength: 64, RoundingLength: 8},
	})
	server, err := NewPreemptingServer("server", kernel, sim.BytesPerSecond(1000))
	require.NoError(t, err)
	setup.server = server

	setup.streamer.SetProvider(setup.preemptableQ)
	setup.preemptableQ.SetCollector(setup.streamer)
	setup.streamer.SetCollector(server)
	setup.expressQ.SetCollector(server)
	server.SetExpress(setup.expressQ)
	server.SetPreemptable(setup.streamer)
	server.SetConsumer(setup.sink)
	return setup
}

func TestPreemptingServer_ExpressPreemptsLongFrame(t *testing.T) {
	// GIVEN a 1000-byte preemptable frame on the wire from t=0
	s := newServerSetup(t)
	long := newPacket(t, "long", 1000)
	require.NoError(t, s.preemptableQ.PushPacket(long))
	assert.True(t, s.server.Busy())

	// WHEN a 100-byte express frame arrives at 0.1 s
	s.kernel.ScheduleAt(100*sim.Millisecond, "express.arrival", func() {
		require.NoError(t, s.expressQ.PushPacket(newPacket(t, "express", 100)))
	})
	s.kernel.Run()

	// THEN the long frame is cut after 104 bytes (100 sent, rounded to 8),
	// the express frame follows, then the 896-byte remainder
	ends := s.sink.ends()
	require.Len(t, ends, 3)
	assert.Equal(t, "long", ends[0].pkt.Name())
	assert.Equal(t, int64(104), ends[0].pkt.TotalLength())
	assert.Equal(t, 104*sim.Millisecond, ends[0].at)
	assert.Equal(t, "express", ends[1].pkt.Name())
	assert.Equal(t, 204*sim.Millisecond, ends[1].at)
	assert.Equal(t, int64(896), ends[2].pkt.TotalLength())
	assert.Equal(t, 1100*sim.Millisecond, ends[2].at)
	assert.Equal(t, int64(1), s.server.Preemptions())
	assert.Equal(t, int64(3), s.server.Transmitted())
	assert.False(t, s.server.Busy())

	// AND the receiver can rebuild the long frame from its fragments
	var r packet.Reassembler
	first, err := r.Add(ends[0].pkt)
	require.NoError(t, err)
	assert.Nil(t, first)
	whole, err := r.Add(ends[2].pkt)
	require.NoError(t, err)
	require.NotNil(t, whole)
	assert.Equal(t, packetBytes(t, long), packetBytes(t, whole))
}

func TestPreemptingServer_ExpressAtStreamStart_CutsAtMinimum(t *testing.T) {
	// GIVEN a bulk frame that starts streaming at t=0
	s := newServerSetup(t)
	require.NoError(t, s.preemptableQ.PushPacket(newPacket(t, "bulk", 200)))

	// WHEN an express frame arrives at the same instant
	require.NoError(t, s.expressQ.PushPacket(newPacket(t, "express", 50)))
	s.kernel.Run()

	// THEN the bulk frame is cut at the minimum fragment length, then
	// express goes out, then the bulk remainder
	ends := s.sink.ends()
	require.Len(t, ends, 3)
	assert.Equal(t, []string{"bulk", "express", "bulk"}, []string{ends[0].pkt.Name(), ends[1].pkt.Name(), ends[2].pkt.Name()})
	assert.Equal(t, int64(64), ends[0].pkt.TotalLength())
	assert.Equal(t, 64*sim.Millisecond, ends[0].at)
	assert.Equal(t, 114*sim.Millisecond, ends[1].at)
	assert.Equal(t, int64(136), ends[2].pkt.TotalLength())
	assert.Equal(t, 250*sim.Millisecond, ends[2].at)
}

func TestPreemptingServer_StartPrefersExpress(t *testing.T) {
	// GIVEN frames waiting in both queues before the server is connected
	s := newServerSetup(t)
	s.preemptableQ.SetCollector(nil)
	s.expressQ.SetCollector(nil)
	require.NoError(t, s.preemptableQ.PushPacket(newPacket(t, "bulk", 200)))
	require.NoError(t, s.expressQ.PushPacket(newPacket(t, "express", 50)))

	// WHEN the server starts
	s.server.Start()
	s.kernel.Run()

	// THEN express goes first and the bulk frame is never fragmented
	ends := s.sink.ends()
	require.Len(t, ends, 2)
	assert.Equal(t, "express", ends[0].pkt.Name())
	assert.Equal(t, 50*sim.Millisecond, ends[0].at)
	assert.Equal(t, "bulk", ends[1].pkt.Name())
	assert.Equal(t, int64(200), ends[1].pkt.TotalLength())
	assert.Equal(t, 250*sim.Millisecond, ends[1].at)
	assert.Equal(t, int64(0), s.server.Preemptions())
}

func TestPreemptingServer_ConsumerFailureRecovered(t *testing.T) {
	// GIVEN a consumer that rejects the end of every transmission
	kernel := sim.NewSimulator(0)
	q := NewPacketQueue("express", 0)
	server, err := NewPreemptingServer("server", kernel, sim.BytesPerSecond(1000))
	require.NoError(t, err)
	sink := &mockSink{}
	boom := errors.New("link down")
	sink.On("PushPacketStart", mock.Anything, mock.Anything).Return(nil)
	sink.On("PushPacketEnd", mock.Anything).Return(boom)
	server.SetExpress(q)
	server.SetConsumer(sink)
	q.SetCollector(server)
	require.NoError(t, q.PushPacket(newPacket(t, "p", 10)))

	// WHEN the simulation runs under Recover
	run := func() (err error) {
		defer Recover(&err)
		kernel.Run()
		return nil
	}

	// THEN the failure surfaces as an error naming the server
	err = run()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "server", f.Component)
}

func TestNewPreemptingServer_RejectsZeroDatarate(t *testing.T) {
	_, err := NewPreemptingServer("server", sim.NewSimulator(0), 0)
	assert.Error(t, err)
}
