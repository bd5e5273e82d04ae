package workload

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/packet"
	"github.com/inference-sim/chunkstream/sim/stream"
)

func periodicSource(name, class string, count int64) SourceSpec {
	return SourceSpec{
		Name:    name,
		Class:   class,
		Rate:    4,
		Arrival: ArrivalSpec{Process: "constant"},
		Length:  DistSpec{Type: "constant", Params: map[string]float64{"value": 100}},
		Start:   0.5,
		Count:   count,
	}
}

func TestGenerator_PeriodicSource_EmitsAtFixedTimes(t *testing.T) {
	// GIVEN a source of three 100-byte packets at 4 packets/s starting at 0.5 s
	kernel := sim.NewSimulator(0)
	q := stream.NewPacketQueue("q", 0)
	g, err := NewGenerator(periodicSource("bulk", ClassPreemptable, 3), rand.New(rand.NewSource(1)), kernel, q)
	require.NoError(t, err)

	// WHEN the simulation runs to completion
	g.Start()
	kernel.Run()

	// THEN three packets arrive 250 ms apart, tagged with their source
	require.Equal(t, 3, q.Len())
	assert.Equal(t, int64(3), g.Generated())
	assert.Equal(t, int64(300), g.GeneratedBytes())
	want := []sim.Time{500 * sim.Millisecond, 750 * sim.Millisecond, sim.Second}
	for i, at := range want {
		p, err := q.PullPacket()
		require.NoError(t, err)
		assert.Equal(t, at, p.CreationTime())
		assert.Equal(t, int64(100), p.TotalLength())
		tag, ok := packet.FindTag[SourceTag](p)
		require.True(t, ok)
		assert.Equal(t, SourceTag{Source: "bulk", Class: ClassPreemptable, Seq: int64(i)}, tag)
	}
}

func TestGenerator_Stop_CancelsNextArrival(t *testing.T) {
	kernel := sim.NewSimulator(0)
	q := stream.NewPacketQueue("q", 0)
	g, err := NewGenerator(periodicSource("bulk", ClassPreemptable, 0), rand.New(rand.NewSource(1)), kernel, q)
	require.NoError(t, err)

	g.Start()
	kernel.ScheduleAt(800*sim.Millisecond, "stop", g.Stop)
	kernel.Run()

	assert.Equal(t, 2, q.Len(), "packets at 0.5 s and 0.75 s only")
	assert.Equal(t, 800*sim.Millisecond, kernel.Now())
}

func TestGenerator_HorizonBoundsUnlimitedSource(t *testing.T) {
	kernel := sim.NewSimulator(2 * sim.Second)
	q := stream.NewPacketQueue("q", 0)
	g, err := NewGenerator(periodicSource("bulk", ClassPreemptable, 0), rand.New(rand.NewSource(1)), kernel, q)
	require.NoError(t, err)

	g.Start()
	kernel.Run()

	// 0.5, 0.75, ..., 2.0 s
	assert.Equal(t, 7, q.Len())
}

func TestNewGenerators_SameSeed_SameTraffic(t *testing.T) {
	// GIVEN a bursty source generated twice from the same seed
	run := func(withExpress bool) []sim.Time {
		kernel := sim.NewSimulator(5 * sim.Second)
		cv := 2.0
		specs := []SourceSpec{{
			Name: "bulk", Class: ClassPreemptable, Rate: 20,
			Arrival: ArrivalSpec{Process: "gamma", CV: &cv},
			Length:  DistSpec{Type: "imix"},
		}}
		if withExpress {
			specs = append(specs, periodicSource("ctl", ClassExpress, 0))
		}
		bulk := stream.NewPacketQueue("bulk", 0)
		sinks := map[string]stream.PacketSink{
			ClassPreemptable: bulk,
			ClassExpress:     stream.NewPacketQueue("express", 0),
		}
		gens, err := NewGenerators(specs, sim.NewPartitionedRNG(sim.NewSimulationKey(7)), kernel, sinks)
		require.NoError(t, err)
		for _, g := range gens {
			g.Start()
		}
		kernel.Run()

		var times []sim.Time
		for bulk.Len() > 0 {
			p, err := bulk.PullPacket()
			require.NoError(t, err)
			times = append(times, p.CreationTime())
		}
		return times
	}

	// WHEN one run adds an express source
	a := run(false)
	b := run(true)

	// THEN the preemptable arrivals are identical
	require.NotEmpty(t, a)
	assert.Equal(t, a, b)
}

func TestNewGenerators_MissingSink(t *testing.T) {
	kernel := sim.NewSimulator(0)
	_, err := NewGenerators(
		[]SourceSpec{periodicSource("ctl", ClassExpress, 1)},
		sim.NewPartitionedRNG(sim.NewSimulationKey(1)), kernel,
		map[string]stream.PacketSink{ClassPreemptable: stream.NewPacketQueue("q", 0)},
	)
	assert.ErrorContains(t, err, `no sink for class "express"`)
}

func TestGenerator_SinkFailure_RaisesFailure(t *testing.T) {
	kernel := sim.NewSimulator(0)
	g, err := NewGenerator(periodicSource("bulk", ClassPreemptable, 1), rand.New(rand.NewSource(1)), kernel, rejectingSink{})
	require.NoError(t, err)
	g.Start()

	run := func() (err error) {
		defer stream.Recover(&err)
		kernel.Run()
		return nil
	}
	err = run()

	var f *stream.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "bulk", f.Component)
	assert.ErrorIs(t, err, stream.ErrPrecondition)
}

type rejectingSink struct{ *stream.PacketQueue }

func (rejectingSink) PushPacket(*packet.Packet) error { return stream.ErrPrecondition }
