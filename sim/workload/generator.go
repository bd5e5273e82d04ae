package workload

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/chunk"
	"github.com/inference-sim/chunkstream/sim/packet"
	"github.com/inference-sim/chunkstream/sim/stream"
)

// SourceTag identifies the source that created a packet.
type SourceTag struct {
	Source string
	Class  string
	Seq    int64
}

// Generator emits packets from one SourceSpec into a sink on the
// simulation clock. Payloads are byte counts filled with the low byte of
// the sequence number.
type Generator struct {
	spec    SourceSpec
	sched   stream.Scheduler
	sink    stream.PacketSink
	rng     *rand.Rand
	arrival ArrivalSampler
	length  LengthSampler

	next      *sim.Timer
	generated int64
	bytes     int64
}

// NewGenerator validates spec and builds a generator drawing from rng.
func NewGenerator(spec SourceSpec, rng *rand.Rand, sched stream.Scheduler, sink stream.PacketSink) (*Generator, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	lengths, err := NewLengthSampler(spec.Length)
	if err != nil {
		return nil, fmt.Errorf("source %q length distribution: %w", spec.Name, err)
	}
	return &Generator{
		spec:    spec,
		sched:   sched,
		sink:    sink,
		rng:     rng,
		arrival: NewArrivalSampler(spec.Arrival, spec.Rate),
		length:  lengths,
	}, nil
}

// NewGenerators builds one generator per source. Each source gets its own
// RNG derived from its class subsystem, in declaration order, so adding an
// express source does not perturb preemptable traffic.
func NewGenerators(specs []SourceSpec, rng *sim.PartitionedRNG, sched stream.Scheduler, sinks map[string]stream.PacketSink) ([]*Generator, error) {
	gens := make([]*Generator, 0, len(specs))
	for _, spec := range specs {
		sink, ok := sinks[spec.Class]
		if !ok {
			return nil, fmt.Errorf("source %q: no sink for class %q", spec.Name, spec.Class)
		}
		subsystem := sim.SubsystemWorkload
		if spec.Class == ClassExpress {
			subsystem = sim.SubsystemExpress
		}
		seed := rng.ForSubsystem(subsystem).Int63()
		g, err := NewGenerator(spec, rand.New(rand.NewSource(seed)), sched, sink)
		if err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return gens, nil
}

func (g *Generator) Name() string          { return g.spec.Name }
func (g *Generator) Generated() int64      { return g.generated }
func (g *Generator) GeneratedBytes() int64 { return g.bytes }

// Start schedules the first arrival at the source's start time.
func (g *Generator) Start() {
	at := sim.FromSeconds(g.spec.Start)
	if now := g.sched.Now(); at < now {
		at = now
	}
	g.schedule(at)
}

// Stop cancels the pending arrival.
func (g *Generator) Stop() {
	g.sched.Cancel(g.next)
	g.next = nil
}

func (g *Generator) schedule(at sim.Time) {
	g.next = g.sched.ScheduleAt(at, g.spec.Name+".arrival", g.emit)
}

func (g *Generator) emit() {
	g.next = nil
	p, err := g.newPacket()
	if err != nil {
		panic(&stream.Failure{Component: g.spec.Name, Err: err})
	}
	g.generated++
	g.bytes += p.TotalLength()
	logrus.Debugf("[%v] %s: generated %s", g.sched.Now(), g.spec.Name, p)
	if err := g.sink.PushPacket(p); err != nil {
		panic(&stream.Failure{Component: g.spec.Name, Err: err})
	}
	if g.spec.Count > 0 && g.generated >= g.spec.Count {
		return
	}
	g.schedule(g.sched.Now() + g.arrival.SampleGap(g.rng))
}

func (g *Generator) newPacket() (*packet.Packet, error) {
	seq := g.generated
	content, err := chunk.NewByteCountChunk(g.length.Sample(g.rng), byte(seq))
	if err != nil {
		return nil, err
	}
	p := packet.NewAt(fmt.Sprintf("%s-%d", g.spec.Name, seq), content, g.sched.Now())
	packet.SetTag(p, SourceTag{Source: g.spec.Name, Class: g.spec.Class, Seq: seq})
	return p, nil
}
