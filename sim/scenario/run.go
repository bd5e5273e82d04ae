package scenario

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/metrics"
	"github.com/inference-sim/chunkstream/sim/stream"
	"github.com/inference-sim/chunkstream/sim/trace"
	"github.com/inference-sim/chunkstream/sim/workload"
)

// Result is what a scenario run reports.
type Result struct {
	EndTime     sim.Time
	Events      int64
	Generated   map[string]int64 // packets per source
	Link        LinkStats
	Streamer    stream.Stats
	Preemptions int64
	QueueDrops  int64
	Backlog     int // packets still queued at the end
	Trace       *trace.SimulationTrace
	Metrics     *metrics.Collector
}

// Summary aggregates the run's trace.
func (r *Result) Summary() *trace.TraceSummary { return trace.Summarize(r.Trace) }

// pipeline holds the wired components of one run.
type pipeline struct {
	kernel     *sim.Simulator
	link       *Link
	streamer   *stream.Streamer
	server     *stream.PreemptingServer
	queues     []*stream.PacketQueue
	generators []*workload.Generator
}

// Run validates cfg, builds its topology and runs it to the horizon or until
// every source is exhausted. Component failures raised on the simulation
// clock are returned as a *stream.Failure.
func Run(cfg *Config) (res *Result, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	tr := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevel(cfg.TraceLevel)})
	collector := metrics.NewCollector("chunkstream")

	p, err := build(cfg, tr, collector)
	if err != nil {
		return nil, err
	}

	defer stream.Recover(&err)
	logrus.Infof("Starting %s scenario with %d sources on a %v link, seed=%d",
		cfg.Topology, len(cfg.Sources), sim.Datarate(cfg.Link.Datarate), cfg.Seed)
	for _, g := range p.generators {
		g.Start()
	}
	if p.server != nil {
		p.server.Start()
	}
	p.kernel.Run()

	return p.result(tr, collector), nil
}

func build(cfg *Config, tr *trace.SimulationTrace, collector *metrics.Collector) (*pipeline, error) {
	kernel := sim.NewSimulator(sim.FromSeconds(cfg.Horizon))
	rate := sim.Datarate(cfg.Link.Datarate)
	p := &pipeline{kernel: kernel, link: NewLink("link", kernel, tr)}

	streamer, err := stream.NewStreamer("streamer", kernel, stream.Config{
		Datarate:   rate,
		Preemption: cfg.Preemption.stream(),
	})
	if err != nil {
		return nil, err
	}
	streamer.SetObserver(stream.Observers{collector, traceObserver{tr}})
	p.streamer = streamer

	var sinks map[string]stream.PacketSink
	switch cfg.Topology {
	case TopologyPush:
		q := stream.NewPacketQueue("queue", cfg.QueueCapacity)
		pusher := stream.NewPacketPusher("pusher", q, streamer)
		q.SetCollector(pusher)
		streamer.SetProducer(pusher)
		streamer.SetConsumer(p.link)
		p.queues = []*stream.PacketQueue{q}
		sinks = map[string]stream.PacketSink{
			workload.ClassExpress:     q,
			workload.ClassPreemptable: q,
		}

	case TopologyPreemption:
		express := stream.NewPacketQueue("express", cfg.QueueCapacity)
		preemptable := stream.NewPacketQueue("preemptable", cfg.QueueCapacity)
		server, err := stream.NewPreemptingServer("server", kernel, rate)
		if err != nil {
			return nil, err
		}
		streamer.SetProvider(preemptable)
		streamer.SetCollector(server)
		preemptable.SetCollector(streamer)
		express.SetCollector(server)
		server.SetExpress(express)
		server.SetPreemptable(streamer)
		server.SetConsumer(p.link)
		p.server = server
		p.queues = []*stream.PacketQueue{express, preemptable}
		sinks = map[string]stream.PacketSink{
			workload.ClassExpress:     express,
			workload.ClassPreemptable: preemptable,
		}
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	if p.generators, err = workload.NewGenerators(cfg.Sources, rng, kernel, sinks); err != nil {
		return nil, err
	}

	if cfg.Link.DownAt > 0 {
		kernel.ScheduleAt(sim.FromSeconds(cfg.Link.DownAt), "link.down", p.disconnect)
	}
	return p, nil
}

// disconnect takes the link down. A pushed stream in progress is aborted and
// reaches the link truncated; the server of the preemption topology keeps
// sending into the dead link.
func (p *pipeline) disconnect() {
	p.link.Disconnect()
	if p.server != nil {
		return
	}
	if _, err := p.streamer.Abort(stream.AbortDisconnected); err != nil {
		panic(&stream.Failure{Component: "link.down", Err: err})
	}
}

func (p *pipeline) result(tr *trace.SimulationTrace, collector *metrics.Collector) *Result {
	res := &Result{
		EndTime:   p.kernel.Now(),
		Events:    p.kernel.EventCount,
		Generated: make(map[string]int64, len(p.generators)),
		Link:      p.link.Stats(),
		Streamer:  p.streamer.Stats(),
		Trace:     tr,
		Metrics:   collector,
	}
	for _, g := range p.generators {
		res.Generated[g.Name()] = g.Generated()
	}
	if p.server != nil {
		res.Preemptions = p.server.Preemptions()
	}
	for _, q := range p.queues {
		res.QueueDrops += q.Dropped()
		res.Backlog += q.Len()
		collector.RecordQueue(q.Name(), q.Len(), q.Dropped())
	}
	logrus.Infof("[%v] scenario finished: %d delivered, %d corrupted, %d lost, %d preemptions",
		res.EndTime, res.Link.Delivered, res.Link.Corrupted, res.Link.Lost, res.Preemptions)
	return res
}

// traceObserver records streamer events into a trace.
type traceObserver struct {
	trace *trace.SimulationTrace
}

func (o traceObserver) Observe(ev stream.Event) {
	rec := trace.StreamRecord{
		Streamer: ev.Streamer,
		Clock:    int64(ev.Time),
		Kind:     ev.Kind.String(),
		Length:   ev.Length,
	}
	if ev.Packet != nil {
		rec.Packet = ev.Packet.Name()
		rec.TreeID = ev.Packet.TreeID()
	}
	if ev.Kind == stream.EventAborted {
		rec.Reason = ev.Reason.String()
	}
	o.trace.RecordStream(rec)
}
