package stream

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/packet"
)

type serverState int

const (
	serverIdle serverState = iota
	serverExpress
	serverPreemptable
	// serverFinishing sends the fragment left after a preemption.
	serverFinishing
)

// PreemptingServer transmits frames from two providers over one outgoing
// connection. Express frames are pulled whole and never interrupted.
// Preemptable frames are pulled as a stream, typically from a Streamer with
// preemption enabled; when an express frame becomes available during such a
// stream, the stream is ended early and only the resulting fragment is
// finished before the express frame goes out.
type PreemptingServer struct {
	name     string
	sched    Scheduler
	datarate sim.Datarate

	express     PacketSource
	preemptable PacketSource
	consumer    PacketSink

	state   serverState
	current *packet.Packet
	start   sim.Time
	timer   *sim.Timer

	preemptions int64
	transmitted int64
}

// NewPreemptingServer creates an idle server sending at datarate.
func NewPreemptingServer(name string, sched Scheduler, datarate sim.Datarate) (*PreemptingServer, error) {
	if datarate <= 0 {
		return nil, fmt.Errorf("preempting server %q: datarate must be > 0, got %v", name, datarate)
	}
	return &PreemptingServer{name: name, sched: sched, datarate: datarate}, nil
}

func (s *PreemptingServer) SetExpress(p PacketSource)     { s.express = p }
func (s *PreemptingServer) SetPreemptable(p PacketSource) { s.preemptable = p }
func (s *PreemptingServer) SetConsumer(c PacketSink)      { s.consumer = c }

// Busy reports whether a frame or fragment is on the wire.
func (s *PreemptingServer) Busy() bool { return s.state != serverIdle }

// Preemptions returns how many preemptable frames were cut short.
func (s *PreemptingServer) Preemptions() int64 { return s.preemptions }

// Transmitted returns the number of frames and fragments sent.
func (s *PreemptingServer) Transmitted() int64 { return s.transmitted }

// Start serves whatever is already waiting. Later arrivals reach the server
// through HandleCanPullPacketChanged.
func (s *PreemptingServer) Start() { s.serveNext() }

func (s *PreemptingServer) HandleCanPullPacketChanged() {
	switch s.state {
	case serverIdle:
		s.serveNext()
	case serverPreemptable:
		if s.express != nil && s.express.CanPullSomePacket() {
			s.preempt()
		}
	}
}

func (s *PreemptingServer) serveNext() {
	if s.state != serverIdle {
		return
	}
	switch {
	case s.express != nil && s.express.CanPullSomePacket():
		p, err := s.express.PullPacket()
		if err != nil {
			fail(s.name, fmt.Errorf("pull express: %w", err))
		}
		s.transmit(p, serverExpress)
	case s.preemptable != nil && s.preemptable.CanPullSomePacket():
		p, err := s.preemptable.PullPacketStart(s.datarate)
		if err != nil {
			fail(s.name, fmt.Errorf("pull preemptable: %w", err))
		}
		s.transmit(p, serverPreemptable)
	}
}

func (s *PreemptingServer) transmit(p *packet.Packet, state serverState) {
	now := s.sched.Now()
	s.state = state
	s.current = p
	s.start = now
	logrus.Debugf("[%v] %s: transmitting %s", now, s.name, p)
	if err := s.consumer.PushPacketStart(p.Dup(), s.datarate); err != nil {
		fail(s.name, err)
	}
	end := now + sim.TransmissionDuration(p.TotalLength(), s.datarate)
	s.timer = s.sched.ScheduleAt(end, s.name+".endTransmission", s.endTransmission)
}

func (s *PreemptingServer) preempt() {
	p, err := s.preemptable.PullPacketEnd()
	if err != nil {
		fail(s.name, fmt.Errorf("preempt: %w", err))
	}
	now := s.sched.Now()
	if !packet.FragmentOf(p).LastFragment {
		s.preemptions++
	}
	s.sched.Cancel(s.timer)
	s.current = p
	s.state = serverFinishing
	end := max(now, s.start+sim.TransmissionDuration(p.TotalLength(), s.datarate))
	s.timer = s.sched.ScheduleAt(end, s.name+".endTransmission", s.endTransmission)
	logrus.Debugf("[%v] %s: preempted, finishing %s at %v", now, s.name, p, end)
}

func (s *PreemptingServer) endTransmission() {
	s.timer = nil
	p := s.current
	if s.state == serverPreemptable {
		var err error
		if p, err = s.preemptable.PullPacketEnd(); err != nil {
			fail(s.name, fmt.Errorf("end preemptable: %w", err))
		}
	}
	s.state = serverIdle
	s.current = nil
	s.transmitted++
	if err := s.consumer.PushPacketEnd(p); err != nil {
		fail(s.name, err)
	}
	s.serveNext()
}
