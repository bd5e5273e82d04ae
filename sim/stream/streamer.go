package stream

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/packet"
)

// State is the Streamer's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStreaming
)

func (s State) String() string {
	if s == StateStreaming {
		return "streaming"
	}
	return "idle"
}

type mode int

const (
	modeNone mode = iota
	modePush
	modeStreamThrough
	modePull
)

// Stats accumulates counters over a Streamer's lifetime.
type Stats struct {
	StartedStreams int64
	// ProcessedPackets counts complete packets and last fragments.
	ProcessedPackets int64
	// ProcessedFragments counts deliveries that are a proper part of a
	// preempted packet.
	ProcessedFragments int64
	ProcessedBytes     int64
	AbortedPackets     int64
	BufferUnderruns    int64
}

// Progress is a snapshot of the active stream.
type Progress struct {
	Packet   *packet.Packet
	Datarate sim.Datarate
	Start    sim.Time
	Position int64
	Length   int64
}

// Streamer turns packets into timed streams. It serves three roles:
//
//   - push: PushPacket takes a whole packet and streams it to the consumer at
//     the configured datarate.
//   - stream-through: PushPacketStart/Progress/End from a streaming producer
//     are forwarded as they arrive; the stream aborts with a buffer underrun
//     when output would overtake input.
//   - pull: a collector drives PullPacketStart/PullPacketEnd; with
//     preemption enabled an early end cuts the packet into a fragment and a
//     remainder that is served next.
//
// At most one stream is active at a time.
type Streamer struct {
	name  string
	sched Scheduler
	cfg   Config

	producer  PushListener
	consumer  PacketSink
	provider  PacketSource
	collector PullListener
	observer  Observer

	state          State
	mode           mode
	streamedPacket *packet.Packet
	streamDatarate sim.Datarate
	streamStart    sim.Time
	endTimer       *sim.Timer

	inputDatarate sim.Datarate
	inputPosition int64
	inputUpdated  sim.Time
	inputComplete bool
	underrunTimer *sim.Timer

	remainingPacket *packet.Packet
	stats           Stats
}

// NewStreamer creates an idle Streamer driven by sched.
func NewStreamer(name string, sched Scheduler, cfg Config) (*Streamer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("streamer %q: %w", name, err)
	}
	return &Streamer{name: name, sched: sched, cfg: cfg}, nil
}

func (s *Streamer) Name() string   { return s.name }
func (s *Streamer) State() State   { return s.state }
func (s *Streamer) Stats() Stats   { return s.stats }
func (s *Streamer) Config() Config { return s.cfg }

// HasRemainder reports whether a preempted remainder waits to be pulled.
func (s *Streamer) HasRemainder() bool { return s.remainingPacket != nil }

func (s *Streamer) SetConsumer(c PacketSink)    { s.consumer = c }
func (s *Streamer) SetProducer(p PushListener)  { s.producer = p }
func (s *Streamer) SetProvider(p PacketSource)  { s.provider = p }
func (s *Streamer) SetCollector(c PullListener) { s.collector = c }
func (s *Streamer) SetObserver(o Observer)      { s.observer = o }

// Progress returns the active stream's state, or false when Idle. The
// position is derived from the clock on each call.
func (s *Streamer) Progress() (Progress, bool) {
	if s.state != StateStreaming {
		return Progress{}, false
	}
	return Progress{
		Packet:   s.streamedPacket,
		Datarate: s.streamDatarate,
		Start:    s.streamStart,
		Position: s.position(),
		Length:   s.streamedPacket.TotalLength(),
	}, true
}

func (s *Streamer) CanPushSomePacket() bool {
	return s.state == StateIdle && s.consumer != nil && s.consumer.CanPushSomePacket()
}

func (s *Streamer) CanPushPacket(p *packet.Packet) bool {
	return s.state == StateIdle && s.consumer != nil && s.consumer.CanPushPacket(p)
}

// PushPacket starts streaming p to the consumer at the configured datarate.
// The consumer sees PushPacketStart now and PushPacketEnd once the
// transmission duration has elapsed.
func (s *Streamer) PushPacket(p *packet.Packet) error {
	if err := s.checkPushable("push"); err != nil {
		return err
	}
	s.begin(p, s.cfg.Datarate, modePush)
	if err := s.consumer.PushPacketStart(p.Dup(), s.streamDatarate); err != nil {
		s.reset()
		return fmt.Errorf("streamer %s: %w", s.name, err)
	}
	s.started(p)
	return nil
}

// PushPacketStart begins a stream-through: p arrives at datarate and is sent
// on at the configured datarate without waiting for its end.
func (s *Streamer) PushPacketStart(p *packet.Packet, datarate sim.Datarate) error {
	if err := s.checkPushable("stream start"); err != nil {
		return err
	}
	s.inputDatarate = datarate
	s.inputPosition = 0
	s.inputUpdated = s.sched.Now()
	s.inputComplete = false
	s.begin(p, s.cfg.Datarate, modeStreamThrough)
	if err := s.consumer.PushPacketStart(p.Dup(), s.streamDatarate); err != nil {
		s.reset()
		return fmt.Errorf("streamer %s: %w", s.name, err)
	}
	s.started(p)
	s.updateUnderrunTimer()
	return nil
}

// PushPacketProgress records that position bytes of the incoming stream
// have arrived and forwards the output progress to the consumer.
func (s *Streamer) PushPacketProgress(p *packet.Packet, datarate sim.Datarate, position int64) error {
	if err := s.checkStreamThrough(p); err != nil {
		return err
	}
	if s.inputComplete {
		return fmt.Errorf("%w: streamer %s: input of %s already ended", ErrPrecondition, s.name, p)
	}
	if position < 0 || position > p.TotalLength() {
		return fmt.Errorf("%w: streamer %s: progress %d outside %d bytes", ErrPrecondition, s.name, position, p.TotalLength())
	}
	p.Seal()
	s.streamedPacket = p
	s.inputDatarate = datarate
	s.inputPosition = position
	s.inputUpdated = s.sched.Now()
	s.rescheduleEnd()
	s.updateUnderrunTimer()
	return s.consumer.PushPacketProgress(p.Dup(), s.streamDatarate, s.position())
}

// PushPacketEnd marks the incoming stream complete. The output stream ends
// when its own transmission duration for p has elapsed.
func (s *Streamer) PushPacketEnd(p *packet.Packet) error {
	if err := s.checkStreamThrough(p); err != nil {
		return err
	}
	if s.inputComplete {
		return fmt.Errorf("%w: streamer %s: input of %s already ended", ErrPrecondition, s.name, p)
	}
	p.Seal()
	s.streamedPacket = p
	s.inputComplete = true
	s.inputPosition = p.TotalLength()
	s.inputUpdated = s.sched.Now()
	s.sched.Cancel(s.underrunTimer)
	s.underrunTimer = nil
	s.rescheduleEnd()
	return nil
}

func (s *Streamer) CanPullSomePacket() bool {
	if s.state != StateIdle {
		return false
	}
	return s.remainingPacket != nil || (s.provider != nil && s.provider.CanPullSomePacket())
}

// PullPacket hands over the next packet at once, without streaming it.
func (s *Streamer) PullPacket() (*packet.Packet, error) {
	if err := s.checkIdle("pull"); err != nil {
		return nil, err
	}
	p, err := s.takeNext()
	if err != nil {
		return nil, err
	}
	s.count(p)
	s.observe(Event{Kind: EventEnded, Packet: p, Length: p.TotalLength()})
	return p, nil
}

// PullPacketStart starts streaming the next packet (a pending remainder
// first) to the collector at datarate and returns a view of it.
func (s *Streamer) PullPacketStart(datarate sim.Datarate) (*packet.Packet, error) {
	if err := s.checkIdle("pull start"); err != nil {
		return nil, err
	}
	if datarate <= 0 {
		return nil, fmt.Errorf("%w: streamer %s: datarate must be > 0, got %v", ErrPrecondition, s.name, datarate)
	}
	p, err := s.takeNext()
	if err != nil {
		return nil, err
	}
	if s.cfg.Preemption != nil && !packet.HasTag[packet.FragmentTag](p) {
		packet.SetTag(p, packet.FragmentTag{FirstFragment: true, LastFragment: true})
	}
	s.begin(p, datarate, modePull)
	s.started(p)
	return p.Dup(), nil
}

// PullPacketEnd ends the pulled stream now. With preemption enabled and
// enough bytes left, only a fragment covering what was sent (rounded up) is
// returned and the rest is kept for the next pull.
func (s *Streamer) PullPacketEnd() (*packet.Packet, error) {
	if s.state != StateStreaming || s.mode != modePull {
		return nil, fmt.Errorf("%w: streamer %s has no pulled stream to end", ErrPrecondition, s.name)
	}
	p := s.streamedPacket
	delivered, kind := p, EventEnded
	if s.cfg.Preemption != nil {
		if at, ok := s.cfg.Preemption.SplitAt(s.position(), p.TotalLength()); ok {
			head, tail, err := packet.Split(p, at)
			if err != nil {
				return nil, fmt.Errorf("streamer %s: %w", s.name, err)
			}
			delivered, kind = head, EventFragment
			s.remainingPacket = tail
		}
	}
	ev := s.event(kind, delivered, delivered.TotalLength())
	s.count(delivered)
	s.reset()
	logrus.Debugf("[%v] %s: pulled stream ended with %s", ev.Time, s.name, delivered)
	s.observe(ev)
	return delivered, nil
}

// Abort cuts the active stream short. The packet is truncated to the whole
// bytes sent so far and flagged with a bit error; in push modes it is also
// delivered to the consumer as the stream's end. Aborting while Idle does
// nothing and returns nil.
func (s *Streamer) Abort(reason AbortReason) (*packet.Packet, error) {
	if s.state != StateStreaming {
		return nil, nil
	}
	sent := s.position()
	truncated, err := packet.Truncate(s.streamedPacket, sent)
	if err != nil {
		return nil, fmt.Errorf("streamer %s: %w", s.name, err)
	}
	truncated.SetBitError(true)
	ev := s.event(EventAborted, truncated, sent)
	ev.Reason = reason
	m := s.mode
	s.stats.AbortedPackets++
	s.reset()
	logrus.Debugf("[%v] %s: aborted (%v) after %d bytes", ev.Time, s.name, reason, sent)
	s.observe(ev)
	switch m {
	case modePush, modeStreamThrough:
		if err := s.consumer.PushPacketEnd(truncated); err != nil {
			return truncated, fmt.Errorf("streamer %s: %w", s.name, err)
		}
		s.notifyProducer()
	case modePull:
		s.notifyCollector()
	}
	return truncated, nil
}

// HandleCanPushPacketChanged forwards the consumer's availability to the
// producer while Idle.
func (s *Streamer) HandleCanPushPacketChanged() {
	if s.state == StateIdle {
		s.notifyProducer()
	}
}

// HandleCanPullPacketChanged forwards the provider's availability to the
// collector while Idle.
func (s *Streamer) HandleCanPullPacketChanged() {
	if s.state == StateIdle {
		s.notifyCollector()
	}
}

func (s *Streamer) checkIdle(op string) error {
	if s.state != StateIdle {
		return fmt.Errorf("%w: streamer %s: %s while streaming %s", ErrPrecondition, s.name, op, s.streamedPacket)
	}
	return nil
}

func (s *Streamer) checkPushable(op string) error {
	if err := s.checkIdle(op); err != nil {
		return err
	}
	if s.consumer == nil {
		return fmt.Errorf("%w: streamer %s has no consumer", ErrPrecondition, s.name)
	}
	return nil
}

func (s *Streamer) checkStreamThrough(p *packet.Packet) error {
	if s.state != StateStreaming || s.mode != modeStreamThrough {
		return fmt.Errorf("%w: streamer %s is not streaming through", ErrPrecondition, s.name)
	}
	if p.TreeID() != s.streamedPacket.TreeID() {
		return fmt.Errorf("%w: streamer %s: %s does not belong to stream of %s", ErrPrecondition, s.name, p, s.streamedPacket)
	}
	return nil
}

func (s *Streamer) begin(p *packet.Packet, datarate sim.Datarate, m mode) {
	p.Seal()
	now := s.sched.Now()
	s.state = StateStreaming
	s.mode = m
	s.streamedPacket = p
	s.streamDatarate = datarate
	s.streamStart = now
	if m != modePull {
		end := now + sim.TransmissionDuration(p.TotalLength(), datarate)
		s.endTimer = s.sched.ScheduleAt(end, s.name+".endStreaming", s.endStreaming)
	}
}

// started counts and reports a stream once the consumer has accepted it.
func (s *Streamer) started(p *packet.Packet) {
	s.stats.StartedStreams++
	logrus.Debugf("[%v] %s: start streaming %s at %v", s.sched.Now(), s.name, p, s.streamDatarate)
	s.observe(s.event(EventStarted, p, 0))
}

func (s *Streamer) rescheduleEnd() {
	end := max(s.sched.Now(), s.streamStart+sim.TransmissionDuration(s.streamedPacket.TotalLength(), s.streamDatarate))
	if s.endTimer.Scheduled() && s.endTimer.ArrivalTime() == end {
		return
	}
	s.sched.Cancel(s.endTimer)
	s.endTimer = s.sched.ScheduleAt(end, s.name+".endStreaming", s.endStreaming)
}

func (s *Streamer) endStreaming() {
	s.endTimer = nil
	if s.mode == modeStreamThrough && !s.inputComplete {
		// All bytes arrived but the input end is still due this instant;
		// PushPacketEnd reschedules the end.
		if s.arrived() < s.streamedPacket.TotalLength() {
			s.bufferUnderrun()
		}
		return
	}
	p := s.streamedPacket
	ev := s.event(EventEnded, p, p.TotalLength())
	s.count(p)
	s.reset()
	logrus.Debugf("[%v] %s: end streaming %s", ev.Time, s.name, p)
	s.observe(ev)
	if err := s.consumer.PushPacketEnd(p); err != nil {
		fail(s.name, err)
	}
	s.notifyProducer()
}

// updateUnderrunTimer schedules the moment the output would overtake the
// input, unless the input completes first.
func (s *Streamer) updateUnderrunTimer() {
	s.sched.Cancel(s.underrunTimer)
	s.underrunTimer = nil
	if s.inputComplete {
		return
	}
	now := s.sched.Now()
	in := s.inputPosition
	out := sim.TransmittedLength(s.streamDatarate, now-s.streamStart)
	var at sim.Time
	switch {
	case out > in:
		at = now
	case s.streamDatarate <= s.inputDatarate:
		return
	default:
		at = now + sim.TransmissionDuration(in-out, s.streamDatarate-s.inputDatarate)
		if s.inputDatarate > 0 {
			remaining := s.streamedPacket.TotalLength() - in
			if now+sim.TransmissionDuration(remaining, s.inputDatarate) <= at {
				return
			}
		}
	}
	s.underrunTimer = s.sched.ScheduleAt(at, s.name+".bufferUnderrun", s.bufferUnderrun)
}

func (s *Streamer) bufferUnderrun() {
	s.underrunTimer = nil
	s.stats.BufferUnderruns++
	logrus.Debugf("[%v] %s: buffer underrun on %s", s.sched.Now(), s.name, s.streamedPacket)
	s.observe(s.event(EventUnderrun, s.streamedPacket, 0))
	if _, err := s.Abort(AbortBufferUnderrun); err != nil {
		fail(s.name, err)
	}
}

// position is the number of whole bytes sent so far, bounded by the packet
// length and, while streaming through, by what has arrived.
func (s *Streamer) position() int64 {
	now := s.sched.Now()
	pos := min(sim.TransmittedLength(s.streamDatarate, now-s.streamStart), s.streamedPacket.TotalLength())
	if s.mode == modeStreamThrough && !s.inputComplete {
		pos = min(pos, s.arrived())
	}
	return pos
}

// arrived extrapolates the input position from the last progress report.
func (s *Streamer) arrived() int64 {
	n := s.inputPosition + sim.TransmittedLength(s.inputDatarate, s.sched.Now()-s.inputUpdated)
	return min(n, s.streamedPacket.TotalLength())
}

func (s *Streamer) takeNext() (*packet.Packet, error) {
	if p := s.remainingPacket; p != nil {
		s.remainingPacket = nil
		return p, nil
	}
	if s.provider == nil {
		return nil, fmt.Errorf("%w: streamer %s has no provider", ErrPrecondition, s.name)
	}
	p, err := s.provider.PullPacket()
	if err != nil {
		return nil, fmt.Errorf("streamer %s: %w", s.name, err)
	}
	return p, nil
}

func (s *Streamer) count(p *packet.Packet) {
	s.stats.ProcessedBytes += p.TotalLength()
	tag := packet.FragmentOf(p)
	if !tag.FirstFragment || !tag.LastFragment {
		s.stats.ProcessedFragments++
	}
	if tag.LastFragment {
		s.stats.ProcessedPackets++
	}
}

func (s *Streamer) reset() {
	s.sched.Cancel(s.endTimer)
	s.sched.Cancel(s.underrunTimer)
	s.endTimer = nil
	s.underrunTimer = nil
	s.state = StateIdle
	s.mode = modeNone
	s.streamedPacket = nil
	s.streamDatarate = 0
	s.inputDatarate = 0
	s.inputPosition = 0
	s.inputComplete = false
}

func (s *Streamer) event(kind EventKind, p *packet.Packet, length int64) Event {
	now := s.sched.Now()
	return Event{
		Kind:     kind,
		Streamer: s.name,
		Time:     now,
		Packet:   p,
		Datarate: s.streamDatarate,
		Length:   length,
		Duration: now - s.streamStart,
	}
}

func (s *Streamer) observe(ev Event) {
	if s.observer == nil {
		return
	}
	if ev.Streamer == "" {
		ev.Streamer = s.name
		ev.Time = s.sched.Now()
	}
	s.observer.Observe(ev)
}

func (s *Streamer) notifyProducer() {
	if s.producer != nil {
		s.producer.HandleCanPushPacketChanged()
	}
}

func (s *Streamer) notifyCollector() {
	if s.collector != nil {
		s.collector.HandleCanPullPacketChanged()
	}
}
