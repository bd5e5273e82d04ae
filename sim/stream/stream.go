// Package stream models packets moving between elements over time.
//
// Elements talk through two dual contracts. A PacketSink accepts packets
// pushed by an upstream producer, either at once or as a timed stream
// (start, progress, end). A PacketSource hands packets to a downstream
// collector that pulls them, again either at once or as a stream. Listeners
// learn when the other side becomes able to accept or deliver again.
//
// The Streamer is the central element: it turns an instantaneous packet into
// a stream of fixed datarate on the simulation clock, supports aborting a
// stream with a truncated bit-error packet, and in pull mode can be preempted
// so that a long frame is cut into fragments around express traffic.
package stream

import (
	"errors"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/packet"
)

// ErrPrecondition is returned when an operation is called in a state that
// does not allow it, such as starting a stream while another is active.
var ErrPrecondition = errors.New("stream precondition violated")

// Scheduler is the part of the simulation kernel the stream elements use.
// *sim.Simulator implements it.
type Scheduler interface {
	Now() sim.Time
	ScheduleAt(at sim.Time, name string, fn func()) *sim.Timer
	Cancel(t *sim.Timer)
}

// PacketSink is the passive receiving side of a connection.
type PacketSink interface {
	CanPushSomePacket() bool
	CanPushPacket(p *packet.Packet) bool
	// PushPacket hands over a complete packet at once.
	PushPacket(p *packet.Packet) error
	// PushPacketStart announces the beginning of a stream of p at datarate.
	PushPacketStart(p *packet.Packet, datarate sim.Datarate) error
	// PushPacketProgress reports that position bytes of p have been sent.
	PushPacketProgress(p *packet.Packet, datarate sim.Datarate, position int64) error
	// PushPacketEnd completes a stream; p is the final form of the packet.
	PushPacketEnd(p *packet.Packet) error
}

// PacketSource is the passive delivering side of a connection.
type PacketSource interface {
	CanPullSomePacket() bool
	PullPacket() (*packet.Packet, error)
	PullPacketStart(datarate sim.Datarate) (*packet.Packet, error)
	PullPacketEnd() (*packet.Packet, error)
}

// PushListener is notified when its consumer may accept a packet again.
type PushListener interface {
	HandleCanPushPacketChanged()
}

// PullListener is notified when its provider may deliver a packet again.
type PullListener interface {
	HandleCanPullPacketChanged()
}

// Failure carries an error raised inside a timer callback, where there is no
// caller to return it to. It is raised with panic and turned back into an
// error by Recover at the top of the run.
type Failure struct {
	Component string
	Err       error
}

func (f *Failure) Error() string { return f.Component + ": " + f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

func fail(component string, err error) {
	panic(&Failure{Component: component, Err: err})
}

// Recover stores a pending *Failure panic in *errp. Any other panic is
// re-raised. Call it deferred:
//
//	defer stream.Recover(&err)
func Recover(errp *error) {
	if r := recover(); r != nil {
		if f, ok := r.(*Failure); ok {
			*errp = f
			return
		}
		panic(r)
	}
}
