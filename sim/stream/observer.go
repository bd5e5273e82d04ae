package stream

import (
	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/packet"
)

// EventKind classifies what happened to a stream.
type EventKind int

const (
	EventStarted EventKind = iota
	EventEnded
	EventFragment
	EventAborted
	EventUnderrun
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	case EventFragment:
		return "fragment"
	case EventAborted:
		return "aborted"
	case EventUnderrun:
		return "underrun"
	default:
		return "unknown"
	}
}

// AbortReason tells why a stream was cut short.
type AbortReason int

const (
	AbortRequested AbortReason = iota
	AbortDisconnected
	AbortBufferUnderrun
)

func (r AbortReason) String() string {
	switch r {
	case AbortRequested:
		return "requested"
	case AbortDisconnected:
		return "disconnected"
	case AbortBufferUnderrun:
		return "buffer-underrun"
	default:
		return "unknown"
	}
}

// Event describes one stream transition.
// Length is the number of bytes delivered by the transition; it is zero for
// EventStarted and EventUnderrun.
type Event struct {
	Kind     EventKind
	Streamer string
	Time     sim.Time
	Packet   *packet.Packet
	Datarate sim.Datarate
	Length   int64
	// Duration is the time from stream start to this event.
	Duration sim.Time
	// Reason is set for EventAborted.
	Reason AbortReason
}

// Observer receives stream events synchronously, in simulation order.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Observers fans one event out to several observers in order.
type Observers []Observer

func (o Observers) Observe(ev Event) {
	for _, obs := range o {
		obs.Observe(ev)
	}
}
