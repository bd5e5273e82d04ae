// sim/simulator.go
package sim

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// queueEntry wraps an Event with a sequence ID for deterministic FIFO
// tie-breaking when timestamp and priority are equal.
type queueEntry struct {
	event Event
	seqID int64
}

// EventQueue is a min-heap ordered by (Timestamp, Priority, seqID).
// Implements heap.Interface.
type EventQueue []queueEntry

func (q EventQueue) Len() int { return len(q) }

func (q EventQueue) Less(i, j int) bool {
	if q[i].event.Timestamp() != q[j].event.Timestamp() {
		return q[i].event.Timestamp() < q[j].event.Timestamp()
	}
	if q[i].event.Priority() != q[j].event.Priority() {
		return q[i].event.Priority() < q[j].event.Priority()
	}
	return q[i].seqID < q[j].seqID
}

func (q EventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *EventQueue) Push(x any) {
	*q = append(*q, x.(queueEntry))
}

func (q *EventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Simulator is the core object that holds simulation time and the event loop.
//
// Thread-safety: NOT thread-safe. All components run on the goroutine that
// calls Run or Step.
type Simulator struct {
	Clock Time
	// Horizon stops Run once the clock passes it.
	Horizon Time
	events  EventQueue
	seq     int64
	// EventCount is the number of events executed so far.
	EventCount int64
}

// NewSimulator creates a simulator at time zero. A non-positive horizon
// means "run until no events remain".
func NewSimulator(horizon Time) *Simulator {
	if horizon <= 0 {
		horizon = Time(math.MaxInt64)
	}
	return &Simulator{
		Horizon: horizon,
		events:  make(EventQueue, 0),
	}
}

// Now returns the current simulation time.
func (sim *Simulator) Now() Time {
	return sim.Clock
}

// Schedule pushes an event into the queue. Scheduling an event in the past
// is a programming error.
func (sim *Simulator) Schedule(ev Event) {
	if ev.Timestamp() < sim.Clock {
		panic(fmt.Sprintf("sim: event %T scheduled at %v, before current time %v", ev, ev.Timestamp(), sim.Clock))
	}
	sim.seq++
	heap.Push(&sim.events, queueEntry{event: ev, seqID: sim.seq})
}

// ScheduleAt schedules fn to run at the given time and returns the timer
// handle that can be passed to Cancel.
func (sim *Simulator) ScheduleAt(at Time, name string, fn func()) *Timer {
	t := &Timer{name: name, time: at, fn: fn, scheduled: true}
	sim.Schedule(t)
	return t
}

// Cancel withdraws a pending timer. Cancelling a nil, fired or already
// cancelled timer is a no-op.
func (sim *Simulator) Cancel(t *Timer) {
	if t == nil || !t.scheduled {
		return
	}
	t.scheduled = false
	logrus.Debugf("[%v] cancelled timer %q (was due %v)", sim.Clock, t.name, t.time)
}

// Pending returns the number of queued events, cancelled timers included.
func (sim *Simulator) Pending() int {
	return len(sim.events)
}

// Step executes the next live event. It returns false when no event is left
// or the next event lies beyond the horizon.
func (sim *Simulator) Step() bool {
	for len(sim.events) > 0 {
		next := sim.events[0].event
		if t, ok := next.(*Timer); ok && !t.scheduled {
			heap.Pop(&sim.events)
			continue
		}
		if next.Timestamp() > sim.Horizon {
			return false
		}
		heap.Pop(&sim.events)
		sim.Clock = next.Timestamp()
		sim.EventCount++
		if t, ok := next.(*Timer); ok {
			logrus.Debugf("[%v] executing timer %q", sim.Clock, t.name)
		} else {
			logrus.Debugf("[%v] executing %T", sim.Clock, next)
		}
		next.Execute(sim)
		return true
	}
	return false
}

// Run executes events until the queue drains or the horizon is reached.
func (sim *Simulator) Run() {
	for sim.Step() {
	}
	logrus.Infof("[%v] simulation ended after %d events", sim.Clock, sim.EventCount)
}

// RunUntil executes every event scheduled at or before t and then advances
// the clock to t.
func (sim *Simulator) RunUntil(t Time) {
	saved := sim.Horizon
	sim.Horizon = min(t, saved)
	for sim.Step() {
	}
	sim.Horizon = saved
	if sim.Clock < t {
		sim.Clock = t
	}
}
