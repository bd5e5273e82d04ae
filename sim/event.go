package sim

// Event defines the interface for all simulation events.
// Each event has a Timestamp, a Priority used to order events that share a
// timestamp (lower first), and an Execute method that advances state.
type Event interface {
	Timestamp() Time
	Priority() int
	Execute(*Simulator)
}

// Timer is a named, cancellable callback scheduled at a fixed time.
// Components keep the *Timer returned by ScheduleAt to cancel or inspect it.
type Timer struct {
	name      string
	time      Time
	priority  int
	fn        func()
	scheduled bool
}

// Name returns the label given when the timer was scheduled.
func (t *Timer) Name() string { return t.name }

// ArrivalTime returns the time the timer fires (or would have fired).
func (t *Timer) ArrivalTime() Time { return t.time }

// Scheduled reports whether the timer is still pending.
func (t *Timer) Scheduled() bool { return t != nil && t.scheduled }

func (t *Timer) Timestamp() Time { return t.time }
func (t *Timer) Priority() int   { return t.priority }

// Execute runs the callback unless the timer was cancelled in the meantime.
func (t *Timer) Execute(_ *Simulator) {
	if !t.scheduled {
		return
	}
	t.scheduled = false
	t.fn()
}
