package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prioEvent is a plain Event with an explicit priority.
type prioEvent struct {
	at       Time
	priority int
	run      func()
}

func (e *prioEvent) Timestamp() Time      { return e.at }
func (e *prioEvent) Priority() int        { return e.priority }
func (e *prioEvent) Execute(_ *Simulator) { e.run() }

func TestSimulator_OrdersByTimePriorityThenFIFO(t *testing.T) {
	// GIVEN events scheduled out of order, two sharing time and priority
	s := NewSimulator(0)
	var order []string
	record := func(name string) func() { return func() { order = append(order, name) } }
	s.ScheduleAt(3*Second, "late", record("late"))
	s.Schedule(&prioEvent{at: Second, priority: 1, run: record("low-prio")})
	s.ScheduleAt(Second, "first-fifo", record("first-fifo"))
	s.ScheduleAt(Second, "second-fifo", record("second-fifo"))
	s.ScheduleAt(0, "now", record("now"))

	// WHEN the simulation runs
	s.Run()

	// THEN events run by (time, priority, insertion order)
	assert.Equal(t, []string{"now", "first-fifo", "second-fifo", "low-prio", "late"}, order)
	assert.Equal(t, 3*Second, s.Now())
	assert.Equal(t, int64(5), s.EventCount)
}

func TestSimulator_CancelledTimerDoesNotFire(t *testing.T) {
	s := NewSimulator(0)
	fired := false
	timer := s.ScheduleAt(Second, "cancel-me", func() { fired = true })
	require.True(t, timer.Scheduled())

	s.Cancel(timer)
	s.Cancel(timer)
	s.Cancel(nil)
	s.Run()

	assert.False(t, fired)
	assert.False(t, timer.Scheduled())
	assert.Equal(t, int64(0), s.EventCount)
	assert.Equal(t, Time(0), s.Now(), "a cancelled timer must not advance the clock")
}

func TestSimulator_TimerScheduledFromCallback(t *testing.T) {
	// GIVEN a timer that schedules a follow-up at the same instant
	s := NewSimulator(0)
	var order []string
	s.ScheduleAt(Second, "outer", func() {
		order = append(order, "outer")
		s.ScheduleAt(s.Now(), "inner", func() { order = append(order, "inner") })
	})

	// WHEN the simulation runs
	s.Run()

	// THEN the follow-up runs at the same time
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, Second, s.Now())
}

func TestSimulator_SchedulingInPast_Panics(t *testing.T) {
	s := NewSimulator(0)
	s.ScheduleAt(2*Second, "advance", func() {})
	s.Run()

	assert.Panics(t, func() { s.ScheduleAt(Second, "past", func() {}) })
}

func TestSimulator_HorizonStopsRun(t *testing.T) {
	// GIVEN a horizon of 2 s and timers at 1 s and 3 s
	s := NewSimulator(2 * Second)
	var fired []Time
	s.ScheduleAt(Second, "in", func() { fired = append(fired, s.Now()) })
	s.ScheduleAt(3*Second, "out", func() { fired = append(fired, s.Now()) })

	// WHEN the simulation runs
	s.Run()

	// THEN only the timer before the horizon fires and the other stays queued
	assert.Equal(t, []Time{Second}, fired)
	assert.Equal(t, 1, s.Pending())
}

func TestSimulator_RunUntil_AdvancesClock(t *testing.T) {
	s := NewSimulator(0)
	var fired []string
	s.ScheduleAt(Second, "a", func() { fired = append(fired, "a") })
	s.ScheduleAt(2*Second, "b", func() { fired = append(fired, "b") })
	s.ScheduleAt(3*Second, "c", func() { fired = append(fired, "c") })

	s.RunUntil(2 * Second)

	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 2*Second, s.Now())

	s.RunUntil(2500 * Millisecond)
	assert.Equal(t, 2500*Millisecond, s.Now())
	assert.Equal(t, Time(math.MaxInt64), s.Horizon, "RunUntil restores the horizon")

	s.Run()
	assert.Equal(t, []string{"a", "b", "c"}, fired)
}

func TestTimer_Accessors(t *testing.T) {
	s := NewSimulator(0)
	timer := s.ScheduleAt(5*Second, "named", func() {})

	assert.Equal(t, "named", timer.Name())
	assert.Equal(t, 5*Second, timer.ArrivalTime())
	var none *Timer
	assert.False(t, none.Scheduled())
}
