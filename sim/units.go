package sim

import (
	"fmt"
	"math"
	"math/bits"
)

// Time is a simulation timestamp or duration in picoseconds.
type Time int64

const (
	Picosecond  Time = 1
	Nanosecond  Time = 1000 * Picosecond
	Microsecond Time = 1000 * Nanosecond
	Millisecond Time = 1000 * Microsecond
	Second      Time = 1000 * Millisecond
)

// Seconds returns the time as a floating-point number of seconds.
func (t Time) Seconds() float64 {
	return float64(t) / float64(Second)
}

func (t Time) String() string {
	return fmt.Sprintf("%.12gs", t.Seconds())
}

// FromSeconds converts seconds to Time, truncating below one picosecond.
func FromSeconds(s float64) Time {
	return Time(s * float64(Second))
}

// Datarate is a transfer rate in bits per second.
type Datarate int64

const (
	Bps  Datarate = 1
	Kbps Datarate = 1000 * Bps
	Mbps Datarate = 1000 * Kbps
	Gbps Datarate = 1000 * Mbps
)

// BytesPerSecond returns the Datarate that moves n bytes every second.
func BytesPerSecond(n int64) Datarate {
	return Datarate(8 * n)
}

func (d Datarate) String() string {
	return fmt.Sprintf("%dbps", int64(d))
}

// TransmissionDuration returns how long it takes to send length bytes at
// rate, rounded up to the next picosecond.
func TransmissionDuration(length int64, rate Datarate) Time {
	if length <= 0 {
		return 0
	}
	if rate <= 0 {
		panic(fmt.Sprintf("sim: invalid datarate %d", rate))
	}
	if length > math.MaxInt64/8 {
		panic(fmt.Sprintf("sim: transmission of %d bytes overflows", length))
	}
	hi, lo := bits.Mul64(uint64(length)*8, uint64(Second))
	if hi >= uint64(rate) {
		panic(fmt.Sprintf("sim: transmission of %d bytes at %v overflows", length, rate))
	}
	q, r := bits.Div64(hi, lo, uint64(rate))
	if r != 0 {
		q++
	}
	if q > math.MaxInt64 {
		panic(fmt.Sprintf("sim: transmission of %d bytes at %v overflows", length, rate))
	}
	return Time(q)
}

// TransmittedLength returns how many whole bytes are sent at rate during
// elapsed. Negative elapsed counts as zero.
func TransmittedLength(rate Datarate, elapsed Time) int64 {
	if elapsed <= 0 || rate <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(rate), uint64(elapsed))
	den := uint64(Second) * 8
	if hi >= den {
		panic(fmt.Sprintf("sim: transmitted length at %v over %v overflows", rate, elapsed))
	}
	q, _ := bits.Div64(hi, lo, den)
	return int64(q)
}
