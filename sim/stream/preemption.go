package stream

import (
	"fmt"

	"github.com/inference-sim/chunkstream/sim"
)

// PreemptionConfig controls where a pulled stream may be cut.
// A fragment is never shorter than MinPacketLength and its length is always
// a multiple of RoundingLength, except for the final fragment which carries
// whatever remains.
type PreemptionConfig struct {
	MinPacketLength int64
	RoundingLength  int64
}

// Validate checks that both lengths are positive.
func (c PreemptionConfig) Validate() error {
	if c.MinPacketLength < 1 {
		return fmt.Errorf("preemption: min packet length must be >= 1, got %d", c.MinPacketLength)
	}
	if c.RoundingLength < 1 {
		return fmt.Errorf("preemption: rounding length must be >= 1, got %d", c.RoundingLength)
	}
	return nil
}

// PreemptedLength is the fragment length for a stream that has delivered
// pulled bytes so far: pulled rounded up to RoundingLength, and at least
// MinPacketLength rounded up the same way.
func (c PreemptionConfig) PreemptedLength(pulled int64) int64 {
	length := roundUp(pulled, c.RoundingLength)
	if length < c.MinPacketLength {
		length = roundUp(c.MinPacketLength, c.RoundingLength)
	}
	return length
}

// SplitAt reports where a packet of total bytes is cut after pulled bytes,
// and false when the remainder would be shorter than MinPacketLength.
func (c PreemptionConfig) SplitAt(pulled, total int64) (int64, bool) {
	length := c.PreemptedLength(pulled)
	if length+c.MinPacketLength > total {
		return 0, false
	}
	return length, true
}

func roundUp(n, multiple int64) int64 {
	return (n + multiple - 1) / multiple * multiple
}

// Config describes one Streamer.
type Config struct {
	// Datarate is used for pushed streams. Pulled streams use the datarate
	// the collector passes to PullPacketStart.
	Datarate sim.Datarate
	// Preemption enables fragmenting pulled streams; nil disables it.
	Preemption *PreemptionConfig
}

// Validate checks the datarate and the optional preemption settings.
func (c Config) Validate() error {
	if c.Datarate <= 0 {
		return fmt.Errorf("datarate must be > 0, got %v", c.Datarate)
	}
	if c.Preemption != nil {
		return c.Preemption.Validate()
	}
	return nil
}
