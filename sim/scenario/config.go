// Package scenario wires traffic sources, queues, a streamer and a link into
// a runnable simulation and reports what the link received.
//
// Two topologies are supported. In the push topology every source feeds one
// queue that a pusher drains into a push-mode streamer. In the preemption
// topology express and preemptable traffic have separate queues; a
// preempting server pulls express frames whole and preemptable frames through
// a streamer with frame preemption enabled.
package scenario

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/chunkstream/sim"
	"github.com/inference-sim/chunkstream/sim/stream"
	"github.com/inference-sim/chunkstream/sim/trace"
	"github.com/inference-sim/chunkstream/sim/workload"
)

// Topologies.
const (
	TopologyPush       = "push"
	TopologyPreemption = "preemption"
)

// Config is a complete scenario, loaded from YAML via LoadConfig(path).
type Config struct {
	Seed          int64                 `yaml:"seed"`
	Horizon       float64               `yaml:"horizon,omitempty"` // seconds; 0 = run until every source is exhausted
	Topology      string                `yaml:"topology"`
	Link          LinkConfig            `yaml:"link"`
	Preemption    *PreemptionConfig     `yaml:"preemption,omitempty"`
	QueueCapacity int                   `yaml:"queue_capacity,omitempty"` // 0 = unlimited
	TraceLevel    string                `yaml:"trace_level,omitempty"`
	Sources       []workload.SourceSpec `yaml:"sources"`
}

// LinkConfig describes the outgoing link.
type LinkConfig struct {
	Datarate int64   `yaml:"datarate_bps"`
	DownAt   float64 `yaml:"down_at,omitempty"` // seconds; 0 = never
}

// PreemptionConfig sets the fragment limits of the preemptable streamer.
type PreemptionConfig struct {
	MinPacketLength int64 `yaml:"min_packet_length"`
	RoundingLength  int64 `yaml:"rounding_length"`
}

// DefaultConfig returns a two-class preemption scenario on a 1 Gbps link.
func DefaultConfig() *Config {
	cv := 2.0
	return &Config{
		Seed:     42,
		Horizon:  0.01,
		Topology: TopologyPreemption,
		Link:     LinkConfig{Datarate: int64(sim.Gbps)},
		Preemption: &PreemptionConfig{
			MinPacketLength: 64,
			RoundingLength:  8,
		},
		Sources: []workload.SourceSpec{
			{
				Name:    "control",
				Class:   workload.ClassExpress,
				Rate:    10000,
				Arrival: workload.ArrivalSpec{Process: "poisson"},
				Length:  workload.DistSpec{Type: "constant", Params: map[string]float64{"value": 64}},
			},
			{
				Name:    "bulk",
				Class:   workload.ClassPreemptable,
				Rate:    50000,
				Arrival: workload.ArrivalSpec{Process: "gamma", CV: &cv},
				Length:  workload.DistSpec{Type: "imix"},
			},
		},
	}
}

// LoadConfig reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML scenario document strictly.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the scenario can be built and terminates.
func (c *Config) Validate() error {
	if math.IsNaN(c.Horizon) || math.IsInf(c.Horizon, 0) || c.Horizon < 0 {
		return fmt.Errorf("horizon must be a finite non-negative number of seconds, got %f", c.Horizon)
	}
	if c.Topology != TopologyPush && c.Topology != TopologyPreemption {
		return fmt.Errorf("unknown topology %q; valid: push, preemption", c.Topology)
	}
	if c.Link.Datarate <= 0 {
		return fmt.Errorf("link.datarate_bps must be positive, got %d", c.Link.Datarate)
	}
	if math.IsNaN(c.Link.DownAt) || math.IsInf(c.Link.DownAt, 0) || c.Link.DownAt < 0 {
		return fmt.Errorf("link.down_at must be a finite non-negative number of seconds, got %f", c.Link.DownAt)
	}
	switch {
	case c.Topology == TopologyPreemption && c.Preemption == nil:
		return fmt.Errorf("topology %q requires a preemption section", c.Topology)
	case c.Topology == TopologyPush && c.Preemption != nil:
		return fmt.Errorf("preemption applies to pulled streams; topology %q does not pull", c.Topology)
	case c.Preemption != nil:
		if err := c.Preemption.stream().Validate(); err != nil {
			return err
		}
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must be non-negative, got %d", c.QueueCapacity)
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		return fmt.Errorf("unknown trace_level %q; valid: none, deliveries, streams", c.TraceLevel)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source required")
	}
	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		s := &c.Sources[i]
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
		if c.Horizon == 0 && s.Count == 0 {
			return fmt.Errorf("source %q is unbounded; set its count or a horizon", s.Name)
		}
	}
	return nil
}

func (p *PreemptionConfig) stream() *stream.PreemptionConfig {
	if p == nil {
		return nil
	}
	return &stream.PreemptionConfig{MinPacketLength: p.MinPacketLength, RoundingLength: p.RoundingLength}
}
