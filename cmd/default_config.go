package cmd

import (
	"fmt"

	"github.com/inference-sim/chunkstream/sim/scenario"
)

// Built-in scenarios for runs without a scenario file.
const (
	presetPreemption = "preemption"
	presetPush       = "push"
)

// presetScenario returns a fresh copy of the named built-in scenario. Both
// presets carry the same express and preemptable sources so their results
// can be compared directly.
func presetScenario(name string) (*scenario.Config, error) {
	cfg := scenario.DefaultConfig()
	switch name {
	case presetPreemption:
	case presetPush:
		cfg.Topology = scenario.TopologyPush
		cfg.Preemption = nil
	default:
		return nil, fmt.Errorf("unknown preset %q; valid: %s, %s", name, presetPreemption, presetPush)
	}
	return cfg, nil
}
