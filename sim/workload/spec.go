package workload

import (
	"fmt"
	"math"
)

// Traffic classes.
const (
	ClassExpress     = "express"
	ClassPreemptable = "preemptable"
)

// SourceSpec describes one packet source.
type SourceSpec struct {
	Name    string      `yaml:"name"`
	Class   string      `yaml:"class"` // express or preemptable
	Rate    float64     `yaml:"rate"`  // mean packets per second
	Arrival ArrivalSpec `yaml:"arrival"`
	Length  DistSpec    `yaml:"length"`
	Start   float64     `yaml:"start,omitempty"` // seconds
	Count   int64       `yaml:"count,omitempty"` // 0 = unlimited (use horizon only)
}

// ArrivalSpec configures the inter-arrival time process.
type ArrivalSpec struct {
	Process string   `yaml:"process"`
	CV      *float64 `yaml:"cv,omitempty"`
}

// DistSpec parameterizes a packet length distribution in bytes.
type DistSpec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// Valid value registries.
var (
	validArrivalProcesses = map[string]bool{
		"poisson": true, "gamma": true, "weibull": true, "constant": true,
	}
	validDistTypes = map[string]bool{
		"gaussian": true, "exponential": true, "uniform": true, "constant": true, "imix": true, "empirical": true,
	}
	validClasses = map[string]bool{
		ClassExpress: true, ClassPreemptable: true,
	}
)

// Validate checks that all fields of the source are valid.
func (s *SourceSpec) Validate() error {
	prefix := fmt.Sprintf("source %q", s.Name)
	if s.Name == "" {
		return fmt.Errorf("source name must not be empty")
	}
	if !validClasses[s.Class] {
		return fmt.Errorf("%s: unknown class %q; valid: express, preemptable", prefix, s.Class)
	}
	if err := validateFinitePositive(prefix+".rate", s.Rate); err != nil {
		return err
	}
	if !validArrivalProcesses[s.Arrival.Process] {
		return fmt.Errorf("%s: unknown arrival process %q; valid: poisson, gamma, weibull, constant", prefix, s.Arrival.Process)
	}
	if s.Arrival.CV != nil {
		if err := validateFinitePositive(prefix+".cv", *s.Arrival.CV); err != nil {
			return err
		}
		if s.Arrival.Process == "weibull" && (*s.Arrival.CV < 0.01 || *s.Arrival.CV > 10.4) {
			return fmt.Errorf("%s: weibull CV must be in [0.01, 10.4], got %f", prefix, *s.Arrival.CV)
		}
	}
	if !validDistTypes[s.Length.Type] {
		return fmt.Errorf("%s: unknown length distribution %q", prefix, s.Length.Type)
	}
	if _, err := NewLengthSampler(s.Length); err != nil {
		return fmt.Errorf("%s.length: %w", prefix, err)
	}
	if math.IsNaN(s.Start) || math.IsInf(s.Start, 0) || s.Start < 0 {
		return fmt.Errorf("%s: start must be a finite non-negative number, got %f", prefix, s.Start)
	}
	if s.Count < 0 {
		return fmt.Errorf("%s: count must be non-negative, got %d", prefix, s.Count)
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}
