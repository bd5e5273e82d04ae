package workload

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// LengthSampler generates packet lengths in bytes.
type LengthSampler interface {
	// Sample returns a positive length (>= 1).
	Sample(rng *rand.Rand) int64
}

// GaussianSampler produces clamped Gaussian lengths.
type GaussianSampler struct {
	mean, stdDev float64
	min, max     int64
}

func (s *GaussianSampler) Sample(rng *rand.Rand) int64 {
	if s.min == s.max {
		return atLeastOne(s.min)
	}
	val := rng.NormFloat64()*s.stdDev + s.mean
	clamped := math.Min(float64(s.max), math.Max(float64(s.min), val))
	return atLeastOne(int64(math.Round(clamped)))
}

// ExponentialSampler produces exponentially-distributed lengths.
type ExponentialSampler struct {
	mean float64
}

func (s *ExponentialSampler) Sample(rng *rand.Rand) int64 {
	return atLeastOne(int64(math.Round(rng.ExpFloat64() * s.mean)))
}

// UniformSampler draws lengths uniformly from [min, max].
type UniformSampler struct {
	min, max int64
}

func (s *UniformSampler) Sample(rng *rand.Rand) int64 {
	if s.max <= s.min {
		return atLeastOne(s.min)
	}
	return atLeastOne(s.min + rng.Int63n(s.max-s.min+1))
}

// EmpiricalPDFSampler samples from a discrete length distribution using
// inverse CDF via binary search. A classic use is an IMIX frame mix.
type EmpiricalPDFSampler struct {
	values []int64   // sorted lengths
	cdf    []float64 // cumulative probabilities, same length as values
}

// NewEmpiricalPDFSampler creates a sampler from a PDF map (length → probability).
// Probabilities are normalized if they don't sum to 1.0.
func NewEmpiricalPDFSampler(pdf map[int64]float64) *EmpiricalPDFSampler {
	keys := make([]int64, 0, len(pdf))
	for k := range pdf {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	totalProb := 0.0
	for _, k := range keys {
		if pdf[k] > 0 {
			totalProb += pdf[k]
		}
	}

	values := make([]int64, 0, len(keys))
	cdf := make([]float64, 0, len(keys))
	cumulative := 0.0
	for _, k := range keys {
		p := pdf[k]
		if p <= 0 {
			continue
		}
		cumulative += p / totalProb
		values = append(values, k)
		cdf = append(cdf, cumulative)
	}
	if len(cdf) > 0 {
		cdf[len(cdf)-1] = 1.0
	}

	return &EmpiricalPDFSampler{values: values, cdf: cdf}
}

func (s *EmpiricalPDFSampler) Sample(rng *rand.Rand) int64 {
	if len(s.values) == 0 {
		return 1
	}
	if len(s.values) == 1 {
		return atLeastOne(s.values[0])
	}
	idx := sort.SearchFloat64s(s.cdf, rng.Float64())
	if idx >= len(s.values) {
		idx = len(s.values) - 1
	}
	return atLeastOne(s.values[idx])
}

// FixedLengthSampler always returns the same length.
type FixedLengthSampler struct {
	value int64
}

func (s *FixedLengthSampler) Sample(_ *rand.Rand) int64 { return atLeastOne(s.value) }

func atLeastOne(n int64) int64 {
	if n < 1 {
		return 1
	}
	return n
}

// requireParam checks that all required keys exist in a params map.
func requireParam(params map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("distribution requires parameter %q", k)
		}
	}
	return nil
}

// imixPDF is the simple IMIX: 7 x 64 B, 4 x 594 B, 1 x 1518 B.
var imixPDF = map[int64]float64{64: 7, 594: 4, 1518: 1}

// NewLengthSampler creates a LengthSampler from a DistSpec.
func NewLengthSampler(spec DistSpec) (LengthSampler, error) {
	switch spec.Type {
	case "gaussian":
		if err := requireParam(spec.Params, "mean", "std_dev", "min", "max"); err != nil {
			return nil, err
		}
		return &GaussianSampler{
			mean:   spec.Params["mean"],
			stdDev: spec.Params["std_dev"],
			min:    int64(spec.Params["min"]),
			max:    int64(spec.Params["max"]),
		}, nil

	case "exponential":
		if err := requireParam(spec.Params, "mean"); err != nil {
			return nil, err
		}
		return &ExponentialSampler{mean: spec.Params["mean"]}, nil

	case "uniform":
		if err := requireParam(spec.Params, "min", "max"); err != nil {
			return nil, err
		}
		return &UniformSampler{min: int64(spec.Params["min"]), max: int64(spec.Params["max"])}, nil

	case "constant":
		if err := requireParam(spec.Params, "value"); err != nil {
			return nil, err
		}
		return &FixedLengthSampler{value: int64(spec.Params["value"])}, nil

	case "imix":
		return NewEmpiricalPDFSampler(imixPDF), nil

	case "empirical":
		// Params are used as a PDF (length → probability).
		pdf := make(map[int64]float64, len(spec.Params))
		for k, v := range spec.Params {
			var length int64
			if _, err := fmt.Sscanf(k, "%d", &length); err != nil {
				return nil, fmt.Errorf("empirical PDF key %q is not an integer: %w", k, err)
			}
			pdf[length] = v
		}
		if len(pdf) == 0 {
			return nil, fmt.Errorf("empirical distribution has no valid bins")
		}
		return NewEmpiricalPDFSampler(pdf), nil

	default:
		return nil, fmt.Errorf("unknown distribution type %q", spec.Type)
	}
}
