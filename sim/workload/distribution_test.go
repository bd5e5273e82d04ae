package workload

import (
	"math"
	"math/rand"
	"testing"
)

func TestGaussianSampler_MeanMatchesParam(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s, err := NewLengthSampler(DistSpec{
		Type:   "gaussian",
		Params: map[string]float64{"mean": 512, "std_dev": 128, "min": 64, "max": 1518},
	})
	if err != nil {
		t.Fatal(err)
	}
	n := 10000
	sum := int64(0)
	for i := 0; i < n; i++ {
		sum += s.Sample(rng)
	}
	mean := float64(sum) / float64(n)
	if math.Abs(mean-512)/512 > 0.05 {
		t.Errorf("gaussian mean = %.1f, want ≈ 512 (within 5%%)", mean)
	}
}

func TestGaussianSampler_ClampedToRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s, err := NewLengthSampler(DistSpec{
		Type:   "gaussian",
		Params: map[string]float64{"mean": 512, "std_dev": 1000, "min": 64, "max": 900},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10000; i++ {
		v := s.Sample(rng)
		if v < 64 || v > 900 {
			t.Errorf("sample %d: %d outside [64, 900]", i, v)
			break
		}
	}
}

func TestExponentialSampler_MeanMatchesParam(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s, err := NewLengthSampler(DistSpec{
		Type:   "exponential",
		Params: map[string]float64{"mean": 256},
	})
	if err != nil {
		t.Fatal(err)
	}
	n := 10000
	sum := int64(0)
	for i := 0; i < n; i++ {
		sum += s.Sample(rng)
	}
	mean := float64(sum) / float64(n)
	if math.Abs(mean-256)/256 > 0.05 {
		t.Errorf("exponential mean = %.1f, want ≈ 256 (within 5%%)", mean)
	}
}

func TestExponentialSampler_AlwaysPositive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s, err := NewLengthSampler(DistSpec{
		Type:   "exponential",
		Params: map[string]float64{"mean": 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10000; i++ {
		if v := s.Sample(rng); v < 1 {
			t.Errorf("sample %d: got %d, want >= 1", i, v)
			break
		}
	}
}

func TestUniformSampler_CoversInclusiveRange(t *testing.T) {
	// GIVEN a uniform length in [64, 67]
	rng := rand.New(rand.NewSource(42))
	s, err := NewLengthSampler(DistSpec{
		Type:   "uniform",
		Params: map[string]float64{"min": 64, "max": 67},
	})
	if err != nil {
		t.Fatal(err)
	}

	// WHEN 1000 samples are drawn
	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		v := s.Sample(rng)
		if v < 64 || v > 67 {
			t.Fatalf("sample %d: %d outside [64, 67]", i, v)
		}
		seen[v] = true
	}

	// THEN both ends of the range occur
	if len(seen) != 4 {
		t.Errorf("saw %d distinct lengths, want 4", len(seen))
	}
}

func TestIMIX_OnlyClassicFrameSizes(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s, err := NewLengthSampler(DistSpec{Type: "imix"})
	if err != nil {
		t.Fatal(err)
	}
	counts := make(map[int64]int)
	n := 12000
	for i := 0; i < n; i++ {
		counts[s.Sample(rng)]++
	}
	if len(counts) != 3 || counts[64] == 0 || counts[594] == 0 || counts[1518] == 0 {
		t.Fatalf("unexpected IMIX lengths: %v", counts)
	}
	// 7 of every 12 frames are 64 bytes
	if frac := float64(counts[64]) / float64(n); math.Abs(frac-7.0/12.0) > 0.03 {
		t.Errorf("P(64) = %.3f, want ≈ %.3f", frac, 7.0/12.0)
	}
}

func TestEmpiricalPDFSampler_ReproducesDistribution(t *testing.T) {
	// GIVEN a simple empirical PDF: {64: 0.5, 1500: 0.5}
	rng := rand.New(rand.NewSource(42))
	s := NewEmpiricalPDFSampler(map[int64]float64{64: 0.5, 1500: 0.5})

	// WHEN 10000 samples drawn
	n := 10000
	counts := make(map[int64]int)
	for i := 0; i < n; i++ {
		counts[s.Sample(rng)]++
	}

	// THEN each value appears ~50% of the time (within 5%)
	frac := float64(counts[64]) / float64(n)
	if math.Abs(frac-0.5) > 0.05 {
		t.Errorf("P(64) = %.3f, want ≈ 0.5", frac)
	}
}

func TestEmpiricalPDFSampler_SingleBin_AlwaysReturnsThatValue(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewEmpiricalPDFSampler(map[int64]float64{42: 1.0})
	for i := 0; i < 100; i++ {
		if v := s.Sample(rng); v != 42 {
			t.Errorf("sample %d: got %d, want 42", i, v)
		}
	}
}

func TestEmpiricalPDFSampler_NonNormalized_NormalizesAutomatically(t *testing.T) {
	// GIVEN probabilities that sum to 2.0 (not 1.0)
	rng := rand.New(rand.NewSource(42))
	s := NewEmpiricalPDFSampler(map[int64]float64{10: 1.0, 20: 1.0})
	counts := make(map[int64]int)
	n := 10000
	for i := 0; i < n; i++ {
		counts[s.Sample(rng)]++
	}
	frac := float64(counts[10]) / float64(n)
	if frac < 0.45 || frac > 0.55 {
		t.Errorf("P(10) = %.3f, want ≈ 0.5 (non-normalized input should auto-normalize)", frac)
	}
}

func TestNewLengthSampler_InlineEmpirical(t *testing.T) {
	s, err := NewLengthSampler(DistSpec{Type: "empirical", Params: map[string]float64{"128": 1}})
	if err != nil {
		t.Fatal(err)
	}
	if v := s.Sample(rand.New(rand.NewSource(1))); v != 128 {
		t.Errorf("sample = %d, want 128", v)
	}
}

func TestNewLengthSampler_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec DistSpec
	}{
		{"empty empirical", DistSpec{Type: "empirical"}},
		{"non-integer empirical key", DistSpec{Type: "empirical", Params: map[string]float64{"big": 1}}},
		{"missing constant value", DistSpec{Type: "constant"}},
		{"missing uniform max", DistSpec{Type: "uniform", Params: map[string]float64{"min": 1}}},
		{"unknown type", DistSpec{Type: "unknown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLengthSampler(tt.spec); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
