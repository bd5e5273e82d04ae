package workload

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/chunkstream/sim"
)

// ArrivalSampler generates inter-arrival gaps for a traffic source.
type ArrivalSampler interface {
	// SampleGap returns the time until the next packet arrives.
	// Always returns a positive value (>= 1 ps).
	SampleGap(rng *rand.Rand) sim.Time
}

// toGap converts a sample in seconds to a positive simulation time.
func toGap(seconds float64) sim.Time {
	gap := sim.FromSeconds(seconds)
	if gap < 1 {
		return 1
	}
	return gap
}

// PeriodicSampler emits packets at a fixed period (CV=0).
type PeriodicSampler struct {
	period sim.Time
}

func (s *PeriodicSampler) SampleGap(_ *rand.Rand) sim.Time { return s.period }

// PoissonSampler generates exponentially-distributed gaps (CV=1).
type PoissonSampler struct {
	rate float64 // packets per second
}

func (s *PoissonSampler) SampleGap(rng *rand.Rand) sim.Time {
	return toGap(rng.ExpFloat64() / s.rate)
}

// GammaSampler generates Gamma-distributed gaps. CV > 1 produces bursty
// traffic. Implemented using Marsaglia-Tsang's method for shape >= 1,
// with transformation for shape < 1.
type GammaSampler struct {
	shape float64 // 1/CV²
	scale float64 // CV²/rate in seconds
}

func (s *GammaSampler) SampleGap(rng *rand.Rand) sim.Time {
	return toGap(gammaRand(rng, s.shape, s.scale))
}

// gammaRand samples from Gamma(shape, scale) using Marsaglia-Tsang's method.
// For shape < 1: Gamma(shape) = Gamma(shape+1) * U^(1/shape).
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)

	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()

		// Squeeze test
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// WeibullSampler generates Weibull-distributed gaps.
type WeibullSampler struct {
	shape float64 // k
	scale float64 // λ in seconds
}

func (s *WeibullSampler) SampleGap(rng *rand.Rand) sim.Time {
	// Inverse CDF: scale * (-ln(U))^(1/shape)
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64
	}
	return toGap(s.scale * math.Pow(-math.Log(u), 1.0/s.shape))
}

// NewArrivalSampler creates an ArrivalSampler for a source emitting
// ratePerSecond packets per second on average.
func NewArrivalSampler(spec ArrivalSpec, ratePerSecond float64) ArrivalSampler {
	if ratePerSecond < 1e-12 {
		ratePerSecond = 1e-12
	}
	mean := 1.0 / ratePerSecond
	cv := 1.0
	if spec.CV != nil && *spec.CV > 0 {
		cv = *spec.CV
	}

	switch spec.Process {
	case "constant":
		return &PeriodicSampler{period: toGap(mean)}

	case "gamma":
		shape := 1.0 / (cv * cv)
		if shape < 0.01 {
			logrus.Warnf("Gamma shape %.4f (CV=%.1f) is very small; falling back to Poisson", shape, cv)
			return &PoissonSampler{rate: ratePerSecond}
		}
		return &GammaSampler{shape: shape, scale: mean * cv * cv}

	case "weibull":
		k := weibullShapeFromCV(cv)
		return &WeibullSampler{shape: k, scale: mean / math.Gamma(1.0+1.0/k)}

	default:
		return &PoissonSampler{rate: ratePerSecond}
	}
}

// weibullShapeFromCV finds Weibull shape parameter k such that
// CV² = Γ(1+2/k)/Γ(1+1/k)² - 1, using bisection over k ∈ [0.1, 100].
func weibullShapeFromCV(targetCV float64) float64 {
	lo, hi := 0.1, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2.0
		cv := weibullCV(mid)
		if math.Abs(cv-targetCV) < 0.001 {
			return mid
		}
		// CV is monotonically decreasing in k
		if cv > targetCV {
			lo = mid
		} else {
			hi = mid
		}
	}
	logrus.Warnf("weibullShapeFromCV: bisection did not converge for CV=%.3f; using k=%.3f", targetCV, (lo+hi)/2.0)
	return (lo + hi) / 2.0
}

func weibullCV(k float64) float64 {
	g1 := math.Gamma(1.0 + 1.0/k)
	g2 := math.Gamma(1.0 + 2.0/k)
	return math.Sqrt(g2/(g1*g1) - 1.0)
}
