package trace

import (
	"sort"

	"github.com/inference-sim/chunkstream/sim"
)

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalStreams       int
	CompletedStreams   int
	Fragments          int
	AbortedStreams     int
	Underruns          int
	DeliveredPackets   int
	CorruptedPackets   int
	ExpressPackets     int
	MeanLatency        float64        // picoseconds
	MaxLatency         int64          // picoseconds
	P50Latency         float64        // picoseconds
	P99Latency         float64        // picoseconds
	StreamDistribution map[string]int // streamer name → streams started
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		StreamDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	for _, s := range st.Streams {
		switch s.Kind {
		case "started":
			summary.TotalStreams++
			summary.StreamDistribution[s.Streamer]++
		case "ended":
			summary.CompletedStreams++
		case "fragment":
			summary.Fragments++
		case "aborted":
			summary.AbortedStreams++
		case "underrun":
			summary.Underruns++
		}
	}

	if len(st.Deliveries) > 0 {
		latencies := make([]int64, 0, len(st.Deliveries))
		for _, d := range st.Deliveries {
			summary.DeliveredPackets++
			if d.BitError {
				summary.CorruptedPackets++
			}
			if d.Express {
				summary.ExpressPackets++
			}
			latencies = append(latencies, d.Latency)
		}
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		summary.MeanLatency = sim.CalculateMean(latencies)
		summary.MaxLatency = latencies[len(latencies)-1]
		summary.P50Latency = sim.CalculatePercentile(latencies, 50)
		summary.P99Latency = sim.CalculatePercentile(latencies, 99)
	}

	return summary
}
