package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelStreams})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalStreams != 0 || summary.DeliveredPackets != 0 {
		t.Errorf("expected zero counts, got %+v", summary)
	}
	if summary.MeanLatency != 0 || summary.MaxLatency != 0 {
		t.Error("expected 0 latency values")
	}
	if len(summary.StreamDistribution) != 0 {
		t.Error("expected empty stream distribution")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary == nil || summary.StreamDistribution == nil {
		t.Fatal("expected non-nil summary with initialized map")
	}
}

func TestSummarize_StreamRecords_CountedByKind(t *testing.T) {
	// GIVEN a trace with a preempted stream, a complete stream and an underrun
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelStreams})
	st.RecordStream(StreamRecord{Streamer: "bulk", Kind: "started"})
	st.RecordStream(StreamRecord{Streamer: "bulk", Kind: "fragment", Length: 64})
	st.RecordStream(StreamRecord{Streamer: "bulk", Kind: "started"})
	st.RecordStream(StreamRecord{Streamer: "bulk", Kind: "ended"})
	st.RecordStream(StreamRecord{Streamer: "relay", Kind: "started"})
	st.RecordStream(StreamRecord{Streamer: "relay", Kind: "underrun"})
	st.RecordStream(StreamRecord{Streamer: "relay", Kind: "aborted", Reason: "buffer-underrun"})

	// WHEN summarized
	summary := Summarize(st)

	// THEN each kind is counted and starts are attributed per streamer
	if summary.TotalStreams != 3 {
		t.Errorf("expected 3 streams, got %d", summary.TotalStreams)
	}
	if summary.Fragments != 1 || summary.CompletedStreams != 1 {
		t.Errorf("expected 1 fragment and 1 completion, got %d and %d", summary.Fragments, summary.CompletedStreams)
	}
	if summary.AbortedStreams != 1 || summary.Underruns != 1 {
		t.Errorf("expected 1 abort and 1 underrun, got %d and %d", summary.AbortedStreams, summary.Underruns)
	}
	if summary.StreamDistribution["bulk"] != 2 || summary.StreamDistribution["relay"] != 1 {
		t.Errorf("unexpected distribution %v", summary.StreamDistribution)
	}
}

func TestSummarize_Deliveries_LatencyStatistics(t *testing.T) {
	// GIVEN deliveries with known latencies
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDeliveries})
	st.RecordDelivery(DeliveryRecord{Packet: "a", Latency: 100})
	st.RecordDelivery(DeliveryRecord{Packet: "b", Latency: 300, Express: true})
	st.RecordDelivery(DeliveryRecord{Packet: "c", Latency: 200, BitError: true})

	// WHEN summarized
	summary := Summarize(st)

	// THEN mean and max latency and the flags are computed
	if summary.DeliveredPackets != 3 {
		t.Errorf("expected 3 deliveries, got %d", summary.DeliveredPackets)
	}
	if summary.MeanLatency != 200 {
		t.Errorf("expected mean latency 200, got %v", summary.MeanLatency)
	}
	if summary.MaxLatency != 300 {
		t.Errorf("expected max latency 300, got %d", summary.MaxLatency)
	}
	if summary.P50Latency != 200 {
		t.Errorf("expected p50 latency 200, got %v", summary.P50Latency)
	}
	if summary.P99Latency < 297.9 || summary.P99Latency > 298.1 {
		t.Errorf("expected p99 latency 298, got %v", summary.P99Latency)
	}
	if summary.CorruptedPackets != 1 || summary.ExpressPackets != 1 {
		t.Errorf("expected 1 corrupted and 1 express, got %d and %d", summary.CorruptedPackets, summary.ExpressPackets)
	}
}
