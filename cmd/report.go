package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/inference-sim/chunkstream/sim/scenario"
	"github.com/inference-sim/chunkstream/sim/trace"
)

// Report is the JSON document printed after a run.
type Report struct {
	EndTime        float64          `json:"end_time_s"`
	Events         int64            `json:"events"`
	WallTime       float64          `json:"wall_time_s"`
	Generated      map[string]int64 `json:"generated"`
	Delivered      int64            `json:"delivered_packets"`
	DeliveredBytes int64            `json:"delivered_bytes"`
	Corrupted      int64            `json:"corrupted_packets"`
	Fragments      int64            `json:"received_fragments"`
	Lost           int64            `json:"lost_packets"`
	Streams        int64            `json:"streams_started"`
	Aborted        int64            `json:"aborted_streams"`
	Underruns      int64            `json:"buffer_underruns"`
	Preemptions    int64            `json:"preemptions"`
	QueueDrops     int64            `json:"queue_drops"`
	Backlog        int              `json:"backlog"`
}

func newReport(res *scenario.Result, wall time.Duration) Report {
	return Report{
		EndTime:        res.EndTime.Seconds(),
		Events:         res.Events,
		WallTime:       wall.Seconds(),
		Generated:      res.Generated,
		Delivered:      res.Link.Delivered,
		DeliveredBytes: res.Link.DeliveredBytes,
		Corrupted:      res.Link.Corrupted,
		Fragments:      res.Link.Fragments,
		Lost:           res.Link.Lost,
		Streams:        res.Streamer.StartedStreams,
		Aborted:        res.Streamer.AbortedPackets,
		Underruns:      res.Streamer.BufferUnderruns,
		Preemptions:    res.Preemptions,
		QueueDrops:     res.QueueDrops,
		Backlog:        res.Backlog,
	}
}

// printResults writes the run report and, when asked, the trace summary.
func printResults(w io.Writer, res *scenario.Result, wall time.Duration, withSummary bool) error {
	if err := printJSON(w, "=== Simulation Metrics ===", newReport(res, wall)); err != nil {
		return err
	}
	if !withSummary {
		return nil
	}
	if res.Trace.Config.Level == trace.TraceLevelNone || res.Trace.Config.Level == "" {
		_, err := fmt.Fprintln(w, "Trace summary unavailable: tracing is disabled")
		return err
	}
	return printJSON(w, "=== Trace Summary ===", res.Summary())
}

func printJSON(w io.Writer, header string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n%s\n", header, data)
	return err
}
