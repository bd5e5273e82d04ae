// Package metrics exports stream activity as Prometheus metrics.
//
// A Collector is a stream.Observer: attach it to one or more streamers and it
// counts starts, completions, fragments, aborts and underruns per streamer.
// Durations are simulated seconds, not wall-clock time. Each Collector owns
// its registry so several runs can coexist in one process.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/inference-sim/chunkstream/sim/stream"
)

// Collector gathers per-streamer metrics.
type Collector struct {
	registry *prometheus.Registry

	streamsStarted *prometheus.CounterVec
	streamsEnded   *prometheus.CounterVec
	bytesDelivered *prometheus.CounterVec
	aborts         *prometheus.CounterVec
	underruns      *prometheus.CounterVec
	streamDuration *prometheus.HistogramVec
	fragmentLength *prometheus.HistogramVec

	queueLength  *prometheus.GaugeVec
	queueDropped *prometheus.GaugeVec
}

// NewCollector creates a collector whose metric names are prefixed with
// namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	c := &Collector{registry: reg}

	c.streamsStarted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_started_total",
			Help:      "Total number of streams started",
		},
		[]string{"streamer"},
	)

	c.streamsEnded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_ended_total",
			Help:      "Total number of streams ended, by outcome",
		},
		[]string{"streamer", "outcome"}, // outcome: complete, fragment, aborted
	)

	c.bytesDelivered = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_bytes_total",
			Help:      "Total bytes delivered at stream ends, aborted streams included",
		},
		[]string{"streamer"},
	)

	c.aborts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aborts_total",
			Help:      "Total number of aborted streams, by reason",
		},
		[]string{"streamer", "reason"},
	)

	c.underruns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_underruns_total",
			Help:      "Total number of stream-through buffer underruns",
		},
		[]string{"streamer"},
	)

	c.streamDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Simulated time from stream start to end",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
		},
		[]string{"streamer"},
	)

	c.fragmentLength = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fragment_length_bytes",
			Help:      "Length of fragments cut by preemption",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 8),
		},
		[]string{"streamer"},
	)

	c.queueLength = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Packets waiting in a queue",
		},
		[]string{"queue"},
	)

	c.queueDropped = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_dropped_packets",
			Help:      "Packets dropped by a full queue",
		},
		[]string{"queue"},
	)

	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Observe implements stream.Observer.
func (c *Collector) Observe(ev stream.Event) {
	switch ev.Kind {
	case stream.EventStarted:
		c.streamsStarted.WithLabelValues(ev.Streamer).Inc()
	case stream.EventEnded:
		c.ended(ev, "complete")
	case stream.EventFragment:
		c.ended(ev, "fragment")
		c.fragmentLength.WithLabelValues(ev.Streamer).Observe(float64(ev.Length))
	case stream.EventAborted:
		c.ended(ev, "aborted")
		c.aborts.WithLabelValues(ev.Streamer, ev.Reason.String()).Inc()
	case stream.EventUnderrun:
		c.underruns.WithLabelValues(ev.Streamer).Inc()
	}
}

func (c *Collector) ended(ev stream.Event, outcome string) {
	c.streamsEnded.WithLabelValues(ev.Streamer, outcome).Inc()
	c.bytesDelivered.WithLabelValues(ev.Streamer).Add(float64(ev.Length))
	c.streamDuration.WithLabelValues(ev.Streamer).Observe(ev.Duration.Seconds())
}

// RecordQueue publishes a queue's current length and drop count.
func (c *Collector) RecordQueue(name string, length int, dropped int64) {
	c.queueLength.WithLabelValues(name).Set(float64(length))
	c.queueDropped.WithLabelValues(name).Set(float64(dropped))
}

// WriteText writes every metric in the Prometheus text exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
