package trace

// TraceLevel controls the verbosity of stream tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDeliveries captures packets delivered by the link.
	TraceLevelDeliveries TraceLevel = "deliveries"
	// TraceLevelStreams additionally captures every streamer transition.
	TraceLevelStreams TraceLevel = "streams"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:       true,
	TraceLevelDeliveries: true,
	TraceLevelStreams:    true,
	"":                   true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records during a simulation run.
type SimulationTrace struct {
	Config     TraceConfig
	Streams    []StreamRecord
	Deliveries []DeliveryRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Streams:    make([]StreamRecord, 0),
		Deliveries: make([]DeliveryRecord, 0),
	}
}

// RecordStream appends a stream record when the level includes streams.
func (st *SimulationTrace) RecordStream(record StreamRecord) {
	if st.Config.Level != TraceLevelStreams {
		return
	}
	st.Streams = append(st.Streams, record)
}

// RecordDelivery appends a delivery record unless tracing is disabled.
func (st *SimulationTrace) RecordDelivery(record DeliveryRecord) {
	if st.Config.Level == TraceLevelNone || st.Config.Level == "" {
		return
	}
	st.Deliveries = append(st.Deliveries, record)
}
