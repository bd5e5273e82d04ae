// Package trace provides stream and delivery recording for post-run analysis.
// It stores pure data types and uses nothing from sim/ beyond its percentile helpers.
package trace

// StreamRecord captures one streamer transition.
type StreamRecord struct {
	Streamer string
	Clock    int64  // picoseconds
	Kind     string // started, ended, fragment, aborted, underrun
	Packet   string
	TreeID   int64
	Length   int64
	Reason   string // abort reason; empty otherwise
}

// DeliveryRecord captures one logical packet handed to the receiving side
// after reassembly.
type DeliveryRecord struct {
	Packet    string
	TreeID    int64
	Clock     int64 // picoseconds
	Length    int64
	Fragments int
	BitError  bool
	Express   bool
	Latency   int64 // picoseconds from creation to delivery
}
