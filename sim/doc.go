// Package sim provides the discrete-event kernel that drives the packet
// streaming engine.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - units.go: simulation Time (picoseconds) and Datarate (bits per second),
//     plus the conversions between lengths, rates and durations
//   - event.go: the Event contract and the cancellable Timer event
//   - simulator.go: the deterministic event queue and the Run loop
//
// # Architecture
//
// The kernel knows nothing about packets. Sub-packages build on it:
//   - sim/chunk/: chunk model (leaf, slice and sequence chunks)
//   - sim/packet/: packet envelope, tags, fragments and reassembly
//   - sim/stream/: push/pull duality, Streamer with preemption, queues, servers
//   - sim/workload/: packet arrival and length generation
//   - sim/metrics/: prometheus collector for streamer events
//   - sim/trace/: stream trace recording
//   - sim/scenario/: YAML scenario loading and pipeline wiring
//
// Components never hold a *Simulator directly when a narrower contract will
// do; the streaming engine consumes only Now/ScheduleAt/Cancel.
package sim
