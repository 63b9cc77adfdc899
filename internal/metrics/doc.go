// Package metrics periodically writes a plain-text snapshot of a running
// pipeline to a file: memory in use, items submitted, the occupancy of every
// queue, per-stage counters, sink throughput and an estimate of how long
// 100K items would take at the current speed.
package metrics
