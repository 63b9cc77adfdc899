// Package stage implements the unit of concurrency of the scavenger8 pipeline:
// a single coordinator goroutine that reads items from a bounded input queue
// and hands them to at most N concurrent workers, each of which applies a
// TaskFunc and pushes the result to a bounded output queue.
//
// # Lifecycle
//
//	Idle -> Running -> Draining -> Shutdown
//	           \           \
//	            `-----------`--> Interrupted
//
// The stage enters Draining when it reads the end-of-stream marker. It waits
// for every dispatched worker to finish (bounded by the drain timeout),
// forwards the marker exactly once and enters Shutdown. Cancelling the context
// passed to Start moves the stage to Interrupted without forwarding the marker.
//
// # Backpressure
//
// The coordinator acquires a permit from a weighted semaphore before it takes
// the next item, so a saturated stage stops consuming its input queue. A
// worker returns its permit only after its result has been pushed downstream,
// which means a full output queue throttles the stage, and through its input
// queue every stage upstream of it.
//
// # Failures
//
// A TaskFunc error drops the item: it is logged, counted as dropped and never
// forwarded. Stages do not retry.
package stage
