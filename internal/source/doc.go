// Package source feeds URLs into the pipeline.
//
// A Loader reads a line-oriented stream, turns each usable line into a
// data item keyed by its normalized URL and writes exactly one
// end-of-stream marker after the last line. The marker is written even when
// reading fails part way, so downstream stages always drain.
package source
