// Package model defines the unit of work that flows through the scavenger8 pipeline.
//
// An Item is either a data item (a URL plus whatever the stages have derived
// from it so far) or the end-of-stream marker. Items are values: every
// transformation returns a new Item and leaves the receiver untouched, so an
// item taken off a queue can be handed to a worker without further copying.
//
// The end-of-stream marker is identified by its kind, not by comparing keys or
// pointers:
//
//	item := <-queue
//	if item.IsEndOfStream() {
//	    // drain and forward
//	}
package model
