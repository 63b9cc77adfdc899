// Package sink provides the terminal consumer of the pipeline.
package sink
