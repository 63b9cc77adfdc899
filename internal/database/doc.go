// Package database provides SQLite-based storage for scavenger8 runs.
//
// Each run of the pipeline is stored with its source, timing and totals,
// and every page that reached the sink is stored as a result row holding
// the URL, body size, a SHA3-256 digest of the body and the detected
// technologies. Bodies themselves are not kept.
//
// The driver is modernc.org/sqlite, which is CGO-free. The database lives in
// a single file in the XDG data directory by default.
package database
