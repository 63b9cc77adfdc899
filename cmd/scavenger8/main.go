// Package main provides the entry point for the scavenger8 CLI.
//
// scavenger8 reads a list of URLs, downloads every page with a bounded pool
// of workers and reports which third-party technologies each page embeds.
//
// Usage:
//
//	scavenger8 --file urls.txt
//	scavenger8 -file urls.txt
//
// See --help for all available options.
package main

// main is the entry point for scavenger8.
func main() {
	Execute()
}
