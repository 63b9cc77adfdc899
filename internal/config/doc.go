// Package config provides configuration structures and utilities for scavenger8.
// It defines pipeline sizing, fetch behaviour, metrics and persistence
// settings, loads the optional YAML configuration file and validates the
// result before a run starts.
package config
