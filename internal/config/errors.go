package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSourceFile is returned when no URL file is given.
	ErrNoSourceFile = errors.New("no source file specified: use --file")

	// ErrInvalidWorkers is returned when a stage pool size is outside [1, 199].
	ErrInvalidWorkers = errors.New("invalid number of workers: must be between 1 and 199")

	// ErrInvalidQueueCapacity is returned when a queue capacity is not positive.
	ErrInvalidQueueCapacity = errors.New("invalid queue capacity: must be positive")

	// ErrInvalidDrainTimeout is returned when the drain timeout is not positive.
	ErrInvalidDrainTimeout = errors.New("invalid drain timeout: must be positive")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid fetch timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	// Use 0 to disable rate limiting.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMetricsInterval is returned when metrics are enabled with a non-positive interval.
	ErrInvalidMetricsInterval = errors.New("invalid metrics interval: must be positive")

	// ErrNoDBDir is returned when persistence is enabled without a database directory.
	ErrNoDBDir = errors.New("database directory required when saving results")

	// ErrInvalidTechnology is returned when a configured technology lacks a name or pattern.
	ErrInvalidTechnology = errors.New("invalid technology: name and pattern are required")
)
