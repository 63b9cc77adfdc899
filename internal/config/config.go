package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "scavenger8"

	// DefaultFetchWorkers is the worker pool size of the fetch stage.
	// Fetching is I/O bound, so the pool is large.
	DefaultFetchWorkers = 80

	// DefaultMatchWorkers is the worker pool size of the technology matching stage.
	// Matching is CPU bound and cheap.
	DefaultMatchWorkers = 4

	// DefaultURLQueueCapacity bounds the queue between the URL loader and the fetch stage.
	DefaultURLQueueCapacity = 1000

	// DefaultPageQueueCapacity bounds the queue between the fetch and match stages.
	DefaultPageQueueCapacity = 500

	// DefaultResultQueueCapacity bounds the queue between the match stage and the sink.
	DefaultResultQueueCapacity = 500

	// DefaultDrainTimeout bounds how long a stage waits for in-flight work at end of stream.
	DefaultDrainTimeout = 10 * time.Minute

	// DefaultFetchTimeout is the read timeout of each HTTP request.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "scavenger8"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultMetricsFile is where the periodic metrics report is written.
	DefaultMetricsFile = "metrics.txt"

	// DefaultMetricsInterval is the period of the metrics report.
	DefaultMetricsInterval = 1 * time.Second

	// MinWorkers and MaxWorkers bound every stage pool.
	MinWorkers = 1
	MaxWorkers = 199
)

// Config holds all configuration options for a scavenger8 run.
// It is populated from defaults, then the configuration file, then CLI
// flags, and passed explicitly to every component that needs it.
type Config struct {
	// SourceFile is the line-oriented file of URLs to process.
	SourceFile string

	// FetchWorkers is the worker pool size of the fetch stage.
	FetchWorkers int

	// MatchWorkers is the worker pool size of the match stage.
	MatchWorkers int

	// URLQueueCapacity, PageQueueCapacity and ResultQueueCapacity bound the
	// three queues of the pipeline, in order.
	URLQueueCapacity    int
	PageQueueCapacity   int
	ResultQueueCapacity int

	// DrainTimeout bounds how long each stage waits for its workers once
	// the end-of-stream marker arrives.
	DrainTimeout time.Duration

	// FetchTimeout is the timeout of each HTTP request.
	FetchTimeout time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum number of body bytes read per page.
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// RateLimit caps requests per second across the fetch stage. 0 disables it.
	RateLimit float64

	// MetricsFile is overwritten with a plain-text metrics report every MetricsInterval.
	// Empty disables the report.
	MetricsFile string

	// MetricsInterval is the period of the metrics report.
	MetricsInterval time.Duration

	// ReportFile receives a Markdown summary when the run completes. Empty disables it.
	ReportFile string

	// JSONReport writes the ReportFile summary as JSON instead of Markdown.
	JSONReport bool

	// SaveToDB enables persisting runs and results to SQLite.
	SaveToDB bool

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/scavenger8 on Linux).
	DBDir string

	// ConfigFilePath is the explicit configuration file path, if any.
	ConfigFilePath string

	// Technologies are extra technology signatures added to the built-in set.
	Technologies []TechnologyConfig

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		FetchWorkers:        DefaultFetchWorkers,
		MatchWorkers:        DefaultMatchWorkers,
		URLQueueCapacity:    DefaultURLQueueCapacity,
		PageQueueCapacity:   DefaultPageQueueCapacity,
		ResultQueueCapacity: DefaultResultQueueCapacity,
		DrainTimeout:        DefaultDrainTimeout,
		FetchTimeout:        DefaultFetchTimeout,
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		MetricsFile:         DefaultMetricsFile,
		MetricsInterval:     DefaultMetricsInterval,
		SaveToDB:            true,
		DBDir:               XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for scavenger8.
// On Linux: ~/.local/share/scavenger8
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for scavenger8.
// On Linux: ~/.config/scavenger8
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.SourceFile == "" {
		return ErrNoSourceFile
	}

	if c.FetchWorkers < MinWorkers || c.FetchWorkers > MaxWorkers ||
		c.MatchWorkers < MinWorkers || c.MatchWorkers > MaxWorkers {
		return ErrInvalidWorkers
	}

	if c.URLQueueCapacity < 1 || c.PageQueueCapacity < 1 || c.ResultQueueCapacity < 1 {
		return ErrInvalidQueueCapacity
	}

	if c.DrainTimeout <= 0 {
		return ErrInvalidDrainTimeout
	}

	if c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.MetricsFile != "" && c.MetricsInterval <= 0 {
		return ErrInvalidMetricsInterval
	}

	if c.SaveToDB && c.DBDir == "" {
		return ErrNoDBDir
	}

	for _, tech := range c.Technologies {
		if tech.Name == "" || tech.Pattern == "" {
			return ErrInvalidTechnology
		}
	}

	return nil
}
