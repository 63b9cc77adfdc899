package config

import "time"

// File represents the complete YAML configuration file structure.
//
// Every field is optional. Zero values leave the built-in default in place,
// so a file only needs to mention what it changes.
//
// Example .scavenger8 file:
//
//	pipeline:
//	  fetchWorkers: 120
//	  urlQueue: 2000
//	  drainTimeout: 5m
//	fetch:
//	  timeout: 10s
//	  rateLimit: 50
//	technologies:
//	  - name: Hotjar
//	    pattern: 'static\.hotjar\.com'
type File struct {
	// Pipeline sizes the stages and queues.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Fetch configures the HTTP client.
	Fetch FetchConfig `yaml:"fetch"`

	// Metrics configures the periodic metrics report.
	Metrics MetricsConfig `yaml:"metrics"`

	// Database configures persistence.
	Database DatabaseConfig `yaml:"database"`

	// Technologies are extra signatures matched against every page.
	Technologies []TechnologyConfig `yaml:"technologies"`
}

// PipelineConfig holds the pool and queue sizes of the pipeline.
type PipelineConfig struct {
	FetchWorkers int           `yaml:"fetchWorkers"`
	MatchWorkers int           `yaml:"matchWorkers"`
	URLQueue     int           `yaml:"urlQueue"`
	PageQueue    int           `yaml:"pageQueue"`
	ResultQueue  int           `yaml:"resultQueue"`
	DrainTimeout time.Duration `yaml:"drainTimeout"`
}

// FetchConfig holds HTTP client settings.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"userAgent"`
	Proxy       string        `yaml:"proxy"`
	RateLimit   float64       `yaml:"rateLimit"`
	MaxBodySize int64         `yaml:"maxBodySize"`
}

// MetricsConfig holds metrics report settings.
type MetricsConfig struct {
	File     string        `yaml:"file"`
	Interval time.Duration `yaml:"interval"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	// Disabled turns persistence off. The zero value keeps it on.
	Disabled bool   `yaml:"disabled"`
	Dir      string `yaml:"dir"`
}

// TechnologyConfig is a named regular expression searched for in page bodies.
type TechnologyConfig struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// Apply copies every non-zero value of f onto cfg.
func (f *File) Apply(cfg *Config) {
	p := f.Pipeline
	setInt(&cfg.FetchWorkers, p.FetchWorkers)
	setInt(&cfg.MatchWorkers, p.MatchWorkers)
	setInt(&cfg.URLQueueCapacity, p.URLQueue)
	setInt(&cfg.PageQueueCapacity, p.PageQueue)
	setInt(&cfg.ResultQueueCapacity, p.ResultQueue)
	setDuration(&cfg.DrainTimeout, p.DrainTimeout)

	fc := f.Fetch
	setDuration(&cfg.FetchTimeout, fc.Timeout)
	if fc.UserAgent != "" {
		cfg.UserAgent = fc.UserAgent
	}
	if fc.Proxy != "" {
		cfg.ProxyAddress = fc.Proxy
	}
	if fc.RateLimit != 0 {
		cfg.RateLimit = fc.RateLimit
	}
	if fc.MaxBodySize != 0 {
		cfg.MaxBodySize = fc.MaxBodySize
	}

	if f.Metrics.File != "" {
		cfg.MetricsFile = f.Metrics.File
	}
	setDuration(&cfg.MetricsInterval, f.Metrics.Interval)

	if f.Database.Disabled {
		cfg.SaveToDB = false
	}
	if f.Database.Dir != "" {
		cfg.DBDir = f.Database.Dir
	}

	cfg.Technologies = append(cfg.Technologies, f.Technologies...)
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
