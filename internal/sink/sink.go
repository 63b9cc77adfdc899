package sink

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/donbonifacio/scavenger8/internal/model"
)

// Recorder persists or forwards one finished item.
type Recorder interface {
	Record(ctx context.Context, item model.Item) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, item model.Item) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, item model.Item) error {
	return f(ctx, item)
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger for the sink.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

// WithRecorder adds a recorder called for every data item.
func WithRecorder(r Recorder) Option {
	return func(s *Sink) {
		s.recorders = append(s.recorders, r)
	}
}

// Sink logs every result and keeps running totals.
type Sink struct {
	logger    *slog.Logger
	recorders []Recorder

	mu           sync.Mutex
	processed    int64
	technologies map[string]int64
	shutdown     bool
}

// New creates a new Sink.
func New(opts ...Option) *Sink {
	s := &Sink{
		technologies: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run consumes in until the end-of-stream marker and returns nil, or until
// ctx is cancelled and returns ctx.Err().
//
// Recorder failures are logged and do not stop the sink.
func (s *Sink) Run(ctx context.Context, in <-chan model.Item) error {
	defer s.markShutdown()

	for {
		select {
		case item, ok := <-in:
			if !ok {
				s.logger.Warn("input queue closed without end-of-stream marker")
				return nil
			}
			s.logger.Info("Result", "item", item.String())
			if item.IsEndOfStream() {
				return nil
			}
			s.consume(ctx, item)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Sink) consume(ctx context.Context, item model.Item) {
	s.mu.Lock()
	s.processed++
	for _, name := range item.Matches() {
		s.technologies[name]++
	}
	s.mu.Unlock()

	for _, r := range s.recorders {
		if err := r.Record(ctx, item); err != nil {
			s.logger.Error("failed to record result", "key", item.Key(), "error", err)
		}
	}
}

func (s *Sink) markShutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
}

// ProcessedCount returns the number of data items consumed.
func (s *Sink) ProcessedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

// TechnologyCounts returns how many consumed items matched each technology.
func (s *Sink) TechnologyCounts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.technologies)
}

// IsShutdown reports whether Run has returned.
func (s *Sink) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}
