package metrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/donbonifacio/scavenger8/internal/pipeline"
	"github.com/donbonifacio/scavenger8/internal/stage"
	"github.com/dustin/go-humanize"
)

// DefaultInterval is the period between two reports.
const DefaultInterval = time.Second

// etaItems is the workload the ETA line is computed for.
const etaItems = 100_000

// Submitter reports how many items entered the pipeline.
type Submitter interface {
	SubmittedCount() int64
}

// Consumer reports how many items left the pipeline.
type Consumer interface {
	ProcessedCount() int64
}

// Topology exposes the queues and stages of a pipeline.
type Topology interface {
	Queues() []pipeline.QueueInfo
	Stages() []*stage.Stage
}

// Sources are the components a Monitor reads from.
type Sources struct {
	Source   Submitter
	Pipeline Topology
	Sink     Consumer

	// Done is closed when the run is over. The monitor writes one last
	// report and returns.
	Done <-chan struct{}
}

// Snapshot is one observation of the pipeline.
type Snapshot struct {
	UsedMemory uint64
	Submitted  int64
	Queues     []pipeline.QueueInfo
	Stages     []StageSnapshot
	Processed  int64

	// Speed is the number of items the sink consumed per second since the
	// previous snapshot.
	Speed float64
}

// StageSnapshot holds the counters of one stage.
type StageSnapshot struct {
	Name string
	stage.Stats
}

// ETA returns how long etaItems items would take at the snapshot speed.
// It returns 0 when the speed is 0.
func (s Snapshot) ETA() time.Duration {
	if s.Speed <= 0 {
		return 0
	}
	return time.Duration(float64(etaItems) / s.Speed * float64(time.Second))
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger for the monitor.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithInterval sets the period between reports. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// Monitor writes a metrics report to a file at a fixed interval.
type Monitor struct {
	path     string
	sources  Sources
	interval time.Duration
	logger   *slog.Logger

	mu            sync.Mutex
	lastProcessed int64
	lastTime      time.Time
}

// NewMonitor creates a Monitor writing to path.
func NewMonitor(path string, sources Sources, opts ...Option) *Monitor {
	m := &Monitor{
		path:     path,
		sources:  sources,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("metrics", path)
	return m
}

// Run writes a report every interval until ctx is cancelled or Done is
// closed, then writes a final report. Write failures are logged and do not
// stop the loop.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("started dumping metrics", "interval", m.interval)

	m.mu.Lock()
	m.lastTime = time.Now()
	m.mu.Unlock()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.write()
		case <-m.sources.Done:
			m.write()
			return
		case <-ctx.Done():
			m.write()
			return
		}
	}
}

func (m *Monitor) write() {
	var b strings.Builder
	Render(&b, m.Snapshot())
	if err := replaceFile(m.path, []byte(b.String())); err != nil {
		m.logger.Error("failed to write metrics", "error", err)
	}
}

// replaceFile writes data to a temporary file next to path and renames it
// over path, so readers see either the previous report or the new one.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // the write error is reported
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Snapshot observes the sources now. Speed is measured against the previous
// call.
func (m *Monitor) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Snapshot{UsedMemory: mem.HeapAlloc}
	if m.sources.Source != nil {
		s.Submitted = m.sources.Source.SubmittedCount()
	}
	if m.sources.Pipeline != nil {
		s.Queues = m.sources.Pipeline.Queues()
		for _, st := range m.sources.Pipeline.Stages() {
			s.Stages = append(s.Stages, StageSnapshot{Name: st.Name(), Stats: st.Stats()})
		}
	}
	if m.sources.Sink != nil {
		s.Processed = m.sources.Sink.ProcessedCount()
	}

	now := time.Now()
	m.mu.Lock()
	if elapsed := now.Sub(m.lastTime).Seconds(); !m.lastTime.IsZero() && elapsed > 0 {
		s.Speed = float64(s.Processed-m.lastProcessed) / elapsed
	}
	m.lastProcessed = s.Processed
	m.lastTime = now
	m.mu.Unlock()

	return s
}

// Render writes s as plain text.
func Render(w io.Writer, s Snapshot) {
	fmt.Fprintf(w, "Used memory: %s\n", humanize.Bytes(s.UsedMemory))
	fmt.Fprintf(w, "URLs submitted: %s\n\n", humanize.Comma(s.Submitted))

	for i, q := range s.Queues {
		fmt.Fprintf(w, "%s queue %d/%d\n\n", q.Name, q.Len, q.Cap)
		if i < len(s.Stages) {
			st := s.Stages[i]
			fmt.Fprintf(w, "%s current tasks %d\n", st.Name, st.InFlight)
			fmt.Fprintf(w, "%s processed tasks %d\n", st.Name, st.Processed)
			fmt.Fprintf(w, "%s dropped tasks %d\n\n", st.Name, st.Dropped)
		}
	}

	fmt.Fprintf(w, "Sink processed %s\n", humanize.Comma(s.Processed))
	fmt.Fprintf(w, "Speed: %.0f per second\n", s.Speed)
	fmt.Fprintf(w, "It will take %d minutes to process %s at this speed\n",
		int64(s.ETA().Minutes()), humanize.Comma(etaItems))
}
