package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/donbonifacio/scavenger8/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxLineSize is the longest line the loader accepts.
const maxLineSize = 1024 * 1024

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger for the loader.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// Loader streams URLs from a file or reader into a queue.
type Loader struct {
	name   string
	open   func() (io.ReadCloser, error)
	logger *slog.Logger

	mu        sync.Mutex
	submitted int64
	shutdown  bool
}

// NewFileLoader creates a loader reading from the file at path.
// The file is opened when Run is called.
func NewFileLoader(path string, opts ...Option) *Loader {
	return newLoader(path, func() (io.ReadCloser, error) {
		return os.Open(path) //nolint:gosec // User-provided URL file is intentional
	}, opts...)
}

// NewReaderLoader creates a loader reading from r. name identifies the
// stream in logs.
func NewReaderLoader(name string, r io.Reader, opts ...Option) *Loader {
	return newLoader(name, func() (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	}, opts...)
}

func newLoader(name string, open func() (io.ReadCloser, error), opts ...Option) *Loader {
	l := &Loader{
		name: name,
		open: open,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.logger = l.logger.With("source", name)
	return l
}

// Run reads every line, writes one item per URL to out and then the
// end-of-stream marker. It blocks while out is full.
//
// Open and read failures are returned after the marker has been written.
// If ctx is cancelled, Run returns ctx.Err() without writing the marker.
func (l *Loader) Run(ctx context.Context, out chan<- model.Item) error {
	defer l.markShutdown()

	l.logger.Info("loading urls")

	readErr := l.load(ctx, out)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if readErr != nil {
		l.logger.Error("error reading from the source", "error", readErr)
	}

	select {
	case out <- model.EndOfStream():
	case <-ctx.Done():
		return ctx.Err()
	}

	l.logger.Info("all urls loaded", "submitted", l.SubmittedCount())
	return readErr
}

func (l *Loader) load(ctx context.Context, out chan<- model.Item) error {
	rc, err := l.open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", l.name, err)
	}
	defer rc.Close()

	caser := cases.Lower(language.Und)
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		url, ok := normalize(caser, scanner.Text())
		if !ok {
			continue
		}

		l.logger.Debug("registering url", "url", url)
		select {
		case out <- model.NewItem(url):
			l.mu.Lock()
			l.submitted++
			l.mu.Unlock()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", l.name, err)
	}
	return nil
}

// Normalize turns a raw input line into a URL. It reports false for lines
// that carry no URL: blank lines and lines starting with '#'.
//
// The line is trimmed and lower-cased, and "http://" is prepended unless it
// already starts with "http://" or "https://".
func Normalize(line string) (string, bool) {
	return normalize(cases.Lower(language.Und), line)
}

func normalize(caser cases.Caser, line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", false
	}

	url := caser.String(line)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	return url, true
}

func (l *Loader) markShutdown() {
	l.mu.Lock()
	l.shutdown = true
	l.mu.Unlock()
}

// Name returns the name of the stream being read.
func (l *Loader) Name() string {
	return l.name
}

// SubmittedCount returns the number of items written so far, excluding the marker.
func (l *Loader) SubmittedCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submitted
}

// IsShutdown reports whether Run has returned.
func (l *Loader) IsShutdown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shutdown
}
