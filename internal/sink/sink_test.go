package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/donbonifacio/scavenger8/internal/model"
)

// TestSinkRun tests consuming items up to the marker.
func TestSinkRun(t *testing.T) {
	t.Parallel()

	t.Run("counts items and technologies until the marker", func(t *testing.T) {
		t.Parallel()

		var (
			mu       sync.Mutex
			recorded []string
		)
		s := New(WithRecorder(RecorderFunc(func(_ context.Context, item model.Item) error {
			mu.Lock()
			recorded = append(recorded, item.Key())
			mu.Unlock()
			return nil
		})))

		in := make(chan model.Item, 5)
		in <- model.NewItem("http://a.com").WithMatches([]string{"Segment.io", "Intercom.io"})
		in <- model.NewItem("http://b.com").WithMatches([]string{"Segment.io"})
		in <- model.NewItem("http://c.com")
		in <- model.EndOfStream()
		in <- model.NewItem("http://after.com")

		if err := s.Run(t.Context(), in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if s.ProcessedCount() != 3 {
			t.Errorf("expected 3 processed, got %d", s.ProcessedCount())
		}
		counts := s.TechnologyCounts()
		if counts["Segment.io"] != 2 || counts["Intercom.io"] != 1 {
			t.Errorf("unexpected technology counts: %v", counts)
		}
		if len(recorded) != 3 {
			t.Errorf("expected 3 recorded items, got %v", recorded)
		}
		if len(in) != 1 {
			t.Error("expected items after the marker to be left unread")
		}
		if !s.IsShutdown() {
			t.Error("expected sink to be shut down")
		}
	})

	t.Run("recorder failures do not stop the sink", func(t *testing.T) {
		t.Parallel()

		s := New(WithRecorder(RecorderFunc(func(context.Context, model.Item) error {
			return errors.New("database locked")
		})))

		in := make(chan model.Item, 3)
		in <- model.NewItem("http://a.com")
		in <- model.NewItem("http://b.com")
		in <- model.EndOfStream()

		if err := s.Run(t.Context(), in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.ProcessedCount() != 2 {
			t.Errorf("expected 2 processed, got %d", s.ProcessedCount())
		}
	})

	t.Run("returns on cancellation", func(t *testing.T) {
		t.Parallel()

		s := New()
		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		err := s.Run(ctx, make(chan model.Item))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if !s.IsShutdown() {
			t.Error("expected sink to be shut down")
		}
	})

	t.Run("technology counts are a copy", func(t *testing.T) {
		t.Parallel()

		s := New()
		in := make(chan model.Item, 2)
		in <- model.NewItem("http://a.com").WithMatches([]string{"X"})
		in <- model.EndOfStream()
		if err := s.Run(t.Context(), in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		counts := s.TechnologyCounts()
		counts["X"] = 100
		if s.TechnologyCounts()["X"] != 1 {
			t.Error("mutating the returned map changed the sink")
		}
	})
}
