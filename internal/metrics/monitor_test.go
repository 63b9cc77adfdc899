package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/donbonifacio/scavenger8/internal/model"
	"github.com/donbonifacio/scavenger8/internal/pipeline"
	"github.com/donbonifacio/scavenger8/internal/stage"
)

type fakeCounter int64

func (c fakeCounter) SubmittedCount() int64 { return int64(c) }
func (c fakeCounter) ProcessedCount() int64 { return int64(c) }

// TestRender tests the plain-text report layout.
func TestRender(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		UsedMemory: 3 * 1000 * 1000,
		Submitted:  12345,
		Queues: []pipeline.QueueInfo{
			{Name: "URLs", Len: 3, Cap: 1000},
			{Name: "Pages", Len: 0, Cap: 500},
		},
		Stages: []StageSnapshot{
			{Name: "BodyRequester", Stats: stage.Stats{InFlight: 2, Processed: 10, Dropped: 1, Dispatched: 13}},
		},
		Processed: 10,
		Speed:     50,
	}

	var b strings.Builder
	Render(&b, snap)
	out := b.String()

	for _, want := range []string{
		"Used memory: 3.0 MB",
		"URLs submitted: 12,345",
		"URLs queue 3/1000",
		"BodyRequester current tasks 2",
		"BodyRequester processed tasks 10",
		"BodyRequester dropped tasks 1",
		"Pages queue 0/500",
		"Sink processed 10",
		"Speed: 50 per second",
		"It will take 33 minutes to process 100,000 at this speed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

// TestSnapshotETA tests the 100K estimate.
func TestSnapshotETA(t *testing.T) {
	t.Parallel()

	if eta := (Snapshot{}).ETA(); eta != 0 {
		t.Errorf("expected 0 ETA at zero speed, got %v", eta)
	}
	if eta := (Snapshot{Speed: 1000}).ETA(); eta != 100*time.Second {
		t.Errorf("expected 100s at 1000/s, got %v", eta)
	}
}

// TestMonitorRun tests that the monitor writes a final report when the run ends.
func TestMonitorRun(t *testing.T) {
	t.Parallel()

	p, err := pipeline.New(pipeline.Spec{
		InputCapacity: 4,
		InputName:     "URLs",
		Stages: []pipeline.StageSpec{{
			Name: "Echo", Workers: 1, OutputCapacity: 4,
			Task: func(_ context.Context, item model.Item) (model.Item, error) { return item, nil },
		}},
	})
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}

	path := filepath.Join(t.TempDir(), "metrics.txt")
	done := make(chan struct{})
	m := NewMonitor(path, Sources{
		Source:   fakeCounter(7),
		Pipeline: p,
		Sink:     fakeCounter(5),
		Done:     done,
	}, WithInterval(10*time.Millisecond))

	finished := make(chan struct{})
	go func() {
		m.Run(t.Context())
		close(finished)
	}()

	time.Sleep(30 * time.Millisecond)
	close(done)

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop after Done was closed")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read metrics file: %v", err)
	}
	out := string(data)
	for _, want := range []string{"URLs submitted: 7", "URLs queue 0/4", "Echo current tasks 0", "Sink processed 5"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

// TestReplaceFile tests that reports replace the previous file whole and
// leave no temporary files behind.
func TestReplaceFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.txt")

	if err := os.WriteFile(path, []byte("old report, longer than the new one\n"), 0600); err != nil {
		t.Fatalf("failed to seed metrics file: %v", err)
	}
	if err := replaceFile(path, []byte("new report\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read metrics file: %v", err)
	}
	if string(data) != "new report\n" {
		t.Errorf("expected new report only, got %q", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat metrics file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the metrics file, got %d entries", len(entries))
	}
}

// TestMonitorWriteFailure tests that write failures do not stop the monitor.
func TestMonitorWriteFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing-dir", "metrics.txt")
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()

	m := NewMonitor(path, Sources{}, WithInterval(5*time.Millisecond))
	m.Run(ctx)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no metrics file, got %v", err)
	}
}
