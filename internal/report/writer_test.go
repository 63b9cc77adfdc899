package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// createTestSummary creates a summary with sample data for testing.
func createTestSummary() *Summary {
	return &Summary{
		RunID:     "0b5c2f3e-8a4d-4f6e-9c1a-2d3e4f5a6b7c",
		Source:    "sites.txt",
		Started:   time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Elapsed:   3*time.Second + 250*time.Millisecond,
		Submitted: 1200,
		Processed: 1000,
		Stages: []StageSummary{
			{Name: "BodyRequester", Workers: 80, State: "Shutdown", Processed: 1000, Dropped: 200},
			{Name: "TechnologyProcessor", Workers: 4, State: "Shutdown", Processed: 1000},
		},
		Technologies: map[string]int64{
			"Segment.io":         120,
			"Google Tag Manager": 300,
			"Intercom.io":        120,
		},
	}
}

// TestSummary tests the derived summary values.
func TestSummary(t *testing.T) {
	t.Parallel()

	t.Run("technologies sort by count then name", func(t *testing.T) {
		t.Parallel()

		got := createTestSummary().SortedTechnologies()
		want := []TechnologyCount{
			{"Google Tag Manager", 300},
			{"Intercom.io", 120},
			{"Segment.io", 120},
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d technologies, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("position %d: got %+v, want %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("dropped sums every stage", func(t *testing.T) {
		t.Parallel()

		if d := createTestSummary().Dropped(); d != 200 {
			t.Errorf("expected 200 dropped, got %d", d)
		}
	})

	t.Run("errors make the run unsuccessful", func(t *testing.T) {
		t.Parallel()

		s := createTestSummary()
		if !s.Succeeded() {
			t.Error("expected success without errors")
		}
		s.Errors = []string{"source: boom"}
		if s.Succeeded() {
			t.Error("expected failure with errors")
		}
	})
}

// TestSimpleWriter tests the human-readable summary writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header, stages and technologies", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestSummary())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}

		output := buf.String()
		for _, want := range []string{
			"SCAVENGER8 SUMMARY",
			"Source:     sites.txt",
			"Submitted:  1,200",
			"Elapsed:    3.25s",
			"BodyRequester",
			"[+] Google Tag Manager",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
		if strings.Contains(output, "ERRORS") {
			t.Error("expected no errors section")
		}
	})

	t.Run("writes errors and empty technologies", func(t *testing.T) {
		t.Parallel()

		s := createTestSummary()
		s.Technologies = nil
		s.Errors = []string{"stages: drain timed out"}

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "No technologies detected") {
			t.Error("expected empty technologies message")
		}
		if !strings.Contains(output, "[!] stages: drain timed out") {
			t.Error("expected error line")
		}
	})
}

// TestMarkdownWriter tests the Markdown summary writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and pie chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Scavenger8 Report",
			"## Stages",
			"## Technologies",
			"Google Tag Manager",
			"30.0%",
			"```mermaid",
			"Report generated by",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "## Errors") {
			t.Error("expected no errors section")
		}
	})

	t.Run("writes errors section", func(t *testing.T) {
		t.Parallel()

		s := createTestSummary()
		s.Errors = []string{"sink: interrupted"}

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "## Errors") || !strings.Contains(buf.String(), "sink: interrupted") {
			t.Error("expected errors section")
		}
	})
}

// TestJSONWriter tests the JSON summary writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact output decodes back", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded Summary
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Technologies["Google Tag Manager"] != 300 {
			t.Errorf("unexpected technologies %v", decoded.Technologies)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected single-line output")
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"source\": \"sites.txt\"") {
			t.Errorf("expected indented output, got:\n%s", buf.String())
		}
	})
}

// failingWriter always fails.
type failingWriter struct{}

func (failingWriter) Write(*Summary) (int, error) { return 0, errors.New("write failed") }

// TestMultiWriter tests writing to several destinations.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b))
		n, err := mw.Write(createTestSummary())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != a.Len()+b.Len() {
			t.Errorf("expected %d total bytes, got %d", a.Len()+b.Len(), n)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var b bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewJSONWriter(&b))
		if _, err := mw.Write(createTestSummary()); err == nil {
			t.Error("expected error")
		}
		if b.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}

// TestCreateFile tests report file creation.
func TestCreateFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "report.md")
	f, err := CreateFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = f.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}
}
