package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// SimpleWriter outputs a human-readable text summary.
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer) *SimpleWriter {
	return &SimpleWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	sb.WriteString("                    SCAVENGER8 SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")

	if summary.RunID != "" {
		fmt.Fprintf(&sb, "Run:        %s\n", summary.RunID)
	}
	fmt.Fprintf(&sb, "Source:     %s\n", summary.Source)
	fmt.Fprintf(&sb, "Started:    %s\n", summary.Started.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Elapsed:    %s\n", summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&sb, "Submitted:  %s\n", humanize.Comma(summary.Submitted))
	fmt.Fprintf(&sb, "Processed:  %s\n", humanize.Comma(summary.Processed))
	fmt.Fprintf(&sb, "Dropped:    %s\n\n", humanize.Comma(summary.Dropped()))

	if len(summary.Stages) > 0 {
		sb.WriteString(section("STAGES"))
		for _, st := range summary.Stages {
			fmt.Fprintf(&sb, "  %-20s workers=%-4d processed=%-8d dropped=%-8d %s\n",
				st.Name, st.Workers, st.Processed, st.Dropped, st.State)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(section("TECHNOLOGIES"))
	techs := summary.SortedTechnologies()
	if len(techs) == 0 {
		sb.WriteString("  No technologies detected\n")
	}
	for _, tc := range techs {
		fmt.Fprintf(&sb, "  [+] %-24s %d\n", tc.Name, tc.Count)
	}
	sb.WriteString("\n")

	if !summary.Succeeded() {
		sb.WriteString(section("ERRORS"))
		for _, e := range summary.Errors {
			fmt.Fprintf(&sb, "  [!] %s\n", e)
		}
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

func section(title string) string {
	line := strings.Repeat("-", 60)
	return line + "\n" + title + "\n" + line + "\n\n"
}
