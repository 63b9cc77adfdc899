package report

import (
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs summaries in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeStages(md, summary)
	w.writeTechnologies(md, summary)
	w.writeErrors(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *Summary) {
	md.H1("Scavenger8 Report")
	md.PlainText("")

	rows := [][]string{}
	if summary.RunID != "" {
		rows = append(rows, []string{"Run", "`" + summary.RunID + "`"})
	}
	rows = append(rows,
		[]string{"Source", "`" + summary.Source + "`"},
		[]string{"Started", summary.Started.Format("2006-01-02 15:04:05 MST")},
		[]string{"Elapsed", summary.Elapsed.Round(time.Millisecond).String()},
		[]string{"Submitted", humanize.Comma(summary.Submitted)},
		[]string{"Processed", humanize.Comma(summary.Processed)},
		[]string{"Dropped", humanize.Comma(summary.Dropped())},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.Succeeded() {
		md.Tip("Run completed without errors.")
	} else {
		md.Warningf("Run finished with %d error(s).", len(summary.Errors))
	}
	md.PlainText("")
}

// writeStages writes one row per stage.
func (w *MarkdownWriter) writeStages(md *markdown.Markdown, summary *Summary) {
	if len(summary.Stages) == 0 {
		return
	}

	md.H2("Stages")
	md.PlainText("")

	rows := make([][]string, len(summary.Stages))
	for i, st := range summary.Stages {
		rows[i] = []string{
			st.Name,
			strconv.Itoa(st.Workers),
			strconv.FormatInt(st.Processed, 10),
			strconv.FormatInt(st.Dropped, 10),
			st.State,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Stage", "Workers", "Processed", "Dropped", "State"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeTechnologies writes the technology table and pie chart.
func (w *MarkdownWriter) writeTechnologies(md *markdown.Markdown, summary *Summary) {
	md.H2("Technologies")
	md.PlainText("")

	techs := summary.SortedTechnologies()
	if len(techs) == 0 {
		md.PlainText("No technologies detected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(techs))
	for i, tc := range techs {
		share := "-"
		if summary.Processed > 0 {
			share = strconv.FormatFloat(float64(tc.Count)*100/float64(summary.Processed), 'f', 1, 64) + "%"
		}
		rows[i] = []string{tc.Name, strconv.FormatInt(tc.Count, 10), share}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Technology", "Sites", "Share"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Technology Distribution"),
		piechart.WithShowData(true),
	)
	for _, tc := range techs {
		chart.LabelAndIntValue(tc.Name, uint64(tc.Count)) //nolint:gosec // counts are never negative
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeErrors lists the run errors.
func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, summary *Summary) {
	if summary.Succeeded() {
		return
	}
	md.H2("Errors")
	md.PlainText("")
	md.BulletList(summary.Errors...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [scavenger8](https://github.com/donbonifacio/scavenger8)*")
}
