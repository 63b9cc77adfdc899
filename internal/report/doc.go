// Package report renders the summary of a finished scavenger8 run.
//
// Three formats are provided:
//   - Simple: human-readable text for the terminal (default)
//   - Markdown: for sharing and documentation, built with nao1215/markdown
//   - JSON: for tool integration
package report
