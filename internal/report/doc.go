// Package report renders batch summaries.
//
// Writers share the Writer interface so the CLI can pick one by flag:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: Markdown with a status pie chart, for sharing
//   - JSONWriter: structured JSON for other tools
package report
