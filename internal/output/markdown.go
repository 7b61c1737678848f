// Package output renders moderation reports for the terminal: markdown
// documents built section by section, then rendered through glamour when
// stdout is a terminal.
package output

import (
	"fmt"
	"strings"
)

// Doc accumulates a markdown document section by section.
type Doc struct {
	sections []string
}

func NewDoc() *Doc { return &Doc{} }

// H1 adds a top-level header.
func (d *Doc) H1(text string) *Doc {
	d.sections = append(d.sections, "# "+text)
	return d
}

// H2 adds a second-level header.
func (d *Doc) H2(text string) *Doc {
	d.sections = append(d.sections, "## "+text)
	return d
}

// Para adds a paragraph.
func (d *Doc) Para(text string) *Doc {
	d.sections = append(d.sections, text)
	return d
}

// List adds an unordered list.
func (d *Doc) List(items []string) *Doc {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	d.sections = append(d.sections, b.String())
	return d
}

// Table adds a markdown table with the given header and rows.
func (d *Doc) Table(headers []string, rows [][]string) *Doc {
	if len(rows) == 0 {
		return d
	}
	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(headers, " | "))
	b.WriteString(" |\n|")
	for range headers {
		b.WriteString("---|")
	}
	for _, row := range rows {
		b.WriteString("\n| ")
		b.WriteString(strings.Join(row, " | "))
		b.WriteString(" |")
	}
	d.sections = append(d.sections, b.String())
	return d
}

// Rule adds a horizontal rule.
func (d *Doc) Rule() *Doc {
	d.sections = append(d.sections, "---")
	return d
}

// String joins the sections into the final document.
func (d *Doc) String() string {
	return strings.Join(d.sections, "\n\n") + "\n"
}

// Code renders text as inline code.
func Code(text string) string { return "`" + text + "`" }

// Bold renders text bold.
func Bold(text string) string { return "**" + text + "**" }

// Truncate shortens text to at most n runes for table cells, appending an
// ellipsis when it cut anything.
func Truncate(text string, n int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return fmt.Sprintf("%s...", string(runes[:n]))
}
