// Package report renders registry data as terminal tables. Column widths
// are measured in display cells so Arabic and Latin text line up.
package report

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Table is a simple left-aligned text table.
type Table struct {
	headers []string
	rows    [][]string
	// MaxWidth truncates cells wider than this many cells. Zero disables it.
	MaxWidth int
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// Append adds a row. Missing cells render empty; extra cells are dropped.
func (t *Table) Append(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the header, a dashed separator and every row to w.
func (t *Table) Render(w io.Writer) error {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			row[i] = t.fit(cell)
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}

	sep := make([]string, len(t.headers))
	for i, wd := range widths {
		sep[i] = strings.Repeat("-", wd)
	}

	var b strings.Builder
	writeRow(&b, t.headers, widths)
	writeRow(&b, sep, widths)
	for _, row := range t.rows {
		writeRow(&b, row, widths)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (t *Table) fit(cell string) string {
	cell = strings.Join(strings.Fields(cell), " ")
	if t.MaxWidth > 0 && runewidth.StringWidth(cell) > t.MaxWidth {
		return runewidth.Truncate(cell, t.MaxWidth, "...")
	}
	return cell
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		if i == len(cells)-1 {
			b.WriteString(cell)
			continue
		}
		b.WriteString(runewidth.FillRight(cell, widths[i]))
	}
	b.WriteByte('\n')
}
