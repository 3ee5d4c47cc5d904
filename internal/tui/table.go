package tui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// TableColumn defines a column in a table.
type TableColumn struct {
	Name  string
	Width int
	Align Alignment
}

// Alignment defines text alignment in a column.
type Alignment int

// Alignment constants.
const (
	AlignLeft Alignment = iota
	AlignRight
)

// Table provides styled fixed-width table rendering.
type Table struct {
	w       io.Writer
	styles  *TableStyles
	columns []TableColumn
}

// NewTable creates a new table with the given columns.
func NewTable(w io.Writer, columns []TableColumn) *Table {
	return &Table{
		w:       w,
		styles:  NewTableStyles(),
		columns: columns,
	}
}

// WriteHeader writes the table header row.
func (t *Table) WriteHeader() {
	cells := make([]string, len(t.columns))
	for i, col := range t.columns {
		cells[i] = pad(col.Name, col.Width, col.Align)
	}
	_, _ = fmt.Fprintln(t.w, t.styles.Header.Render(strings.Join(cells, " ")))
}

// WriteRow writes a data row. Values longer than their column are truncated.
func (t *Table) WriteRow(values ...string) {
	t.WriteStyledRow(values, -1, "", "")
}

// WriteStyledRow writes a data row whose cell at styledIndex is replaced by
// styledValue. plainValue is the unstyled text and sets the cell's width.
func (t *Table) WriteStyledRow(values []string, styledIndex int, styledValue, plainValue string) {
	cells := make([]string, len(t.columns))
	for i, col := range t.columns {
		if i == styledIndex {
			padded := pad(plainValue, col.Width, col.Align)
			cells[i] = strings.Replace(padded, plainValue, styledValue, 1)
			continue
		}
		value := ""
		if i < len(values) {
			value = values[i]
		}
		cells[i] = pad(truncate(value, col.Width), col.Width, col.Align)
	}
	_, _ = fmt.Fprintln(t.w, strings.TrimRight(strings.Join(cells, " "), " "))
}

func truncate(s string, width int) string {
	if width <= 1 || utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}

func pad(s string, width int, align Alignment) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	fill := strings.Repeat(" ", width-n)
	if align == AlignRight {
		return fill + s
	}
	return s + fill
}
