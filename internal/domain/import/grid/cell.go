// Package grid holds the raw cell grid handed over by statement readers.
// A grid is a list of rows of tagged cells; nothing in it is interpreted yet.
package grid

import (
	"strconv"
	"strings"
	"time"
)

// Kind tags the variant stored in a Cell.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "empty"
	}
}

// Cell is a single spreadsheet value. The zero value is an empty cell.
type Cell struct {
	kind  Kind
	text  string
	num   float64
	year  int
	month time.Month
	day   int
}

// Empty returns an empty cell.
func Empty() Cell { return Cell{} }

// Text returns a text cell. An empty string yields an empty cell.
func Text(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{kind: KindText, text: s}
}

// Number returns a numeric cell.
func Number(f float64) Cell {
	return Cell{kind: KindNumber, num: f}
}

// DateCell returns a native date cell. Only the calendar day is kept.
func DateCell(year int, month time.Month, day int) Cell {
	return Cell{kind: KindDate, year: year, month: month, day: day}
}

func (c Cell) Kind() Kind { return c.kind }

// IsEmpty reports whether the cell carries no value, treating whitespace-only
// text as empty.
func (c Cell) IsEmpty() bool {
	return c.kind == KindEmpty || (c.kind == KindText && strings.TrimSpace(c.text) == "")
}

// TextValue returns the raw text of a text cell and "" otherwise.
func (c Cell) TextValue() string { return c.text }

// NumberValue returns the value of a numeric cell and 0 otherwise.
func (c Cell) NumberValue() float64 { return c.num }

// DateValue returns the calendar fields of a date cell.
func (c Cell) DateValue() (int, time.Month, int) { return c.year, c.month, c.day }

// String renders any cell kind as display text.
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindDate:
		return time.Date(c.year, c.month, c.day, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
	default:
		return ""
	}
}
