package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/echo-ingest/internal/domain/import/grid"
)

// Date is a calendar day with no time or zone. The zero value is InvalidDate.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// InvalidDate marks a cell that could not be read as a date.
var InvalidDate = Date{}

// Spreadsheet serials outside this range are not treated as dates.
// 2958465 is 9999-12-31.
const (
	minSerial = 1
	maxSerial = 2958465
)

var (
	isoDatePattern = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})(?:[ T].*)?$`)
	dmyDatePattern = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{4}|\d{2})(?:[ T].*)?$`)
)

// NewDate validates the calendar fields and returns InvalidDate for
// impossible days such as 31/02.
func NewDate(year int, month time.Month, day int) Date {
	if year < 1 || year > 9999 {
		return InvalidDate
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return InvalidDate
	}
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) Valid() bool { return d != InvalidDate }

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String renders the canonical DD/MM/YYYY form, or "" when invalid.
func (d Date) String() string {
	if !d.Valid() {
		return ""
	}
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

// DateOrder resolves D/M/Y text where both leading parts are 12 or less.
type DateOrder int

const (
	DayFirst DateOrder = iota
	MonthFirst
)

// ParseDateOrder accepts "day_first"/"dmy" and "month_first"/"mdy".
func ParseDateOrder(s string) (DateOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "day_first", "dmy", "dd/mm/yyyy":
		return DayFirst, nil
	case "month_first", "mdy", "mm/dd/yyyy":
		return MonthFirst, nil
	}
	return DayFirst, fmt.Errorf("unknown date order %q", s)
}

// DateParser reads dates from cells. The zero value breaks ties day-first.
type DateParser struct {
	Ambiguous DateOrder
}

// ParseDate parses with the default day-first tie-break.
func ParseDate(c grid.Cell) Date {
	return DateParser{}.Parse(c)
}

// Parse tries, in order: native date cells, spreadsheet serials, ISO text and
// D/M/Y text. It never fails; unreadable input yields InvalidDate.
func (p DateParser) Parse(c grid.Cell) Date {
	switch c.Kind() {
	case grid.KindDate:
		return NewDate(c.DateValue())
	case grid.KindNumber:
		return fromSerial(c.NumberValue())
	case grid.KindText:
		return p.ParseString(c.TextValue())
	default:
		return InvalidDate
	}
}

// ParseString parses date text.
func (p DateParser) ParseString(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return InvalidDate
	}

	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		return NewDate(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]))
	}

	m := dmyDatePattern.FindStringSubmatch(s)
	if m == nil {
		return InvalidDate
	}
	first, second, year := atoi(m[1]), atoi(m[2]), expandYear(m[3])

	switch {
	case first > 12:
		return NewDate(year, time.Month(second), first)
	case second > 12:
		return NewDate(year, time.Month(first), second)
	case p.Ambiguous == MonthFirst:
		return NewDate(year, time.Month(first), second)
	default:
		return NewDate(year, time.Month(second), first)
	}
}

func fromSerial(serial float64) Date {
	if serial < minSerial || serial > maxSerial {
		return InvalidDate
	}
	// Serials below 61 precede the fictitious 29/02/1900 and count from 31/12/1899.
	if serial < 61 {
		return DateOf(time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(serial)))
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return InvalidDate
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// expandYear maps two-digit years onto 1970-2069.
func expandYear(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		if y < 70 {
			return 2000 + y
		}
		return 1900 + y
	}
	return y
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
