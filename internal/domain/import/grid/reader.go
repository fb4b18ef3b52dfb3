package grid

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoSheet           = errors.New("no suitable sheet found")
)

// maxDelimiterSampleLines bounds how many lines are inspected to pick a delimiter.
const maxDelimiterSampleLines = 20

var zipMagic = []byte("PK\x03\x04")

// ReadFile picks a reader from the file name, falling back to content sniffing.
func ReadFile(name string, data []byte) (Grid, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx":
		return ReadXLSX(bytes.NewReader(data))
	case ".csv", ".tsv", ".txt":
		return ReadCSV(bytes.NewReader(data))
	}
	if bytes.HasPrefix(data, zipMagic) {
		return ReadXLSX(bytes.NewReader(data))
	}
	if len(data) > 0 && utf8.Valid(data) {
		return ReadCSV(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// ReadCSV reads a delimited text export. The delimiter is sniffed, a UTF-8 BOM
// is dropped and non-UTF-8 input is decoded as Windows-1252.
func ReadCSV(r io.Reader) (Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data, err = normalizeCSVBytes(data)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = DetectDelimiter(string(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	g := make(Grid, len(records))
	for i, record := range records {
		cells := make([]Cell, len(record))
		for j, v := range record {
			cells[j] = Text(strings.TrimSpace(v))
		}
		g[i] = cells
	}
	return g, nil
}

// DetectDelimiter picks the candidate delimiter that splits the most of the
// first lines into the same number of fields. Delimiters inside quotes are not
// counted, so commas in a description or a decimal comma cannot outvote the
// semicolons of a European export. Ties keep candidate order; a comma is the
// default.
func DetectDelimiter(data string) rune {
	best, bestLines, bestFields := ',', 0, 0
	for _, d := range delimiterCandidates {
		lines, fields := delimiterConsistency(data, d)
		if lines > bestLines || (lines == bestLines && fields > bestFields) {
			best, bestLines, bestFields = d, lines, fields
		}
	}
	return best
}

var delimiterCandidates = []rune{';', '\t', ',', '|'}

// delimiterConsistency returns how many sampled lines share the most common
// non-zero count of d, and that count.
func delimiterConsistency(data string, d rune) (int, int) {
	counts := make(map[int]int)
	for i, line := range strings.Split(data, "\n") {
		if i >= maxDelimiterSampleLines {
			break
		}
		if n := countUnquoted(strings.TrimRight(line, "\r"), d); n > 0 {
			counts[n]++
		}
	}

	lines, fields := 0, 0
	for n, c := range counts {
		if c > lines || (c == lines && n > fields) {
			lines, fields = c, n
		}
	}
	return lines, fields
}

func countUnquoted(line string, d rune) int {
	count, quoted := 0, false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			count++
		}
	}
	return count
}

func normalizeCSVBytes(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode csv: %w", err)
	}
	return decoded, nil
}

// ReadXLSX reads the transaction sheet of a workbook. Numeric cells (dates
// included, as serials) become number cells; everything else is text.
func ReadXLSX(r io.Reader) (Grid, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := findTransactionSheet(f)
	if sheet == "" {
		return nil, ErrNoSheet
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	g := make(Grid, len(rows))
	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, v := range row {
			cells[j] = xlsxCell(f, sheet, i, j, v)
		}
		g[i] = cells
	}
	return g, nil
}

func xlsxCell(f *excelize.File, sheet string, row, col int, raw string) Cell {
	if strings.TrimSpace(raw) == "" {
		return Empty()
	}
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return Text(raw)
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return Text(raw)
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return Text(raw)
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return Number(v)
	}
	return Text(raw)
}

func findTransactionSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}

	preferredNames := []string{
		"transactions", "movimientos", "movimentos", "extrato",
		"statement", "data", "sheet1",
	}
	for _, preferred := range preferredNames {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}
	return sheets[0]
}
