package grid

// Grid is an ordered list of rows. Rows may have different lengths.
type Grid [][]Cell

// FromStrings builds a text grid, mapping "" to empty cells.
func FromStrings(rows [][]string) Grid {
	g := make(Grid, len(rows))
	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, v := range row {
			cells[j] = Text(v)
		}
		g[i] = cells
	}
	return g
}

// Cell returns the cell at (row, col), or an empty cell when out of range.
func (g Grid) Cell(row, col int) Cell {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return Empty()
	}
	return g[row][col]
}

// Strings renders a row as display text.
func Strings(row []Cell) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = c.String()
	}
	return out
}

// BlankRow reports whether every cell of the row is empty.
func BlankRow(row []Cell) bool {
	for _, c := range row {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}
