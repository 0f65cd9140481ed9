package layer

// Resize changes the grid dimensions. Existing cells keep their positions,
// new cells are empty strings and cells outside the new bounds are dropped.
// Negative dimensions are treated as zero.
func (t *Table) Resize(rows, cols int) {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	grid := make([][]string, rows)
	for r := range grid {
		row := make([]string, cols)
		if r < len(t.Data) {
			copy(row, t.Data[r])
		}
		grid[r] = row
	}
	t.Rows = rows
	t.Cols = cols
	t.Data = grid
}

// fit makes Data match Rows and Cols after a field merge.
func (t *Table) fit() {
	if len(t.Data) == t.Rows && t.Rows >= 0 {
		ok := true
		for _, row := range t.Data {
			if len(row) != t.Cols {
				ok = false
				break
			}
		}
		if ok {
			return
		}
	}
	t.Resize(t.Rows, t.Cols)
}

// Cell returns the text at (row, col), or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Data) || col < 0 || col >= len(t.Data[row]) {
		return ""
	}
	return t.Data[row][col]
}

// SetCell writes one cell. It reports false when the cell is out of range.
func (t *Table) SetCell(row, col int, value string) bool {
	if row < 0 || row >= t.Rows || col < 0 || col >= t.Cols {
		return false
	}
	t.fit()
	t.Data[row][col] = value
	return true
}

func cloneGrid(grid [][]string) [][]string {
	if grid == nil {
		return nil
	}
	out := make([][]string, len(grid))
	for i, row := range grid {
		if row != nil {
			out[i] = append([]string(nil), row...)
		}
	}
	return out
}
