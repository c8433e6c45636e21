package game

// line is an ordered list of cells to scan.
type line []Coord

var diagonals = enumerateDiagonals(Rows, Columns)

// enumerateDiagonals lists every diagonal of at least InARow cells in both
// orientations. Forward diagonals run down-right from the top row or the
// left column; reverse diagonals run down-left from the top row or the right
// column.
func enumerateDiagonals(rows, cols int) []line {
	var out []line
	walk := func(r, c, dc int) {
		var l line
		for r < rows && c >= 0 && c < cols {
			l = append(l, Coord{Row: r, Col: c})
			r++
			c += dc
		}
		if len(l) >= InARow {
			out = append(out, l)
		}
	}
	for r := rows - 1; r > 0; r-- {
		walk(r, 0, 1)
	}
	for c := 0; c < cols; c++ {
		walk(0, c, 1)
	}
	for r := rows - 1; r > 0; r-- {
		walk(r, cols-1, -1)
	}
	for c := cols - 1; c >= 0; c-- {
		walk(0, c, -1)
	}
	return out
}

// ScanLine returns the side owning the first run of InARow equal pieces in
// seq, or Empty.
func ScanLine(seq []Cell) Cell {
	streak := 0
	for i, v := range seq {
		switch {
		case v == Empty:
			streak = 0
		case i > 0 && v == seq[i-1]:
			streak++
		default:
			streak = 1
		}
		if streak == InARow {
			return v
		}
	}
	return Empty
}

// CheckWin returns the side that has four in a row anywhere on g, or Empty.
// Rows are scanned first, then columns, then diagonals.
func CheckWin(g Grid) Cell {
	for r := 0; r < Rows; r++ {
		if w := ScanLine(g[r][:]); w != Empty {
			return w
		}
	}
	var col [Rows]Cell
	for c := 0; c < Columns; c++ {
		for r := 0; r < Rows; r++ {
			col[r] = g[r][c]
		}
		if w := ScanLine(col[:]); w != Empty {
			return w
		}
	}
	var buf [Rows + Columns]Cell
	for _, l := range diagonals {
		seq := buf[:len(l)]
		for i, p := range l {
			seq[i] = g[p.Row][p.Col]
		}
		if w := ScanLine(seq); w != Empty {
			return w
		}
	}
	return Empty
}
