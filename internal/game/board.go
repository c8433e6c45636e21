package game

import "strings"

const (
	Columns = 7
	Rows    = 6
	// InARow is the run length that wins.
	InARow = 4
)

// Cell is the content of one board square. A side is identified by the
// value of its pieces.
type Cell int8

const (
	Empty Cell = 0
	SideA Cell = 1
	SideB Cell = -1
)

// Opponent returns the other side.
func (c Cell) Opponent() Cell {
	return -c
}

// Grid is a board snapshot. Row 0 is the top, row Rows-1 the bottom.
// It is an array so every assignment is an independent copy.
type Grid [Rows][Columns]Cell

// Reset returns an empty grid.
func Reset() Grid {
	return Grid{}
}

// FillLevel counts the pieces in a column.
func FillLevel(g Grid, col int) int {
	n := 0
	for row := Rows - 1; row >= 0; row-- {
		if g[row][col] != Empty {
			n++
		}
	}
	return n
}

// IsLegalDrop reports whether row is the lowest empty cell of col.
func IsLegalDrop(g Grid, row, col int) bool {
	return row == Rows-1-FillLevel(g, col)
}

// ApplyMove returns a copy of g with (row, col) set to side. When enforce is
// set and the drop is not legal, g is returned unchanged with ok false.
// Without enforce the cell is written even if it floats above empty cells.
func ApplyMove(g Grid, row, col int, side Cell, enforce bool) (Grid, bool) {
	if enforce && !IsLegalDrop(g, row, col) {
		return g, false
	}
	g[row][col] = side
	return g, true
}

// Negate swaps the pieces of both sides.
func Negate(g Grid) Grid {
	for r := 0; r < Rows; r++ {
		for c := 0; c < Columns; c++ {
			g[r][c] = -g[r][c]
		}
	}
	return g
}

// LowestEmptyRow returns the row a piece dropped into col would land on,
// or -1 if the column is full.
func LowestEmptyRow(g Grid, col int) int {
	return Rows - 1 - FillLevel(g, col)
}

func (g Grid) String() string {
	var sb strings.Builder
	for r := 0; r < Rows; r++ {
		for c := 0; c < Columns; c++ {
			switch g[r][c] {
			case SideA:
				sb.WriteByte('X')
			case SideB:
				sb.WriteByte('O')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
