package game

// Coord addresses one cell.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// LegalMoves lists every legal drop, scanning row by row from the top and
// left to right within a row. The order is the search's tie-break order.
func LegalMoves(g Grid) []Coord {
	moves := make([]Coord, 0, Columns)
	for r := 0; r < Rows; r++ {
		for c := 0; c < Columns; c++ {
			if IsLegalDrop(g, r, c) {
				moves = append(moves, Coord{Row: r, Col: c})
			}
		}
	}
	return moves
}

// Children returns the grids reachable by side playing one legal move, in
// LegalMoves order.
func Children(g Grid, side Cell) []Grid {
	moves := LegalMoves(g)
	out := make([]Grid, len(moves))
	for i, m := range moves {
		out[i], _ = ApplyMove(g, m.Row, m.Col, side, true)
	}
	return out
}
