package game

import "time"

// Discount is applied once per ply so that quicker wins score higher and
// slower losses score less badly.
const Discount = 0.9

// Stats describes the cost of one search.
type Stats struct {
	Nodes   int           `json:"nodes"`
	Leaves  int           `json:"leaves"`
	Depth   int           `json:"depth"`
	Elapsed time.Duration `json:"elapsed"`
}

// Searcher runs plain minimax to a fixed depth. Every node of the tree is
// visited; nothing is pruned or cached. A Searcher is not safe for
// concurrent use, but separate Searchers share nothing.
type Searcher struct {
	Stats Stats
}

// EvaluatePosition returns the minimax value of g with side to move.
// SideA maximises, SideB minimises.
func EvaluatePosition(g Grid, side Cell, depth, limit int) float64 {
	var s Searcher
	return s.EvaluatePosition(g, side, depth, limit)
}

// SelectBestMove picks side's move on g searching limit plies below each
// candidate. It reports false when g has no legal move.
func SelectBestMove(g Grid, side Cell, limit int) (Coord, bool) {
	var s Searcher
	return s.SelectBestMove(g, side, limit)
}

func (s *Searcher) EvaluatePosition(g Grid, side Cell, depth, limit int) float64 {
	s.Stats.Nodes++
	if w := CheckWin(g); w != Empty {
		return float64(w)
	}
	if depth == limit {
		s.Stats.Leaves++
		return GridValue(g)
	}
	children := Children(g, side)
	if len(children) == 0 {
		return 0
	}
	best := 0.0
	for i, child := range children {
		v := Discount * s.EvaluatePosition(child, side.Opponent(), depth+1, limit)
		if i == 0 || better(side, v, best) {
			best = v
		}
	}
	return best
}

func (s *Searcher) SelectBestMove(g Grid, side Cell, limit int) (Coord, bool) {
	start := time.Now()
	defer func() {
		s.Stats.Elapsed += time.Since(start)
	}()
	if limit < 0 {
		limit = 0
	}
	s.Stats.Depth = limit

	moves := LegalMoves(g)
	if len(moves) == 0 {
		return Coord{}, false
	}
	bestIdx := 0
	best := 0.0
	for i, m := range moves {
		child, _ := ApplyMove(g, m.Row, m.Col, side, true)
		if GridValue(child) == float64(side) {
			return m, true
		}
		v := s.EvaluatePosition(child, side.Opponent(), 0, limit)
		if i == 0 || better(side, v, best) {
			best, bestIdx = v, i
		}
	}
	return moves[bestIdx], true
}

// better reports whether v strictly improves on cur for side. Ties keep the
// earlier candidate.
func better(side Cell, v, cur float64) bool {
	if side == SideA {
		return v > cur
	}
	return v < cur
}
