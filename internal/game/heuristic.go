package game

// rowWeight[r] is 0.9^(Rows-1-r): winning squares nearer the bottom come
// into play sooner and count for more.
var rowWeight = func() [Rows]float64 {
	var w [Rows]float64
	v := 1.0
	for r := Rows - 1; r >= 0; r-- {
		w[r] = v
		v *= 0.9
	}
	return w
}()

// PotentialWinDifferential sums the row weights of every empty square that
// would complete a line for SideA and subtracts those that would complete
// one for SideB. Squares are tested regardless of whether they are reachable
// yet.
func PotentialWinDifferential(g Grid) float64 {
	total := 0.0
	for r := 0; r < Rows; r++ {
		for c := 0; c < Columns; c++ {
			if g[r][c] != Empty {
				continue
			}
			if a, _ := ApplyMove(g, r, c, SideA, false); CheckWin(a) == SideA {
				total += rowWeight[r]
			}
			if b, _ := ApplyMove(g, r, c, SideB, false); CheckWin(b) == SideB {
				total -= rowWeight[r]
			}
		}
	}
	return total
}

// GridValue scores g in [-1, 1]. A decided game is exactly ±1; anything
// else is scaled well inside that range so it never outranks a real win.
func GridValue(g Grid) float64 {
	if w := CheckWin(g); w != Empty {
		return float64(w)
	}
	return PotentialWinDifferential(g) / 100
}
