package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPotentialWinDifferential(t *testing.T) {
	tests := []struct {
		name string
		grid Grid
		want float64
	}{
		{"empty", Reset(), 0},
		{"one open end on the bottom row", gridOf(t,
			".......",
			".......",
			".......",
			".......",
			"OOO....",
			"XXX....",
		), 1 - 0.9},
		{"vertical threat counts at its row", gridOf(t,
			".......",
			".......",
			".......",
			"X......",
			"X.....O",
			"X.....O",
		), math.Pow(0.9, 3)},
		{"shared square cancels out", gridOf(t,
			".......",
			".......",
			".......",
			".......",
			".......",
			"XXX.OOO",
		), 0},
		{"floating threat", gridOf(t,
			".......",
			".......",
			".OOO...",
			".XXO...",
			".XOX...",
			"XOXX...",
		), -(math.Pow(0.9, 3) + math.Pow(0.9, 3))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, PotentialWinDifferential(tt.grid), 1e-12)
			require.InDelta(t, -tt.want, PotentialWinDifferential(Negate(tt.grid)), 1e-12)
		})
	}
}

func TestGridValue(t *testing.T) {
	t.Run("decided games are exactly one", func(t *testing.T) {
		g := gridOf(t,
			".......",
			".......",
			".......",
			".......",
			"OOO....",
			"XXXX...",
		)
		require.Equal(t, 1.0, GridValue(g))
		require.Equal(t, -1.0, GridValue(Negate(g)))
	})

	t.Run("heuristic is scaled down", func(t *testing.T) {
		g := gridOf(t,
			".......",
			".......",
			".......",
			".......",
			".......",
			".XXX...",
		)
		require.InDelta(t, 0.02, GridValue(g), 1e-12)
	})

	t.Run("heuristic never reaches a win", func(t *testing.T) {
		g := gridOf(t,
			".......",
			".......",
			".......",
			"XXX.XXX",
			"XXX.XXX",
			"XXX.XXX",
		)
		g[3][3], g[4][3], g[5][3] = SideB, SideB, SideB
		v := GridValue(g)
		require.Greater(t, v, 0.0)
		require.Less(t, v, 1.0)
	})
}
