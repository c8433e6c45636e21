package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := NewSession(Hard)
	require.Equal(t, Reset(), s.Grid)
	require.Equal(t, Human, s.ToMove)
	require.Equal(t, Hard, s.Difficulty)
	require.False(t, s.Started())
	require.Equal(t, Ongoing, s.Outcome())
}

func TestSessionDrop(t *testing.T) {
	s := NewSession(VeryEasy)
	next, err := s.Drop(2)
	require.NoError(t, err)
	require.Equal(t, Human, next.Grid[5][2])
	require.Equal(t, Engine, next.ToMove)
	require.Equal(t, 1, next.Turn)
	require.Equal(t, &Coord{Row: 5, Col: 2}, next.LastMove)
	require.Equal(t, Reset(), s.Grid, "receiver must not change")

	_, err = next.Drop(3)
	require.ErrorIs(t, err, ErrInvalidTurn)

	_, err = s.Drop(7)
	require.ErrorIs(t, err, ErrInvalidCol)
	_, err = s.Drop(-1)
	require.ErrorIs(t, err, ErrInvalidCol)
}

func TestSessionPlay(t *testing.T) {
	s := NewSession(Medium)

	got, err := s.Play(0, 0)
	require.ErrorIs(t, err, ErrInvalidMove)
	require.Equal(t, s, got)

	_, err = s.Play(6, 0)
	require.ErrorIs(t, err, ErrInvalidMove)

	next, err := s.Play(5, 0)
	require.NoError(t, err)
	require.Equal(t, Human, next.Grid[5][0])

	s.Grid = gridOf(t,
		"X......",
		"O......",
		"X......",
		"O......",
		"X......",
		"O......",
	)
	_, err = s.Play(0, 0)
	require.ErrorIs(t, err, ErrColumnFull)
	_, err = s.Drop(0)
	require.ErrorIs(t, err, ErrColumnFull)
}

func TestSessionEngineOpen(t *testing.T) {
	s, err := NewSession(Medium).EngineOpen()
	require.NoError(t, err)
	require.Equal(t, Engine, s.Grid[5][3])
	require.Equal(t, Human, s.ToMove)
	require.Equal(t, 1, s.Turn)

	_, err = s.EngineOpen()
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestSessionEngineReply(t *testing.T) {
	t.Run("wins when it can", func(t *testing.T) {
		s := Session{
			Grid: gridOf(t,
				".......",
				".......",
				".......",
				".......",
				"OOO....",
				"XXX....",
			),
			ToMove:     Engine,
			Difficulty: VeryEasy,
			Turn:       6,
		}
		next, stats, err := s.EngineReply()
		require.NoError(t, err)
		require.Equal(t, &Coord{Row: 5, Col: 3}, next.LastMove)
		require.Equal(t, EngineWin, next.Outcome())
		require.Equal(t, 1, stats.Depth)

		_, err = next.Drop(4)
		require.ErrorIs(t, err, ErrGameFinished)
		_, _, err = next.EngineReply()
		require.ErrorIs(t, err, ErrGameFinished)
	})

	t.Run("answers a human move", func(t *testing.T) {
		s, err := NewSession(VeryEasy).Drop(3)
		require.NoError(t, err)
		next, stats, err := s.EngineReply()
		require.NoError(t, err)
		require.Equal(t, 2, next.Turn)
		require.Equal(t, Human, next.ToMove)
		require.NotNil(t, next.LastMove)
		require.Equal(t, Engine, next.Grid[next.LastMove.Row][next.LastMove.Col])
		require.Equal(t, EffectiveDepth(s.Grid, VeryEasy), stats.Depth)
		require.Positive(t, stats.Nodes)
	})

	t.Run("waits for its turn", func(t *testing.T) {
		_, _, err := NewSession(Medium).EngineReply()
		require.ErrorIs(t, err, ErrInvalidTurn)
	})
}

func TestSessionOutcome(t *testing.T) {
	s := Session{Grid: drawnGrid(t)}
	require.Equal(t, Draw, s.Outcome())
	require.True(t, s.Outcome().Finished())

	s.Grid = Negate(gridOf(t,
		".......",
		".......",
		".......",
		".......",
		"OOO....",
		"XXXX...",
	))
	require.Equal(t, HumanWin, s.Outcome())
}

func TestSessionWithDifficulty(t *testing.T) {
	s := NewSession(Medium)
	next, err := s.WithDifficulty(Hard)
	require.NoError(t, err)
	require.Equal(t, Hard, next.Difficulty)
	require.Equal(t, Medium, s.Difficulty)

	_, err = s.WithDifficulty(Difficulty(3))
	require.ErrorIs(t, err, ErrInvalidDifficulty)
}
