package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func humanToWin(t *testing.T) Session {
	return Session{
		Grid: gridOf(t,
			".......",
			".......",
			".......",
			".......",
			"XXX....",
			"OOO....",
		),
		ToMove:     Human,
		Difficulty: VeryEasy,
		Turn:       6,
	}
}

func TestManagerStartGame(t *testing.T) {
	m := NewManager(time.Minute, nil)

	g := m.StartGame("alice", Easy, false)
	require.NotEmpty(t, g.ID)
	require.Equal(t, "alice", g.Player)
	require.Equal(t, StatusActive, g.Status)
	require.Equal(t, Easy, g.Session.Difficulty)
	require.False(t, g.Session.Started())

	again := m.StartGame("alice", Hard, true)
	require.Equal(t, g.ID, again.ID, "unfinished game is resumed")

	other := m.StartGame("bob", Difficulty(7), true)
	require.NotEqual(t, g.ID, other.ID)
	require.Equal(t, DefaultDifficulty, other.Session.Difficulty)
	require.Equal(t, Engine, other.Session.Grid[OpeningMove.Row][OpeningMove.Col])
}

func TestManagerHandleMove(t *testing.T) {
	m := NewManager(time.Minute, nil)
	g := m.StartGame("alice", VeryEasy, false)

	_, err := m.HandleMove(Move{Username: "alice", GameID: "missing", Column: 0})
	require.ErrorIs(t, err, ErrGameNotFound)
	_, err = m.HandleMove(Move{Username: "mallory", GameID: g.ID, Column: 0})
	require.ErrorIs(t, err, ErrNotYourGame)

	got, err := m.HandleMove(Move{Username: "alice", GameID: g.ID, Column: 3})
	require.NoError(t, err)
	require.Equal(t, Human, got.Session.Grid[5][3])
	require.Equal(t, Engine, got.Session.ToMove)

	_, err = m.HandleMove(Move{Username: "alice", GameID: g.ID, Column: 3})
	require.ErrorIs(t, err, ErrInvalidTurn)

	// Mutating a returned snapshot does not reach the manager.
	got.Session.Grid[0][0] = SideA
	cur, ok := m.GetGame(g.ID)
	require.True(t, ok)
	require.Equal(t, Empty, cur.Session.Grid[0][0])
}

func TestManagerHandleMoveWithRow(t *testing.T) {
	m := NewManager(time.Minute, nil)
	g := m.StartGame("alice", VeryEasy, false)

	row := 0
	_, err := m.HandleMove(Move{Username: "alice", GameID: g.ID, Column: 1, Row: &row})
	require.ErrorIs(t, err, ErrInvalidMove)

	row = 5
	got, err := m.HandleMove(Move{Username: "alice", GameID: g.ID, Column: 1, Row: &row})
	require.NoError(t, err)
	require.Equal(t, Human, got.Session.Grid[5][1])
}

func TestManagerEngineMove(t *testing.T) {
	m := NewManager(time.Minute, nil)
	g := m.StartGame("alice", VeryEasy, false)

	_, err := m.EngineMove(g.ID)
	require.ErrorIs(t, err, ErrInvalidTurn)

	_, err = m.HandleMove(Move{Username: "alice", GameID: g.ID, Column: 0})
	require.NoError(t, err)

	res, err := m.EngineMove(g.ID)
	require.NoError(t, err)
	require.Equal(t, Human, res.Game.Session.ToMove)
	require.Equal(t, 2, res.Game.Session.Turn)
	require.Equal(t, Engine, res.Game.Session.Grid[res.Move.Row][res.Move.Col])
	require.False(t, res.Game.Thinking)
	require.Equal(t, res.Stats.Nodes, res.Game.Nodes)

	_, err = m.EngineMove("missing")
	require.ErrorIs(t, err, ErrGameNotFound)
}

func TestManagerDifficultyChangedWhileThinking(t *testing.T) {
	m := NewManager(time.Minute, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	m.reply = func(s Session) (Session, Stats, error) {
		close(started)
		<-release
		return s.EngineReply()
	}
	g := m.StartGame("alice", Hard, false)
	_, err := m.HandleMove(Move{Username: "alice", GameID: g.ID, Column: 3})
	require.NoError(t, err)

	type result struct {
		res EngineResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := m.EngineMove(g.ID)
		done <- result{res, err}
	}()
	<-started

	cur, ok := m.GetGame(g.ID)
	require.True(t, ok)
	require.True(t, cur.Thinking)
	changed, err := m.SetDifficulty(g.ID, "alice", VeryEasy)
	require.NoError(t, err)
	require.Equal(t, VeryEasy, changed.Session.Difficulty)

	close(release)
	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, 2, r.res.Game.Session.Turn)
	require.Equal(t, VeryEasy, r.res.Game.Session.Difficulty)

	cur, ok = m.GetGame(g.ID)
	require.True(t, ok)
	require.False(t, cur.Thinking)
	require.Equal(t, VeryEasy, cur.Session.Difficulty)
}

func TestManagerEngineFirst(t *testing.T) {
	m := NewManager(time.Minute, nil)
	g := m.StartGame("alice", Medium, false)

	got, err := m.EngineFirst(g.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, Engine, got.Session.Grid[5][3])

	_, err = m.EngineFirst(g.ID, "alice")
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestManagerFinish(t *testing.T) {
	finished := make(chan *GameState, 1)
	m := NewManager(time.Minute, func(g *GameState) { finished <- g })

	g := m.Restore(&GameState{
		ID:      "g1",
		Player:  "alice",
		Session: humanToWin(t),
		Status:  StatusActive,
		Outcome: Ongoing,
	})
	require.Equal(t, "g1", g.ID)

	got, err := m.HandleMove(Move{Username: "alice", GameID: "g1", Column: 3})
	require.NoError(t, err)
	require.Equal(t, StatusFinished, got.Status)
	require.Equal(t, HumanWin, got.Outcome)
	require.Equal(t, "alice", got.Winner())

	select {
	case done := <-finished:
		require.Equal(t, "g1", done.ID)
		require.Equal(t, HumanWin, done.Outcome)
		require.False(t, done.EndedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("onFinish was not called")
	}

	_, err = m.HandleMove(Move{Username: "alice", GameID: "g1", Column: 4})
	require.ErrorIs(t, err, ErrGameFinished)
	_, err = m.EngineMove("g1")
	require.ErrorIs(t, err, ErrGameFinished)
}

func TestManagerDifficulty(t *testing.T) {
	m := NewManager(time.Minute, nil)
	g := m.StartGame("alice", VeryEasy, false)

	got, err := m.CycleDifficulty(g.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, Easy, got.Session.Difficulty)

	got, err = m.SetDifficulty(g.ID, "alice", Hard)
	require.NoError(t, err)
	require.Equal(t, Hard, got.Session.Difficulty)

	got, err = m.CycleDifficulty(g.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, VeryEasy, got.Session.Difficulty)

	_, err = m.SetDifficulty(g.ID, "alice", Difficulty(0))
	require.ErrorIs(t, err, ErrInvalidDifficulty)
	_, err = m.SetDifficulty(g.ID, "bob", Hard)
	require.ErrorIs(t, err, ErrNotYourGame)
}

func TestManagerNewGameAbandonsPrevious(t *testing.T) {
	finished := make(chan *GameState, 1)
	m := NewManager(time.Minute, func(g *GameState) { finished <- g })
	first := m.StartGame("alice", Medium, false)

	second := m.NewGame("alice", Medium, false)
	require.NotEqual(t, first.ID, second.ID)

	old, ok := m.GetGame(first.ID)
	require.True(t, ok)
	require.Equal(t, StatusAbandoned, old.Status)
	require.Equal(t, Abandoned, old.Outcome)
	require.Equal(t, "", old.Winner())

	cur, ok := m.GetGameByUser("alice")
	require.True(t, ok)
	require.Equal(t, second.ID, cur.ID)

	select {
	case done := <-finished:
		require.Equal(t, first.ID, done.ID)
		require.Equal(t, Abandoned, done.Outcome)
	case <-time.After(time.Second):
		t.Fatal("onFinish was not called")
	}
}

func TestManagerSweepIdle(t *testing.T) {
	m := NewManager(0, nil)
	g := m.StartGame("alice", Medium, false)
	time.Sleep(time.Millisecond)

	require.Equal(t, 1, m.SweepIdle())
	swept, ok := m.GetGame(g.ID)
	require.True(t, ok)
	require.Equal(t, StatusAbandoned, swept.Status)
	require.Equal(t, Abandoned, swept.Outcome)

	// The next sweep forgets the finished game.
	time.Sleep(time.Millisecond)
	require.Equal(t, 0, m.SweepIdle())
	_, ok = m.GetGame(g.ID)
	require.False(t, ok)
	_, ok = m.GetGameByUser("alice")
	require.False(t, ok)
}

func TestManagerAbandon(t *testing.T) {
	finished := make(chan *GameState, 1)
	m := NewManager(time.Minute, func(g *GameState) { finished <- g })
	g := m.StartGame("alice", Medium, false)
	m.Abandon("alice")

	got, ok := m.GetGame(g.ID)
	require.True(t, ok)
	require.Equal(t, StatusAbandoned, got.Status)
	require.Equal(t, Abandoned, got.Outcome)
	select {
	case done := <-finished:
		require.Equal(t, StatusAbandoned, done.Status)
		require.Equal(t, Abandoned, done.Outcome)
	case <-time.After(time.Second):
		t.Fatal("onFinish was not called")
	}
	_, ok = m.GetGameByUser("alice")
	require.False(t, ok)
}

func TestManagerRestoreKeepsExisting(t *testing.T) {
	m := NewManager(time.Minute, nil)
	g := m.StartGame("alice", Medium, false)

	stale := *g
	stale.Session = humanToWin(t)
	got := m.Restore(&stale)
	require.Equal(t, Reset(), got.Session.Grid)
}
