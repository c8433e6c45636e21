package game

import "errors"

var (
	ErrColumnFull        = errors.New("column is full")
	ErrInvalidMove       = errors.New("invalid move")
	ErrInvalidTurn       = errors.New("not your turn")
	ErrInvalidCol        = errors.New("invalid column")
	ErrGameFinished      = errors.New("game already finished")
	ErrAlreadyStarted    = errors.New("game already started")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
)

// The engine always plays SideA and the human SideB.
const (
	Engine = SideA
	Human  = SideB
)

// Outcome summarises where a game stands.
type Outcome string

const (
	Ongoing   Outcome = "ongoing"
	EngineWin Outcome = "engine_win"
	HumanWin  Outcome = "human_win"
	Draw      Outcome = "draw"
	// Abandoned is set by the Manager; a Session never reports it.
	Abandoned Outcome = "abandoned"
)

// Finished reports whether no more moves can be played.
func (o Outcome) Finished() bool {
	return o != Ongoing
}

// OpeningMove is where the engine plays when it moves first.
var OpeningMove = Coord{Row: Rows - 1, Col: Columns / 2}

// Session is one human-versus-engine game. Methods never modify the
// receiver; they return the next session.
type Session struct {
	Grid       Grid       `json:"grid"`
	ToMove     Cell       `json:"toMove"`
	Difficulty Difficulty `json:"difficulty"`
	Turn       int        `json:"turn"`
	LastMove   *Coord     `json:"lastMove,omitempty"`
}

// NewSession starts an empty game with the human to move.
func NewSession(d Difficulty) Session {
	return Session{
		Grid:       Reset(),
		ToMove:     Human,
		Difficulty: d,
	}
}

// Started reports whether any piece has been played.
func (s Session) Started() bool {
	return s.Turn > 0
}

func (s Session) Outcome() Outcome {
	switch CheckWin(s.Grid) {
	case Engine:
		return EngineWin
	case Human:
		return HumanWin
	}
	if OpenColumnCount(s.Grid) == 0 {
		return Draw
	}
	return Ongoing
}

// Play makes the human move at (row, col). The row must be the column's
// lowest empty cell.
func (s Session) Play(row, col int) (Session, error) {
	if col < 0 || col >= Columns {
		return s, ErrInvalidCol
	}
	if row < 0 || row >= Rows {
		return s, ErrInvalidMove
	}
	if err := s.canMove(Human); err != nil {
		return s, err
	}
	next, ok := s.apply(Coord{Row: row, Col: col}, Human)
	if !ok {
		if FillLevel(s.Grid, col) == Rows {
			return s, ErrColumnFull
		}
		return s, ErrInvalidMove
	}
	return next, nil
}

// Drop makes the human move in col.
func (s Session) Drop(col int) (Session, error) {
	if col < 0 || col >= Columns {
		return s, ErrInvalidCol
	}
	row := LowestEmptyRow(s.Grid, col)
	if row < 0 {
		return s, ErrColumnFull
	}
	return s.Play(row, col)
}

// EngineOpen lets the engine take the first move of the game.
func (s Session) EngineOpen() (Session, error) {
	if s.Started() {
		return s, ErrAlreadyStarted
	}
	next, _ := s.apply(OpeningMove, Engine)
	return next, nil
}

// EngineReply searches for and plays the engine's move.
func (s Session) EngineReply() (Session, Stats, error) {
	if err := s.canMove(Engine); err != nil {
		return s, Stats{}, err
	}
	var searcher Searcher
	m, ok := searcher.SelectBestMove(s.Grid, Engine, EffectiveDepth(s.Grid, s.Difficulty))
	if !ok {
		return s, searcher.Stats, ErrGameFinished
	}
	next, _ := s.apply(m, Engine)
	return next, searcher.Stats, nil
}

// WithDifficulty changes the level used for the engine's next search.
func (s Session) WithDifficulty(d Difficulty) (Session, error) {
	if !d.Valid() {
		return s, ErrInvalidDifficulty
	}
	s.Difficulty = d
	return s, nil
}

func (s Session) canMove(side Cell) error {
	if s.Outcome().Finished() {
		return ErrGameFinished
	}
	if s.ToMove != side {
		return ErrInvalidTurn
	}
	return nil
}

func (s Session) apply(m Coord, side Cell) (Session, bool) {
	g, ok := ApplyMove(s.Grid, m.Row, m.Col, side, true)
	if !ok {
		return s, false
	}
	s.Grid = g
	s.ToMove = side.Opponent()
	s.Turn++
	s.LastMove = &m
	return s, true
}
