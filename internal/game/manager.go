package game

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EngineName is how the engine appears in results.
const EngineName = "engine"

const (
	StatusActive    = "active"
	StatusFinished  = "finished"
	StatusAbandoned = "abandoned"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrNotYourGame  = errors.New("not your game")
	ErrThinking     = errors.New("engine is already thinking")
)

// GameState is a game as the manager tracks it. Values handed out by the
// Manager are copies.
type GameState struct {
	ID         string    `json:"id"`
	Player     string    `json:"player"`
	Session    Session   `json:"session"`
	Status     string    `json:"status"`
	Outcome    Outcome   `json:"outcome"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt,omitempty"`
	LastMoveAt time.Time `json:"lastMoveAt"`
	Thinking   bool      `json:"thinking"`
	// Nodes is the total number of positions the engine searched.
	Nodes int `json:"nodes"`
}

// Move is a human move. Row is optional; when nil the piece is dropped.
type Move struct {
	Username string
	GameID   string
	Column   int
	Row      *int
}

// EngineResult is what one engine turn produced.
type EngineResult struct {
	Game  *GameState
	Move  Coord
	Stats Stats
}

type Manager struct {
	mu             sync.RWMutex
	games          map[string]*GameState
	userToGame     map[string]string
	reconnectAfter time.Duration
	onFinish       func(*GameState)
	reply          func(Session) (Session, Stats, error)
}

// NewManager creates a manager. onFinish, if set, runs on its own goroutine
// once per game when the game ends.
func NewManager(reconnectWindow time.Duration, onFinish func(*GameState)) *Manager {
	return &Manager{
		games:          make(map[string]*GameState),
		userToGame:     make(map[string]string),
		reconnectAfter: reconnectWindow,
		onFinish:       onFinish,
		reply:          Session.EngineReply,
	}
}

// StartGame returns the user's unfinished game, or starts a new one.
func (m *Manager) StartGame(username string, d Difficulty, engineFirst bool) *GameState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gid, ok := m.userToGame[username]; ok {
		if g, exists := m.games[gid]; exists && g.Status == StatusActive {
			return g.snapshot()
		}
	}
	return m.newGameLocked(username, d, engineFirst)
}

// NewGame abandons any unfinished game of the user and starts a fresh one.
func (m *Manager) NewGame(username string, d Difficulty, engineFirst bool) *GameState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gid, ok := m.userToGame[username]; ok {
		if g, exists := m.games[gid]; exists && g.Status == StatusActive {
			m.finishLocked(g, StatusAbandoned, time.Now())
		}
	}
	return m.newGameLocked(username, d, engineFirst)
}

func (m *Manager) newGameLocked(username string, d Difficulty, engineFirst bool) *GameState {
	if !d.Valid() {
		d = DefaultDifficulty
	}
	now := time.Now()
	session := NewSession(d)
	if engineFirst {
		session, _ = session.EngineOpen()
	}
	g := &GameState{
		ID:         uuid.NewString(),
		Player:     username,
		Session:    session,
		Status:     StatusActive,
		Outcome:    Ongoing,
		StartedAt:  now,
		LastMoveAt: now,
	}
	m.games[g.ID] = g
	m.userToGame[username] = g.ID
	log.Debug().Str("game", g.ID).Str("player", username).Stringer("difficulty", d).Msg("game started")
	return g.snapshot()
}

// HandleMove plays a human move.
func (m *Manager) HandleMove(move Move) (*GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := m.ownedLocked(move.GameID, move.Username)
	if err != nil {
		return nil, err
	}
	if g.Status != StatusActive {
		return g.snapshot(), ErrGameFinished
	}
	if g.Thinking {
		return g.snapshot(), ErrInvalidTurn
	}
	var next Session
	if move.Row != nil {
		next, err = g.Session.Play(*move.Row, move.Column)
	} else {
		next, err = g.Session.Drop(move.Column)
	}
	if err != nil {
		return g.snapshot(), err
	}
	m.commitLocked(g, next)
	return g.snapshot(), nil
}

// EngineFirst makes the engine open an unstarted game.
func (m *Manager) EngineFirst(gameID, username string) (*GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := m.ownedLocked(gameID, username)
	if err != nil {
		return nil, err
	}
	if g.Status != StatusActive {
		return g.snapshot(), ErrGameFinished
	}
	next, err := g.Session.EngineOpen()
	if err != nil {
		return g.snapshot(), err
	}
	m.commitLocked(g, next)
	return g.snapshot(), nil
}

// EngineMove searches for and plays the engine's reply. The search runs
// without holding the manager lock; the result is discarded if a move was
// played in the meantime. A difficulty set during the search is kept and
// applies from the next search.
func (m *Manager) EngineMove(gameID string) (EngineResult, error) {
	m.mu.Lock()
	g, ok := m.games[gameID]
	if !ok {
		m.mu.Unlock()
		return EngineResult{}, ErrGameNotFound
	}
	if g.Status != StatusActive {
		m.mu.Unlock()
		return EngineResult{Game: g.snapshot()}, ErrGameFinished
	}
	if g.Thinking {
		m.mu.Unlock()
		return EngineResult{Game: g.snapshot()}, ErrThinking
	}
	if g.Session.ToMove != Engine {
		m.mu.Unlock()
		return EngineResult{Game: g.snapshot()}, ErrInvalidTurn
	}
	session := g.Session
	g.Thinking = true
	m.mu.Unlock()

	next, stats, err := m.reply(session)

	m.mu.Lock()
	defer m.mu.Unlock()
	g.Thinking = false
	if err != nil {
		return EngineResult{Game: g.snapshot(), Stats: stats}, err
	}
	if g.Status != StatusActive || g.Session.Turn != session.Turn {
		return EngineResult{Game: g.snapshot(), Stats: stats}, ErrInvalidTurn
	}
	next.Difficulty = g.Session.Difficulty
	g.Nodes += stats.Nodes
	m.commitLocked(g, next)
	log.Debug().
		Str("game", g.ID).
		Int("depth", stats.Depth).
		Int("nodes", stats.Nodes).
		Dur("elapsed", stats.Elapsed).
		Msg("engine moved")
	return EngineResult{Game: g.snapshot(), Move: *next.LastMove, Stats: stats}, nil
}

// SetDifficulty changes the level of an unfinished game.
func (m *Manager) SetDifficulty(gameID, username string, d Difficulty) (*GameState, error) {
	return m.updateDifficulty(gameID, username, func(Difficulty) Difficulty { return d })
}

// CycleDifficulty moves the game to the next level.
func (m *Manager) CycleDifficulty(gameID, username string) (*GameState, error) {
	return m.updateDifficulty(gameID, username, Difficulty.Next)
}

func (m *Manager) updateDifficulty(gameID, username string, fn func(Difficulty) Difficulty) (*GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := m.ownedLocked(gameID, username)
	if err != nil {
		return nil, err
	}
	if g.Status != StatusActive {
		return g.snapshot(), ErrGameFinished
	}
	next, err := g.Session.WithDifficulty(fn(g.Session.Difficulty))
	if err != nil {
		return g.snapshot(), err
	}
	g.Session = next
	return g.snapshot(), nil
}

func (m *Manager) GetGame(gameID string) (*GameState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, false
	}
	return g.snapshot(), true
}

// GetGameByUser retrieves the user's latest game.
func (m *Manager) GetGameByUser(username string) (*GameState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.userToGame[username]; ok {
		if g, exists := m.games[id]; exists {
			return g.snapshot(), true
		}
	}
	return nil, false
}

// Restore registers a game recovered from elsewhere, such as a session
// cache. An existing game with the same id is kept.
func (m *Manager) Restore(g *GameState) *GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.games[g.ID]; ok {
		return cur.snapshot()
	}
	restored := g.snapshot()
	restored.Thinking = false
	restored.LastMoveAt = time.Now()
	m.games[restored.ID] = restored
	if restored.Status == StatusActive {
		m.userToGame[restored.Player] = restored.ID
	}
	return restored.snapshot()
}

func (m *Manager) Abandon(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.userToGame[username]; ok {
		if g, exists := m.games[id]; exists && g.Status == StatusActive {
			m.finishLocked(g, StatusAbandoned, time.Now())
		}
	}
	delete(m.userToGame, username)
}

// MarkDisconnected updates last seen time so the sweeper can abandon the
// game after the reconnect window.
func (m *Manager) MarkDisconnected(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.userToGame[username]; ok {
		if g, exists := m.games[id]; exists {
			g.LastMoveAt = time.Now()
		}
	}
}

// SweepIdle abandons games idle past the reconnect window and forgets
// finished ones. It returns the number of games abandoned.
func (m *Manager) SweepIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for id, g := range m.games {
		if now.Sub(g.LastMoveAt) <= m.reconnectAfter || g.Thinking {
			continue
		}
		if g.Status == StatusActive {
			m.finishLocked(g, StatusAbandoned, now)
			log.Info().Str("game", id).Msg("game abandoned due to timeout")
			n++
			continue
		}
		delete(m.games, id)
		if m.userToGame[g.Player] == id {
			delete(m.userToGame, g.Player)
		}
	}
	return n
}

func (m *Manager) ownedLocked(gameID, username string) (*GameState, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	if g.Player != username {
		return nil, ErrNotYourGame
	}
	return g, nil
}

func (m *Manager) commitLocked(g *GameState, next Session) {
	now := time.Now()
	g.Session = next
	g.LastMoveAt = now
	if o := next.Outcome(); o.Finished() {
		g.Outcome = o
		m.finishLocked(g, StatusFinished, now)
	}
}

func (m *Manager) finishLocked(g *GameState, status string, at time.Time) {
	g.Status = status
	if status == StatusAbandoned {
		g.Outcome = Abandoned
	}
	g.EndedAt = at
	g.LastMoveAt = at
	if m.onFinish != nil {
		go m.onFinish(g.snapshot())
	}
}

// Winner names the winning player, "engine", or "" when nobody won.
func (g *GameState) Winner() string {
	switch g.Outcome {
	case EngineWin:
		return EngineName
	case HumanWin:
		return g.Player
	}
	return ""
}

func (g *GameState) snapshot() *GameState {
	c := *g
	return &c
}
