package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"connectfour/internal/analytics"
	"connectfour/internal/game"
	"connectfour/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Server struct {
	router            *gin.Engine
	manager           *game.Manager
	store             storage.Store
	cache             storage.SessionCache
	analytics         *analytics.Producer
	inMemoryWins      map[string]map[string]int // difficulty -> username -> wins
	winMu             sync.Mutex
	connections       map[string]*wsClient
	connMu            sync.RWMutex
	defaultDifficulty game.Difficulty
	sweepInterval     time.Duration
}

type Config struct {
	ReconnectWindow   time.Duration
	SweepInterval     time.Duration
	DefaultDifficulty game.Difficulty
	Store             storage.Store
	Cache             storage.SessionCache
	Analytics         *analytics.Producer
}

func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if !cfg.DefaultDifficulty.Valid() {
		cfg.DefaultDifficulty = game.DefaultDifficulty
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Second
	}
	s := &Server{
		router:            router,
		store:             cfg.Store,
		cache:             cfg.Cache,
		analytics:         cfg.Analytics,
		inMemoryWins:      make(map[string]map[string]int),
		connections:       make(map[string]*wsClient),
		defaultDifficulty: cfg.DefaultDifficulty,
		sweepInterval:     cfg.SweepInterval,
	}
	s.manager = game.NewManager(cfg.ReconnectWindow, s.onFinish)

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/leaderboard", s.handleLeaderboard)
	router.GET("/ws", s.handleWS)

	games := router.Group("/games")
	games.POST("", s.handleCreateGame)
	games.GET("/:id", s.handleGetGame)
	games.POST("/:id/moves", s.handleMove)
	games.POST("/:id/engine", s.handleEngine)
	games.PUT("/:id/difficulty", s.handleSetDifficulty)
	games.POST("/:id/difficulty/next", s.handleNextDifficulty)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	go s.sweeper(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) sweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.manager.SweepIdle(); n > 0 {
				log.Info().Int("games", n).Msg("swept idle games")
			}
		}
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// gameView is the JSON shape of a game sent to clients.
type gameView struct {
	ID         string          `json:"gameId"`
	Player     string          `json:"player"`
	Board      game.Grid       `json:"board"`
	Turn       int             `json:"turn"`
	ToMove     string          `json:"toMove"`
	Difficulty game.Difficulty `json:"difficulty"`
	Depth      int             `json:"depth"`
	Status     string          `json:"status"`
	Outcome    game.Outcome    `json:"outcome"`
	Winner     string          `json:"winner"`
	LastMove   *game.Coord     `json:"lastMove,omitempty"`
	Thinking   bool            `json:"thinking"`
	LegalMoves []game.Coord    `json:"legalMoves"`
}

func viewOf(g *game.GameState) gameView {
	toMove := "human"
	if g.Session.ToMove == game.Engine {
		toMove = game.EngineName
	}
	legal := []game.Coord{}
	depth := 0
	if g.Status == game.StatusActive {
		legal = game.LegalMoves(g.Session.Grid)
		depth = game.EffectiveDepth(g.Session.Grid, g.Session.Difficulty)
	}
	return gameView{
		ID:         g.ID,
		Player:     g.Player,
		Board:      g.Session.Grid,
		Turn:       g.Session.Turn,
		ToMove:     toMove,
		Difficulty: g.Session.Difficulty,
		Depth:      depth,
		Status:     g.Status,
		Outcome:    g.Outcome,
		Winner:     g.Winner(),
		LastMove:   g.Session.LastMove,
		Thinking:   g.Thinking,
		LegalMoves: legal,
	}
}

type createGameRequest struct {
	Username    string `json:"username" binding:"required"`
	Difficulty  string `json:"difficulty"`
	EngineFirst bool   `json:"engineFirst"`
	Fresh       bool   `json:"fresh"`
}

func (s *Server) handleCreateGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d := s.defaultDifficulty
	if req.Difficulty != "" {
		parsed, err := game.ParseDifficulty(req.Difficulty)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d = parsed
	}
	var g *game.GameState
	if req.Fresh {
		g = s.manager.NewGame(req.Username, d, req.EngineFirst)
	} else {
		g = s.manager.StartGame(req.Username, d, req.EngineFirst)
	}
	s.publishState(c.Request.Context(), g)
	c.JSON(http.StatusCreated, viewOf(g))
}

func (s *Server) handleGetGame(c *gin.Context) {
	g, ok := s.lookupGame(c.Request.Context(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": game.ErrGameNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, viewOf(g))
}

type moveRequest struct {
	Username string `json:"username" binding:"required"`
	Column   *int   `json:"column" binding:"required"`
	Row      *int   `json:"row"`
}

// handleMove plays the human move and, unless reply=false, the engine's
// answer before responding.
func (s *Server) handleMove(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, ok := s.lookupGame(ctx, id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": game.ErrGameNotFound.Error()})
		return
	}
	g, err := s.manager.HandleMove(game.Move{
		Username: req.Username,
		GameID:   id,
		Column:   *req.Column,
		Row:      req.Row,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	s.publishMove(ctx, g)
	if c.Query("reply") != "false" && g.Status == game.StatusActive && g.Session.ToMove == game.Engine {
		g = s.engineReply(ctx, g)
	}
	c.JSON(http.StatusOK, viewOf(g))
}

// engineReply plays the engine's answer to g. The human move is already
// committed, so a failed reply is logged and the current game returned.
func (s *Server) engineReply(ctx context.Context, g *game.GameState) *game.GameState {
	res, err := s.manager.EngineMove(g.ID)
	if err != nil {
		log.Warn().Err(err).Str("game", g.ID).Msg("engine reply failed")
		if cur, ok := s.manager.GetGame(g.ID); ok {
			return cur
		}
		return g
	}
	s.publishEngineMove(ctx, res)
	return res.Game
}

type playerRequest struct {
	Username string `json:"username" binding:"required"`
}

// handleEngine opens the game for the engine when nothing has been played,
// otherwise asks the engine for its reply.
func (s *Server) handleEngine(c *gin.Context) {
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	cur, ok := s.lookupGame(ctx, c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": game.ErrGameNotFound.Error()})
		return
	}
	if cur.Player != req.Username {
		writeError(c, game.ErrNotYourGame)
		return
	}
	if !cur.Session.Started() {
		g, err := s.manager.EngineFirst(cur.ID, req.Username)
		if err != nil {
			writeError(c, err)
			return
		}
		s.publishMove(ctx, g)
		c.JSON(http.StatusOK, viewOf(g))
		return
	}
	res, err := s.manager.EngineMove(cur.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	s.publishEngineMove(ctx, res)
	c.JSON(http.StatusOK, viewOf(res.Game))
}

type difficultyRequest struct {
	Username   string          `json:"username" binding:"required"`
	Difficulty game.Difficulty `json:"difficulty"`
}

func (s *Server) handleSetDifficulty(c *gin.Context) {
	var req difficultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if _, ok := s.lookupGame(ctx, c.Param("id")); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": game.ErrGameNotFound.Error()})
		return
	}
	g, err := s.manager.SetDifficulty(c.Param("id"), req.Username, req.Difficulty)
	if err != nil {
		writeError(c, err)
		return
	}
	s.publishState(ctx, g)
	c.JSON(http.StatusOK, viewOf(g))
}

func (s *Server) handleNextDifficulty(c *gin.Context) {
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if _, ok := s.lookupGame(ctx, c.Param("id")); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": game.ErrGameNotFound.Error()})
		return
	}
	g, err := s.manager.CycleDifficulty(c.Param("id"), req.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	s.publishState(ctx, g)
	c.JSON(http.StatusOK, viewOf(g))
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	difficulty := c.Query("difficulty")
	if s.store != nil {
		rows, err := s.store.GetLeaderboard(ctx, difficulty, 10)
		if err == nil {
			c.JSON(http.StatusOK, rows)
			return
		}
		log.Error().Err(err).Msg("leaderboard db error")
	}
	// fallback in-memory
	wins := make(map[string]int)
	s.winMu.Lock()
	for d, byUser := range s.inMemoryWins {
		if difficulty != "" && d != difficulty {
			continue
		}
		for user, n := range byUser {
			wins[user] += n
		}
	}
	s.winMu.Unlock()
	res := []storage.LeaderboardRow{}
	for k, v := range wins {
		res = append(res, storage.LeaderboardRow{Username: k, Wins: v})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Wins != res[j].Wins {
			return res[i].Wins > res[j].Wins
		}
		return res[i].Username < res[j].Username
	})
	if len(res) > 10 {
		res = res[:10]
	}
	c.JSON(http.StatusOK, res)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrNotYourGame):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrInvalidTurn),
		errors.Is(err, game.ErrThinking),
		errors.Is(err, game.ErrGameFinished),
		errors.Is(err, game.ErrAlreadyStarted):
		status = http.StatusConflict
	case errors.Is(err, game.ErrInvalidMove),
		errors.Is(err, game.ErrColumnFull),
		errors.Is(err, game.ErrInvalidCol),
		errors.Is(err, game.ErrInvalidDifficulty):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// lookupGame finds a game in memory, falling back to the session cache.
func (s *Server) lookupGame(ctx context.Context, id string) (*game.GameState, bool) {
	if g, ok := s.manager.GetGame(id); ok {
		return g, true
	}
	if s.cache == nil || id == "" {
		return nil, false
	}
	data, err := s.cache.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrSessionNotFound) {
			log.Warn().Err(err).Str("game", id).Msg("session cache read failed")
		}
		return nil, false
	}
	var g game.GameState
	if err := json.Unmarshal(data, &g); err != nil {
		log.Warn().Err(err).Str("game", id).Msg("session cache entry unreadable")
		return nil, false
	}
	log.Info().Str("game", id).Msg("game restored from session cache")
	return s.manager.Restore(&g), true
}

// publishState pushes g to the player's socket and stores it in the session
// cache.
func (s *Server) publishState(ctx context.Context, g *game.GameState) {
	s.sendToUser(g.Player, stateMessage(g))
	if s.cache == nil {
		return
	}
	if g.Status != game.StatusActive {
		if err := s.cache.Delete(ctx, g.ID); err != nil {
			log.Warn().Err(err).Str("game", g.ID).Msg("session cache delete failed")
		}
		return
	}
	data, err := json.Marshal(g)
	if err != nil {
		log.Error().Err(err).Str("game", g.ID).Msg("encode session")
		return
	}
	if err := s.cache.Put(ctx, g.ID, data); err != nil {
		log.Warn().Err(err).Str("game", g.ID).Msg("session cache write failed")
	}
}

func (s *Server) publishMove(ctx context.Context, g *game.GameState) {
	s.publishState(ctx, g)
	if s.analytics == nil {
		return
	}
	payload := map[string]any{
		"gameId":     g.ID,
		"player":     g.Player,
		"turn":       g.Session.Turn,
		"status":     g.Status,
		"difficulty": g.Session.Difficulty.String(),
	}
	if g.Session.LastMove != nil {
		payload["row"] = g.Session.LastMove.Row
		payload["column"] = g.Session.LastMove.Col
	}
	s.analytics.Publish(context.Background(), g.ID, analytics.EventMovePlayed, payload)
}

func (s *Server) publishEngineMove(ctx context.Context, res game.EngineResult) {
	s.publishMove(ctx, res.Game)
	if s.analytics == nil {
		return
	}
	s.analytics.Publish(context.Background(), res.Game.ID, analytics.EventEngineMove, map[string]any{
		"gameId":     res.Game.ID,
		"row":        res.Move.Row,
		"column":     res.Move.Col,
		"depth":      res.Stats.Depth,
		"nodes":      res.Stats.Nodes,
		"leaves":     res.Stats.Leaves,
		"elapsedMs":  float64(res.Stats.Elapsed.Microseconds()) / 1000,
		"difficulty": res.Game.Session.Difficulty.String(),
	})
}

func (s *Server) onFinish(g *game.GameState) {
	winner := g.Winner()
	if g.Outcome == game.HumanWin {
		d := g.Session.Difficulty.String()
		s.winMu.Lock()
		if s.inMemoryWins[d] == nil {
			s.inMemoryWins[d] = make(map[string]int)
		}
		s.inMemoryWins[d][winner]++
		s.winMu.Unlock()
	}
	log.Info().
		Str("game", g.ID).
		Str("player", g.Player).
		Str("status", g.Status).
		Str("outcome", string(g.Outcome)).
		Msg("game finished")

	ctx := context.Background()
	s.publishState(ctx, g)
	if s.store != nil {
		_ = s.store.SaveGame(ctx, storage.CompletedGame{
			ID:         g.ID,
			Player:     g.Player,
			Winner:     winner,
			Outcome:    string(g.Outcome),
			Status:     g.Status,
			Difficulty: g.Session.Difficulty.String(),
			Moves:      g.Session.Turn,
			Nodes:      g.Nodes,
			StartedAt:  g.StartedAt,
			EndedAt:    g.EndedAt,
		})
	}
	if s.analytics != nil {
		s.analytics.Publish(ctx, g.ID, analytics.EventGameFinished, analytics.GameFinishedPayload(g))
	}
}
