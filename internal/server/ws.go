package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"connectfour/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type wsClient struct {
	username string
	conn     *websocket.Conn
	send     chan []byte
	server   *Server
	gameID   string
}

// clientMessage is anything a client may send.
type clientMessage struct {
	Type        string `json:"type"`
	Column      *int   `json:"column"`
	Row         *int   `json:"row"`
	Level       string `json:"level"`
	EngineFirst bool   `json:"engineFirst"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := &wsClient{
		username: username,
		conn:     conn,
		send:     make(chan []byte, 16),
		server:   s,
		gameID:   c.Query("gameId"),
	}
	s.register(client)

	go client.writePump()
	go client.readPump(c.Query("difficulty"))
}

func (s *Server) register(c *wsClient) {
	s.connMu.Lock()
	if prev, ok := s.connections[c.username]; ok {
		close(prev.send)
	}
	s.connections[c.username] = c
	s.connMu.Unlock()
}

func (s *Server) unregister(c *wsClient) {
	s.connMu.Lock()
	if cur, ok := s.connections[c.username]; ok && cur == c {
		delete(s.connections, c.username)
		close(c.send)
	}
	s.connMu.Unlock()
	c.conn.Close()
}

func (c *wsClient) writePump() {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *wsClient) readPump(level string) {
	defer c.server.unregister(c)
	s := c.server
	ctx := context.Background()

	var g *game.GameState
	if c.gameID != "" {
		if cur, ok := s.lookupGame(ctx, c.gameID); ok && cur.Player == c.username && cur.Status == game.StatusActive {
			g = cur
		}
	}
	if g == nil {
		d := s.defaultDifficulty
		if level != "" {
			if parsed, err := game.ParseDifficulty(level); err == nil {
				d = parsed
			}
		}
		g = s.manager.StartGame(c.username, d, false)
		s.publishState(ctx, g)
	}
	c.gameID = g.ID
	c.sendJSON(initMessage(g))
	s.maybeEngineTurn(g)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			s.manager.MarkDisconnected(c.username)
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if next := c.handle(ctx, msg); next != nil {
			s.maybeEngineTurn(next)
		}
	}
}

// handle applies one client message and returns the resulting game, or nil
// when nothing changed.
func (c *wsClient) handle(ctx context.Context, msg clientMessage) *game.GameState {
	s := c.server
	var (
		g   *game.GameState
		err error
	)
	switch msg.Type {
	case "move":
		if msg.Column == nil {
			return nil
		}
		g, err = s.manager.HandleMove(game.Move{
			Username: c.username,
			GameID:   c.gameID,
			Column:   *msg.Column,
			Row:      msg.Row,
		})
		if err == nil {
			s.publishMove(ctx, g)
		}
	case "engine_first":
		g, err = s.manager.EngineFirst(c.gameID, c.username)
		if err == nil {
			s.publishMove(ctx, g)
		}
	case "difficulty":
		if msg.Level == "" {
			g, err = s.manager.CycleDifficulty(c.gameID, c.username)
		} else {
			var d game.Difficulty
			if d, err = game.ParseDifficulty(msg.Level); err == nil {
				g, err = s.manager.SetDifficulty(c.gameID, c.username, d)
			}
		}
		if err == nil {
			s.publishState(ctx, g)
		}
	case "reset":
		d := s.defaultDifficulty
		if cur, ok := s.manager.GetGame(c.gameID); ok {
			d = cur.Session.Difficulty
		}
		g = s.manager.NewGame(c.username, d, msg.EngineFirst)
		c.gameID = g.ID
		s.publishState(ctx, g)
		c.sendJSON(initMessage(g))
	default:
		return nil
	}
	if err != nil {
		c.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		return nil
	}
	return g
}

// maybeEngineTurn starts the engine's search in the background when it is
// the engine's move, so the read loop keeps serving the client.
func (s *Server) maybeEngineTurn(g *game.GameState) {
	if g.Status != game.StatusActive || g.Session.ToMove != game.Engine || g.Thinking {
		return
	}
	s.sendToUser(g.Player, map[string]any{
		"type":   "thinking",
		"gameId": g.ID,
		"depth":  game.EffectiveDepth(g.Session.Grid, g.Session.Difficulty),
	})
	go s.playEngineTurn(g.ID)
}

func (s *Server) playEngineTurn(gameID string) {
	res, err := s.manager.EngineMove(gameID)
	if err != nil {
		if !errors.Is(err, game.ErrThinking) {
			log.Warn().Err(err).Str("game", gameID).Msg("engine move failed")
		}
		return
	}
	s.publishEngineMove(context.Background(), res)
}

func initMessage(g *game.GameState) map[string]any {
	return map[string]any{
		"type":      "init",
		"you":       g.Player,
		"game":      viewOf(g),
		"timestamp": time.Now().UTC(),
	}
}

func stateMessage(g *game.GameState) map[string]any {
	return map[string]any{
		"type": "state",
		"game": viewOf(g),
	}
}

func (s *Server) sendToUser(username string, payload map[string]any) {
	data, _ := json.Marshal(payload)
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	client, ok := s.connections[username]
	if !ok {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (c *wsClient) sendJSON(v any) {
	data, _ := json.Marshal(v)
	c.server.connMu.RLock()
	defer c.server.connMu.RUnlock()
	if cur, ok := c.server.connections[c.username]; !ok || cur != c {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
