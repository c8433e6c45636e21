package analytics

import (
	"context"
	"encoding/json"
	"time"

	"connectfour/internal/game"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	EventMovePlayed   = "move_played"
	EventEngineMove   = "engine_move"
	EventGameFinished = "game_finished"
)

// Event is the envelope written to the topic.
type Event struct {
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// batchTimeout bounds how long Publish waits for a batch to fill.
const batchTimeout = 10 * time.Millisecond

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer}
}

// Publish writes one event keyed by key, so all events of a game land on the
// same partition. A nil Producer drops events.
func (p *Producer) Publish(ctx context.Context, key, event string, payload map[string]any) {
	if p == nil || p.writer == nil {
		return
	}
	data, err := json.Marshal(Event{Event: event, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode analytics event")
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data})
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("kafka publish failed")
	}
}

func (p *Producer) Close() {
	if p == nil || p.writer == nil {
		return
	}
	_ = p.writer.Close()
}

// GameFinishedPayload describes a game that reached a final status.
func GameFinishedPayload(g *game.GameState) map[string]any {
	return map[string]any{
		"gameId":     g.ID,
		"player":     g.Player,
		"winner":     g.Winner(),
		"outcome":    string(g.Outcome),
		"status":     g.Status,
		"difficulty": g.Session.Difficulty.String(),
		"moves":      g.Session.Turn,
		"nodes":      g.Nodes,
		"duration":   g.EndedAt.Sub(g.StartedAt).Seconds(),
		"startedAt":  g.StartedAt,
		"endedAt":    g.EndedAt,
	}
}
