package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectfour/internal/analytics"
	"connectfour/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	config.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	brokers := cfg.KafkaBrokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroup,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("analytics consumer listening")

	metrics := analytics.NewMetrics()
	go printStats(ctx, metrics, cfg.StatsInterval)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				printSummary(metrics.Summary())
				return
			}
			log.Fatal().Err(err).Msg("read error")
		}
		var e analytics.Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			log.Warn().Err(err).Msg("failed to unmarshal event")
			continue
		}
		metrics.Record(e)
		log.Debug().
			Str("event", e.Event).
			Interface("gameId", e.Payload["gameId"]).
			Interface("winner", e.Payload["winner"]).
			Msg("event")
	}
}

func printStats(ctx context.Context, m *analytics.Metrics, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			printSummary(m.Summary())
		}
	}
}

func printSummary(s analytics.Summary) {
	log.Info().
		Int("games", s.TotalGames).
		Int("moves", s.MovesPlayed).
		Float64("avgDurationSec", s.AverageDuration).
		Interface("outcomes", s.Outcomes).
		Interface("gamesPerDay", s.GamesPerDay).
		Interface("topWinners", s.TopWinners).
		Interface("search", s.Search).
		Msg("analytics summary")
}
