package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"connectfour/internal/analytics"
	"connectfour/internal/config"
	"connectfour/internal/server"
	"connectfour/internal/storage"

	"github.com/rs/zerolog/log"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	config.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	if cfg.PostgresURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			log.Warn().Err(err).Msg("postgres disabled")
		} else {
			if err := pg.EnsureTables(ctx); err != nil {
				log.Error().Err(err).Msg("postgres ensure tables failed")
			}
			defer pg.Close()
			store = pg
		}
	}

	var cache storage.SessionCache
	if cfg.RedisURL != "" {
		rc, err := storage.NewRedisSessionCache(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Warn().Err(err).Msg("redis session cache disabled")
		} else {
			defer rc.Close()
			cache = rc
		}
	}

	var producer *analytics.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = analytics.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	srv := server.New(server.Config{
		ReconnectWindow:   cfg.ReconnectWindow,
		SweepInterval:     cfg.SweepInterval,
		DefaultDifficulty: cfg.DefaultDifficulty,
		Store:             store,
		Cache:             cache,
		Analytics:         producer,
	})

	log.Info().Str("addr", cfg.Addr).Stringer("difficulty", cfg.DefaultDifficulty).Msg("server listening")
	if err := srv.Run(ctx, cfg.Addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server shut down")
}
