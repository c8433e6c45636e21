package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"connectfour/internal/game"

	"github.com/spf13/viper"
)

type Config struct {
	Addr              string
	ReconnectWindow   time.Duration
	SweepInterval     time.Duration
	PostgresURL       string
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroup        string
	StatsInterval     time.Duration
	RedisURL          string
	SessionTTL        time.Duration
	DefaultDifficulty game.Difficulty
	LogLevel          string
	LogFormat         string
}

// Load reads configuration from the environment and, when path is set, from
// that file. Durations are whole seconds. PORT takes precedence over ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("ADDR", ":8080")
	v.SetDefault("RECONNECT_WINDOW", 30)
	v.SetDefault("SWEEP_INTERVAL", 5)
	v.SetDefault("KAFKA_TOPIC", "game-events")
	v.SetDefault("KAFKA_GROUP", "analytics-consumer")
	v.SetDefault("STATS_INTERVAL", 30)
	v.SetDefault("SESSION_TTL", 3600)
	v.SetDefault("DEFAULT_DIFFICULTY", "medium")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	for _, key := range []string{"PORT", "POSTGRES_URL", "KAFKA_BROKERS", "REDIS_URL"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	difficulty, err := game.ParseDifficulty(v.GetString("DEFAULT_DIFFICULTY"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr:              v.GetString("ADDR"),
		ReconnectWindow:   seconds(v, "RECONNECT_WINDOW"),
		SweepInterval:     seconds(v, "SWEEP_INTERVAL"),
		PostgresURL:       v.GetString("POSTGRES_URL"),
		KafkaBrokers:      splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:        v.GetString("KAFKA_TOPIC"),
		KafkaGroup:        v.GetString("KAFKA_GROUP"),
		StatsInterval:     seconds(v, "STATS_INTERVAL"),
		RedisURL:          v.GetString("REDIS_URL"),
		SessionTTL:        seconds(v, "SESSION_TTL"),
		DefaultDifficulty: difficulty,
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
	}
	if port := v.GetString("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if cfg.SweepInterval <= 0 {
		return nil, errors.New("SWEEP_INTERVAL must be positive")
	}
	return cfg, nil
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
