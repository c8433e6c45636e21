package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type CompletedGame struct {
	ID         string
	Player     string
	Winner     string
	Outcome    string
	Status     string
	Difficulty string
	Moves      int
	Nodes      int
	StartedAt  time.Time
	EndedAt    time.Time
}

type LeaderboardRow struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Games    int    `json:"games"`
}

type Store interface {
	SaveGame(ctx context.Context, game CompletedGame) error
	// GetLeaderboard ranks players by wins against the engine. An empty
	// difficulty covers every level.
	GetLeaderboard(ctx context.Context, difficulty string, limit int) ([]LeaderboardRow, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) EnsureTables(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	player TEXT NOT NULL,
	winner TEXT,
	outcome TEXT,
	status TEXT,
	difficulty TEXT,
	moves INTEGER,
	nodes BIGINT,
	started_at TIMESTAMP,
	ended_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS games_player_idx ON games (player);
`)
	return err
}

func (p *PostgresStore) SaveGame(ctx context.Context, game CompletedGame) error {
	if p == nil || p.pool == nil {
		return nil
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO games (id, player, winner, outcome, status, difficulty, moves, nodes, started_at, ended_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) ON CONFLICT (id) DO NOTHING`,
		game.ID, game.Player, game.Winner, game.Outcome, game.Status, game.Difficulty,
		game.Moves, game.Nodes, game.StartedAt, game.EndedAt)
	if err != nil {
		log.Error().Err(err).Str("game", game.ID).Msg("failed to save game")
		return fmt.Errorf("save game %s: %w", game.ID, err)
	}
	return nil
}

func (p *PostgresStore) GetLeaderboard(ctx context.Context, difficulty string, limit int) ([]LeaderboardRow, error) {
	rows, err := p.pool.Query(ctx, `
SELECT player,
	COUNT(*) FILTER (WHERE winner = player) AS wins,
	COUNT(*) AS games
FROM games
WHERE status = 'finished' AND ($1 = '' OR difficulty = $1)
GROUP BY player
HAVING COUNT(*) FILTER (WHERE winner = player) > 0
ORDER BY wins DESC, games ASC
LIMIT $2`, difficulty, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.Username, &row.Wins, &row.Games); err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}
