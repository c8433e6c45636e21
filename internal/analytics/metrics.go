package analytics

import (
	"sort"
	"sync"
	"time"
)

// Metrics aggregates the event stream.
type Metrics struct {
	mu            sync.Mutex
	outcomes      map[string]map[string]int // difficulty -> outcome -> count
	gameDurations []float64
	gamesPerDay   map[string]int
	userGames     map[string]int
	userWins      map[string]int
	searches      map[int]searchCost // depth -> cost
	movesPlayed   int
	totalGames    int
}

type searchCost struct {
	count     int
	nodes     float64
	elapsedMs float64
}

// Summary is a point-in-time view of Metrics.
type Summary struct {
	TotalGames      int                       `json:"totalGames"`
	MovesPlayed     int                       `json:"movesPlayed"`
	AverageDuration float64                   `json:"averageDuration"`
	Outcomes        map[string]map[string]int `json:"outcomes"`
	GamesPerDay     map[string]int            `json:"gamesPerDay"`
	TopWinners      []UserCount               `json:"topWinners"`
	Search          []DepthCost               `json:"search"`
}

type UserCount struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Games    int    `json:"games"`
}

// DepthCost is the mean search cost at one depth.
type DepthCost struct {
	Depth     int     `json:"depth"`
	Searches  int     `json:"searches"`
	AvgNodes  float64 `json:"avgNodes"`
	AvgMillis float64 `json:"avgMillis"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		outcomes:    make(map[string]map[string]int),
		gamesPerDay: make(map[string]int),
		userGames:   make(map[string]int),
		userWins:    make(map[string]int),
		searches:    make(map[int]searchCost),
	}
}

// Record folds one event into the aggregate. Unknown events are ignored.
func (m *Metrics) Record(e Event) {
	switch e.Event {
	case EventGameFinished:
		m.recordGameFinished(e.Payload, e.Timestamp)
	case EventEngineMove:
		m.recordEngineMove(e.Payload)
	case EventMovePlayed:
		m.mu.Lock()
		m.movesPlayed++
		m.mu.Unlock()
	}
}

func (m *Metrics) recordGameFinished(payload map[string]any, timestamp time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalGames++

	difficulty, _ := payload["difficulty"].(string)
	outcome, _ := payload["outcome"].(string)
	if m.outcomes[difficulty] == nil {
		m.outcomes[difficulty] = make(map[string]int)
	}
	m.outcomes[difficulty][outcome]++

	if player, ok := payload["player"].(string); ok && player != "" {
		m.userGames[player]++
		if winner, _ := payload["winner"].(string); winner == player {
			m.userWins[player]++
		}
	}
	if duration, ok := payload["duration"].(float64); ok {
		m.gameDurations = append(m.gameDurations, duration)
	}
	m.gamesPerDay[timestamp.Format("2006-01-02")]++
}

func (m *Metrics) recordEngineMove(payload map[string]any) {
	depth, ok := payload["depth"].(float64)
	if !ok {
		return
	}
	nodes, _ := payload["nodes"].(float64)
	elapsed, _ := payload["elapsedMs"].(float64)

	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.searches[int(depth)]
	c.count++
	c.nodes += nodes
	c.elapsedMs += elapsed
	m.searches[int(depth)] = c
}

func (m *Metrics) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		TotalGames:  m.totalGames,
		MovesPlayed: m.movesPlayed,
		Outcomes:    make(map[string]map[string]int, len(m.outcomes)),
		GamesPerDay: make(map[string]int, len(m.gamesPerDay)),
	}
	if len(m.gameDurations) > 0 {
		sum := 0.0
		for _, d := range m.gameDurations {
			sum += d
		}
		s.AverageDuration = sum / float64(len(m.gameDurations))
	}
	for d, byOutcome := range m.outcomes {
		cp := make(map[string]int, len(byOutcome))
		for k, v := range byOutcome {
			cp[k] = v
		}
		s.Outcomes[d] = cp
	}
	for k, v := range m.gamesPerDay {
		s.GamesPerDay[k] = v
	}
	for user, games := range m.userGames {
		if wins := m.userWins[user]; wins > 0 {
			s.TopWinners = append(s.TopWinners, UserCount{Username: user, Wins: wins, Games: games})
		}
	}
	sort.Slice(s.TopWinners, func(i, j int) bool {
		if s.TopWinners[i].Wins != s.TopWinners[j].Wins {
			return s.TopWinners[i].Wins > s.TopWinners[j].Wins
		}
		return s.TopWinners[i].Username < s.TopWinners[j].Username
	})
	for depth, c := range m.searches {
		s.Search = append(s.Search, DepthCost{
			Depth:     depth,
			Searches:  c.count,
			AvgNodes:  c.nodes / float64(c.count),
			AvgMillis: c.elapsedMs / float64(c.count),
		})
	}
	sort.Slice(s.Search, func(i, j int) bool { return s.Search[i].Depth < s.Search[j].Depth })
	return s
}
