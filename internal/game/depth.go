package game

import (
	"fmt"
	"strings"
)

// Difficulty is the offset added to the base search depth.
type Difficulty int

const (
	VeryEasy Difficulty = -4
	Easy     Difficulty = -3
	Medium   Difficulty = -2
	Hard     Difficulty = -1

	DefaultDifficulty = Medium
)

// MinDepth is the shallowest search the engine will run.
const MinDepth = 1

// BaseDepth maps the number of open columns to a search depth. Fewer open
// columns means a narrower tree, so the engine can afford to look further.
// At one or two open columns the depth covers the rest of the game.
func BaseDepth(open int) int {
	switch open {
	case 7:
		return 5
	case 6:
		return 6
	case 5:
		return 7
	case 4:
		return 9
	case 3:
		return 12
	case 2, 1:
		return 18
	}
	return 0
}

// OpenColumnCount is the number of columns that still accept a piece.
func OpenColumnCount(g Grid) int {
	return len(LegalMoves(g))
}

// EffectiveDepth is the search depth for g at difficulty d, never below
// MinDepth.
func EffectiveDepth(g Grid, d Difficulty) int {
	return max(MinDepth, BaseDepth(OpenColumnCount(g))+int(d))
}

// Next cycles through the levels from easiest to hardest and back.
func (d Difficulty) Next() Difficulty {
	switch d {
	case VeryEasy:
		return Easy
	case Easy:
		return Medium
	case Medium:
		return Hard
	}
	return VeryEasy
}

func (d Difficulty) Valid() bool {
	return d >= VeryEasy && d <= Hard
}

func (d Difficulty) String() string {
	switch d {
	case VeryEasy:
		return "very-easy"
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	}
	return fmt.Sprintf("difficulty(%d)", int(d))
}

// ParseDifficulty accepts the labels produced by String.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "very-easy", "very_easy", "veryeasy":
		return VeryEasy, nil
	case "easy":
		return Easy, nil
	case "medium", "":
		return Medium, nil
	case "hard":
		return Hard, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
}

func (d Difficulty) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Difficulty) UnmarshalText(b []byte) error {
	v, err := ParseDifficulty(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
