package match

import (
	"encoding/json"
	"fmt"

	"github.com/play2cash/backend/internal/models"
)

// RoundsState is the embedded state blob of round-based games (the
// rock-paper-scissors variant). The client submits the whole evolving state;
// its cumulative tally is authoritative over any separately submitted score.
type RoundsState struct {
	Round        int              `json:"round"`
	Choices      map[string][]string `json:"choices"`
	Wins         map[string]int   `json:"wins"`
	GameComplete bool             `json:"gameComplete"`
}

// parseGameData validates a submitted payload for the game's scoring mode.
// Unknown scoring modes are treated as plain highscore games.
func parseGameData(scoring string, data json.RawMessage) (*RoundsState, error) {
	if scoring != models.ScoringRounds {
		// Highscore games may attach an arbitrary blob; it only has to be
		// valid JSON (or absent).
		if len(data) > 0 && !json.Valid(data) {
			return nil, fmt.Errorf("game data is not valid JSON: %w", models.ErrInvalidState)
		}
		return nil, nil
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("round-based game requires game data: %w", models.ErrInvalidState)
	}
	var state RoundsState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("malformed game data: %v: %w", err, models.ErrInvalidState)
	}
	if state.Round < 1 {
		return nil, fmt.Errorf("game data round must be >= 1: %w", models.ErrInvalidState)
	}
	if state.GameComplete && len(state.Wins) == 0 {
		return nil, fmt.Errorf("completed game data has no win tally: %w", models.ErrInvalidState)
	}
	return &state, nil
}

// outcome reports the state's authoritative winner. An empty winner with
// tie=true means both players finished level.
func (s *RoundsState) outcome(p1, p2 string) (winnerID string, tie bool) {
	w1, w2 := s.Wins[p1], s.Wins[p2]
	switch {
	case w1 > w2:
		return p1, false
	case w2 > w1:
		return p2, false
	default:
		return "", true
	}
}
