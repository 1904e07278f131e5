package match

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/play2cash/backend/internal/models"
)

func TestParseGameDataHighscoreIgnoresBlob(t *testing.T) {
	state, err := parseGameData(models.ScoringHighscore, json.RawMessage(`{"taps":42}`))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if state != nil {
		t.Errorf("highscore parse returned state: %+v", state)
	}
}

func TestParseGameDataHighscoreRejectsBadJSON(t *testing.T) {
	_, err := parseGameData(models.ScoringHighscore, json.RawMessage(`{not json`))
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestParseGameDataRoundsValidation(t *testing.T) {
	cases := []struct {
		name string
		data string
		ok   bool
	}{
		{"valid mid-game", `{"round":2,"choices":{"a":["rock"]},"wins":{"a":1,"b":0}}`, true},
		{"valid complete", `{"round":3,"wins":{"a":2,"b":1},"gameComplete":true}`, true},
		{"missing data", ``, false},
		{"malformed", `{`, false},
		{"round zero", `{"round":0,"wins":{"a":1}}`, false},
		{"complete without tally", `{"round":3,"gameComplete":true}`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseGameData(models.ScoringRounds, json.RawMessage(tc.data))
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, models.ErrInvalidState) {
				t.Errorf("err = %v, want ErrInvalidState", err)
			}
		})
	}
}

func TestRoundsOutcome(t *testing.T) {
	s := &RoundsState{Wins: map[string]int{"a": 2, "b": 1}, GameComplete: true}
	winner, tie := s.outcome("a", "b")
	if tie || winner != "a" {
		t.Errorf("outcome = (%s, %v), want (a, false)", winner, tie)
	}

	s = &RoundsState{Wins: map[string]int{"a": 1, "b": 1}, GameComplete: true}
	winner, tie = s.outcome("a", "b")
	if !tie || winner != "" {
		t.Errorf("outcome = (%s, %v), want tie", winner, tie)
	}

	// A player missing from the tally counts as zero wins.
	s = &RoundsState{Wins: map[string]int{"b": 1}, GameComplete: true}
	winner, tie = s.outcome("a", "b")
	if tie || winner != "b" {
		t.Errorf("outcome = (%s, %v), want (b, false)", winner, tie)
	}
}
