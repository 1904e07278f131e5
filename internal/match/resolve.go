package match

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/play2cash/backend/internal/events"
	"github.com/play2cash/backend/internal/models"
	"github.com/play2cash/backend/internal/store"
	"github.com/play2cash/backend/internal/wallet"
	"github.com/shopspring/decimal"
)

// Tie payout policies. "refund" returns each player their stake and waives
// the fee; "void" retains the whole pool as platform revenue.
const (
	TieRefund = "refund"
	TieVoid   = "void"
)

// SaveGameResult records one player's submission and, once both sides are
// in (or the embedded round state reports completion), settles the match:
// winner determination, fee, ledger legs, revenue row and the COMPLETED
// transition all commit as one transaction. A crash before commit leaves
// the match ACTIVE with scores present, from where a resubmission retries
// the identical settlement; the WINNINGS idempotency guard plus the status
// check make double-payment impossible.
func (s *Service) SaveGameResult(ctx context.Context, matchID, userID string, score decimal.Decimal, gameData json.RawMessage) error {
	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	game, err := s.store.GetGame(ctx, m.GameID)
	if err != nil {
		return fmt.Errorf("load game for match %s: %w", matchID, err)
	}
	state, err := parseGameData(game.Scoring, gameData)
	if err != nil {
		return err
	}

	// Fee legs are credited to the platform user so the per-match ledger
	// sums to zero.
	platform, err := s.store.GetUserByAccountID(ctx, store.PlatformAccountID)
	if err != nil {
		return fmt.Errorf("platform account missing: %w", err)
	}

	var completed bool
	var winnerID string
	balances := make(map[string]string)

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		m, err := tx.GetMatchForUpdate(matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchActive {
			return fmt.Errorf("match is %s, results only accepted while %s: %w",
				m.Status, models.MatchActive, models.ErrInvalidState)
		}

		players, err := tx.GetMatchPlayersForUpdate(matchID)
		if err != nil {
			return err
		}
		if !isSeated(players, userID) {
			return fmt.Errorf("user is not a player in this match: %w", models.ErrForbidden)
		}

		now := time.Now()
		// Resubmission before resolution overwrites the caller's own score.
		if err := tx.UpdateMatchPlayerResult(matchID, userID, score, gameData, now); err != nil {
			return err
		}
		for i := range players {
			if players[i].UserID == userID {
				players[i].Score = decimal.NullDecimal{Decimal: score, Valid: true}
				players[i].SubmittedAt = sql.NullTime{Time: now, Valid: true}
			}
		}
		if state != nil {
			m.GameState = gameData
		}

		if !resolutionReady(players, state) {
			return tx.UpdateMatch(m)
		}
		if len(players) != 2 {
			return fmt.Errorf("match has %d seats, cannot resolve", len(players))
		}

		// Recovery guard: settlement legs with the match still ACTIVE
		// cannot happen under atomic commit, but never pay twice. When
		// they do exist, rebuild the outcome fields from the ledger so
		// the completed row still names the winner and the fee.
		prior, err := tx.ListMatchTransactions(matchID)
		if err != nil {
			return err
		}
		settled := false
		priorFee := decimal.Zero
		for _, tr := range prior {
			switch tr.Type {
			case models.TxWinnings:
				settled = true
				m.WinnerID = sql.NullString{String: tr.UserID, Valid: true}
			case models.TxFee:
				settled = true
				priorFee = priorFee.Add(tr.Amount)
			case models.TxRefund:
				settled = true
			}
		}
		if settled {
			log.Printf("[MATCH] settlement already recorded for %s, completing only", matchID)
			m.Status = models.MatchCompleted
			m.PlatformFee = priorFee
			m.CompletedAt = sql.NullTime{Time: now, Valid: true}
			return tx.UpdateMatch(m)
		}

		winner, tie := determineWinner(players, state)
		pool := m.Stake.Mul(decimal.NewFromInt(2))
		fee := decimal.Zero

		switch {
		case tie && s.cfg.TiePolicy == TieVoid:
			// Pool retained by the platform; nothing returns to the players.
			fee = pool
			row, err := wallet.Apply(tx, platform.ID, models.TxFee, pool, m.ID, "Void match pool retained")
			if err != nil {
				return err
			}
			balances[platform.ID] = row.BalanceAfter.String()

		case tie:
			// Default policy: full refund, fee waived, pool fully disburses.
			for _, p := range players {
				row, err := wallet.Apply(tx, p.UserID, models.TxRefund, m.Stake, m.ID, "Stake refunded on tie")
				if err != nil {
					return err
				}
				balances[p.UserID] = row.BalanceAfter.String()
			}

		default:
			fee = pool.Mul(game.FeePercentage).Div(decimal.NewFromInt(100)).Round(2)
			winnings := pool.Sub(fee)
			row, err := wallet.Apply(tx, winner, models.TxWinnings, winnings, m.ID, "Match winnings")
			if err != nil {
				return err
			}
			balances[winner] = row.BalanceAfter.String()
			if fee.IsPositive() {
				feeRow, err := wallet.Apply(tx, platform.ID, models.TxFee, fee, m.ID, "Platform fee")
				if err != nil {
					return err
				}
				balances[platform.ID] = feeRow.BalanceAfter.String()
			}
			winnerID = winner
		}

		if err := tx.CreatePlatformRevenue(m.ID, fee); err != nil {
			return err
		}

		completed = true
		m.Status = models.MatchCompleted
		m.PlatformFee = fee
		m.CompletedAt = sql.NullTime{Time: now, Valid: true}
		if winnerID != "" {
			m.WinnerID = sql.NullString{String: winnerID, Valid: true}
		}
		return tx.UpdateMatch(m)
	})
	if err != nil {
		return err
	}

	s.events.MatchEvent(ctx, events.ResultSubmitted, matchID, map[string]interface{}{"userId": userID})
	if completed {
		extra := map[string]interface{}{}
		if winnerID != "" {
			extra["winnerId"] = winnerID
		}
		log.Printf("[MATCH] completed id=%s winner=%s", matchID, winnerID)
		s.events.MatchEvent(ctx, events.MatchCompleted, matchID, extra)
		for uid, balance := range balances {
			s.events.BalanceEvent(ctx, uid, balance)
		}
	}
	return nil
}

// resolutionReady reports whether the match can settle: both submissions
// present, or the embedded round state says the game is over.
func resolutionReady(players []models.MatchPlayer, state *RoundsState) bool {
	if state != nil && state.GameComplete {
		return true
	}
	if len(players) != 2 {
		return false
	}
	return players[0].SubmittedAt.Valid && players[1].SubmittedAt.Valid
}

// determineWinner picks the winning seat. The round-based state's own
// tally takes precedence over submitted scores; otherwise higher score
// wins, equal scores tie.
func determineWinner(players []models.MatchPlayer, state *RoundsState) (winnerID string, tie bool) {
	p1, p2 := players[0], players[1]

	if state != nil && state.GameComplete {
		return state.outcome(p1.UserID, p2.UserID)
	}

	s1, s2 := decimal.Zero, decimal.Zero
	if p1.Score.Valid {
		s1 = p1.Score.Decimal
	}
	if p2.Score.Valid {
		s2 = p2.Score.Decimal
	}
	switch {
	case s1.GreaterThan(s2):
		return p1.UserID, false
	case s2.GreaterThan(s1):
		return p2.UserID, false
	default:
		return "", true
	}
}
