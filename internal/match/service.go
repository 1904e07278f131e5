package match

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/play2cash/backend/internal/config"
	"github.com/play2cash/backend/internal/events"
	"github.com/play2cash/backend/internal/models"
	"github.com/play2cash/backend/internal/store"
	"github.com/play2cash/backend/internal/wallet"
	"github.com/shopspring/decimal"
)

// Service drives the match lifecycle: WAITING -> COUNTDOWN -> ACTIVE ->
// COMPLETED, with CANCELLED reachable from the first two. Every mutation
// runs inside one store transaction holding the match row lock, which is
// the serialization point against double-join, double-start and
// double-resolution.
type Service struct {
	store  store.Store
	cfg    *config.Config
	events *events.Publisher
}

func NewService(st store.Store, cfg *config.Config, pub *events.Publisher) *Service {
	return &Service{store: st, cfg: cfg, events: pub}
}

// generateShareCode returns a short code for the match invite link.
func generateShareCode() string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	result := make([]byte, 8)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

// Create escrows the creator's stake and opens a WAITING match with the
// creator in the first seat. Stake debit, match row and seat row commit
// together.
func (s *Service) Create(ctx context.Context, userID, gameSlug string, stake decimal.Decimal) (*models.Match, error) {
	game, err := s.store.GetGameBySlug(ctx, gameSlug)
	if err != nil {
		return nil, fmt.Errorf("game %q: %w", gameSlug, err)
	}
	if !game.IsActive {
		return nil, fmt.Errorf("game %q is not active: %w", gameSlug, models.ErrInvalidState)
	}
	if stake.LessThan(game.MinStake) || stake.GreaterThan(game.MaxStake) {
		return nil, fmt.Errorf("stake %s outside allowed range %s-%s: %w",
			stake.String(), game.MinStake.String(), game.MaxStake.String(), models.ErrInvalidState)
	}
	// Platform-wide limits clamp whatever the game row allows.
	platformMin := decimal.NewFromInt(int64(s.cfg.MinStake))
	platformMax := decimal.NewFromInt(int64(s.cfg.MaxStake))
	if stake.LessThan(platformMin) || stake.GreaterThan(platformMax) {
		return nil, fmt.Errorf("stake %s outside platform limits %d-%d: %w",
			stake.String(), s.cfg.MinStake, s.cfg.MaxStake, models.ErrInvalidState)
	}

	m := &models.Match{
		ID:        uuid.NewString(),
		GameID:    game.ID,
		Stake:     stake,
		Status:    models.MatchWaiting,
		CreatedBy: userID,
		ShareCode: generateShareCode(),
	}

	var creatorBalance string
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		creator, err := tx.GetUserForUpdate(userID)
		if err != nil {
			return err
		}
		if creator.IsBlocked {
			return fmt.Errorf("account is blocked: %w", models.ErrForbidden)
		}

		row, err := wallet.Apply(tx, userID, models.TxStake, stake.Neg(), m.ID, "Stake escrowed on match creation")
		if err != nil {
			return err
		}
		creatorBalance = row.BalanceAfter.String()

		if err := tx.CreateMatch(m); err != nil {
			return fmt.Errorf("create match: %w", err)
		}
		return tx.CreateMatchPlayer(&models.MatchPlayer{MatchID: m.ID, UserID: userID})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[MATCH] created id=%s game=%s stake=%s by=%s", m.ID, gameSlug, stake.String(), userID)
	s.events.MatchEvent(ctx, events.MatchCreated, m.ID, map[string]interface{}{"shareCode": m.ShareCode})
	s.events.BalanceEvent(ctx, userID, creatorBalance)
	return m, nil
}

// StartAfterCountdown transitions COUNTDOWN -> ACTIVE. The caller's timing
// is not trusted: elapsed time is re-derived from the server-recorded
// countdown start. A retried call finds the match ACTIVE and fails, so a
// match never double-starts.
func (s *Service) StartAfterCountdown(ctx context.Context, matchID, userID string) error {
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		m, err := tx.GetMatchForUpdate(matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchCountdown {
			return fmt.Errorf("match is %s, not %s: %w", m.Status, models.MatchCountdown, models.ErrInvalidState)
		}

		players, err := tx.GetMatchPlayersForUpdate(matchID)
		if err != nil {
			return err
		}
		if !isSeated(players, userID) {
			return fmt.Errorf("user is not a player in this match: %w", models.ErrForbidden)
		}

		if !m.CountdownStartedAt.Valid {
			return fmt.Errorf("countdown never started: %w", models.ErrInvalidState)
		}
		elapsed := time.Since(m.CountdownStartedAt.Time)
		if elapsed < time.Duration(s.cfg.CountdownSeconds)*time.Second {
			return fmt.Errorf("countdown has not elapsed (%.0fs of %ds): %w",
				elapsed.Seconds(), s.cfg.CountdownSeconds, models.ErrInvalidState)
		}

		m.Status = models.MatchActive
		m.StartedAt = sql.NullTime{Time: time.Now(), Valid: true}
		return tx.UpdateMatch(m)
	})
	if err != nil {
		return err
	}

	log.Printf("[MATCH] started id=%s", matchID)
	s.events.MatchEvent(ctx, events.MatchStarted, matchID, nil)
	return nil
}

// Cancel aborts a match that has not started playing. Only the creator may
// cancel, and only while WAITING or in COUNTDOWN. Every escrowed stake is
// refunded in the same transaction that flips the status.
func (s *Service) Cancel(ctx context.Context, matchID, requesterID string) error {
	refunds := make(map[string]string)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		m, err := tx.GetMatchForUpdate(matchID)
		if err != nil {
			return err
		}
		if m.CreatedBy != requesterID {
			return fmt.Errorf("only the creator may cancel: %w", models.ErrForbidden)
		}
		if m.Status != models.MatchWaiting && m.Status != models.MatchCountdown {
			return fmt.Errorf("match is %s: %w", m.Status, models.ErrInvalidState)
		}

		players, err := tx.GetMatchPlayersForUpdate(matchID)
		if err != nil {
			return err
		}
		for _, p := range players {
			row, err := wallet.Apply(tx, p.UserID, models.TxRefund, m.Stake, m.ID, "Stake refunded on cancellation")
			if err != nil {
				return err
			}
			refunds[p.UserID] = row.BalanceAfter.String()
		}

		if err := tx.RejectPendingJoinRequests(matchID, ""); err != nil {
			return err
		}
		m.Status = models.MatchCancelled
		return tx.UpdateMatch(m)
	})
	if err != nil {
		return err
	}

	log.Printf("[MATCH] cancelled id=%s by=%s refunds=%d", matchID, requesterID, len(refunds))
	s.events.MatchEvent(ctx, events.MatchCancelled, matchID, nil)
	for userID, balance := range refunds {
		s.events.BalanceEvent(ctx, userID, balance)
	}
	return nil
}

// ListOpen returns joinable matches, hiding WAITING matches older than the
// staleness window from discovery.
func (s *Service) ListOpen(ctx context.Context) ([]models.Match, error) {
	cutoff := time.Now().Add(-time.Duration(s.cfg.StaleMatchMinutes) * time.Minute)
	return s.store.ListOpenMatches(ctx, cutoff)
}

// Get returns a match by id.
func (s *Service) Get(ctx context.Context, matchID string) (*models.Match, error) {
	return s.store.GetMatch(ctx, matchID)
}

// GetByShareCode resolves an invite link's code to its match.
func (s *Service) GetByShareCode(ctx context.Context, code string) (*models.Match, error) {
	return s.store.GetMatchByShareCode(ctx, code)
}

// PlayerResult is one side of a completed match result.
type PlayerResult struct {
	UserID string `json:"userId"`
	Score  string `json:"score"`
}

// Result is the settled outcome of a completed match.
type Result struct {
	WinnerID    *string      `json:"winnerId"`
	Player1     PlayerResult `json:"player1"`
	Player2     PlayerResult `json:"player2"`
	Stake       string       `json:"stake"`
	PlatformFee string       `json:"platformFee"`
}

// GetResult returns the settled outcome of a COMPLETED match.
func (s *Service) GetResult(ctx context.Context, matchID string) (*Result, error) {
	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MatchCompleted {
		return nil, fmt.Errorf("match is %s, not completed: %w", m.Status, models.ErrInvalidState)
	}

	players, err := s.store.GetMatchPlayers(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if len(players) != 2 {
		return nil, fmt.Errorf("completed match has %d seats", len(players))
	}

	res := &Result{
		Player1:     playerResult(players[0]),
		Player2:     playerResult(players[1]),
		Stake:       m.Stake.String(),
		PlatformFee: m.PlatformFee.String(),
	}
	if m.WinnerID.Valid {
		winner := m.WinnerID.String
		res.WinnerID = &winner
	}
	return res, nil
}

func playerResult(p models.MatchPlayer) PlayerResult {
	score := ""
	if p.Score.Valid {
		score = p.Score.Decimal.String()
	}
	return PlayerResult{UserID: p.UserID, Score: score}
}

func isSeated(players []models.MatchPlayer, userID string) bool {
	for _, p := range players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
