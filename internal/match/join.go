package match

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/play2cash/backend/internal/events"
	"github.com/play2cash/backend/internal/models"
	"github.com/play2cash/backend/internal/store"
	"github.com/play2cash/backend/internal/wallet"
)

// RequestJoin files a claim on the second seat of a WAITING match. The
// balance check here is soft; the authoritative escrow happens at accept
// time under the match row lock.
func (s *Service) RequestJoin(ctx context.Context, matchID, userID string) (*models.JoinRequest, error) {
	req := &models.JoinRequest{
		ID:          uuid.NewString(),
		MatchID:     matchID,
		RequesterID: userID,
		Status:      models.RequestPending,
	}

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		m, err := tx.GetMatchForUpdate(matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchWaiting {
			// A match that already left WAITING is not discoverable as open.
			return fmt.Errorf("match is not open for joining: %w", models.ErrNotFound)
		}
		if m.CreatedBy == userID {
			return fmt.Errorf("cannot join your own match: %w", models.ErrForbidden)
		}

		exists, err := tx.HasPendingJoinRequest(matchID, userID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("join request already pending: %w", models.ErrConflict)
		}

		requester, err := tx.GetUserForUpdate(userID)
		if err != nil {
			return err
		}
		if requester.IsBlocked {
			return fmt.Errorf("account is blocked: %w", models.ErrForbidden)
		}
		if requester.Balance.LessThan(m.Stake) {
			return fmt.Errorf("stake is %s: %w", m.Stake.String(), models.ErrInsufficientBalance)
		}

		return tx.CreateJoinRequest(req)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[MATCH] join requested match=%s user=%s request=%s", matchID, userID, req.ID)
	s.events.MatchEvent(ctx, events.JoinRequested, matchID, map[string]interface{}{"requestId": req.ID})
	return req, nil
}

// AcceptJoin is the single point of seat assignment. It runs under the
// match row lock, so of two concurrent accepts exactly one sees the match
// still WAITING; the loser gets ErrConflict. The joiner's stake escrow,
// the seat row, the request resolution and the COUNTDOWN transition commit
// as one unit; if the escrow fails nothing else persists.
func (s *Service) AcceptJoin(ctx context.Context, matchID, hostID, requestID string) (time.Time, error) {
	var countdownStart time.Time
	var joinerID, joinerBalance string

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		m, err := tx.GetMatchForUpdate(matchID)
		if err != nil {
			return err
		}
		if m.CreatedBy != hostID {
			return fmt.Errorf("only the creator may accept join requests: %w", models.ErrForbidden)
		}
		switch m.Status {
		case models.MatchWaiting:
			// proceed
		case models.MatchCountdown, models.MatchActive:
			return fmt.Errorf("seat already taken: %w", models.ErrConflict)
		default:
			return fmt.Errorf("match is %s: %w", m.Status, models.ErrInvalidState)
		}

		req, err := tx.GetJoinRequestForUpdate(requestID)
		if err != nil {
			return err
		}
		if req.MatchID != matchID {
			return fmt.Errorf("request does not belong to this match: %w", models.ErrNotFound)
		}
		if req.Status != models.RequestPending {
			return fmt.Errorf("request already %s: %w", req.Status, models.ErrConflict)
		}

		// Authoritative escrow; rolls back the whole accept on failure.
		row, err := wallet.Apply(tx, req.RequesterID, models.TxStake, m.Stake.Neg(), m.ID, "Stake escrowed on join")
		if err != nil {
			return err
		}
		joinerID = req.RequesterID
		joinerBalance = row.BalanceAfter.String()

		if err := tx.CreateMatchPlayer(&models.MatchPlayer{MatchID: m.ID, UserID: req.RequesterID}); err != nil {
			return err
		}
		if err := tx.UpdateJoinRequestStatus(requestID, models.RequestAccepted); err != nil {
			return err
		}
		if err := tx.RejectPendingJoinRequests(matchID, requestID); err != nil {
			return err
		}

		countdownStart = time.Now()
		m.Status = models.MatchCountdown
		m.CountdownStartedAt = sql.NullTime{Time: countdownStart, Valid: true}
		return tx.UpdateMatch(m)
	})
	if err != nil {
		return time.Time{}, err
	}

	log.Printf("[MATCH] join accepted match=%s joiner=%s", matchID, joinerID)
	s.events.MatchEvent(ctx, events.JoinAccepted, matchID, map[string]interface{}{
		"requestId":          requestID,
		"countdownStartTime": countdownStart.UTC().Format(time.RFC3339),
	})
	s.events.BalanceEvent(ctx, joinerID, joinerBalance)
	return countdownStart, nil
}
