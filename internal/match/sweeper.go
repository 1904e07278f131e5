package match

import (
	"context"
	"log"
	"time"

	"github.com/play2cash/backend/internal/events"
	"github.com/play2cash/backend/internal/models"
	"github.com/play2cash/backend/internal/store"
	"github.com/play2cash/backend/internal/wallet"
)

// StartSweeper runs the stale-match reconciliation loop: WAITING matches
// older than the staleness window are cancelled and their escrowed stake
// refunded, instead of disappearing from listings with money stranded.
func (s *Service) StartSweeper(ctx context.Context) {
	interval := time.Duration(s.cfg.SweepIntervalSecs) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Printf("[SWEEP] stale match sweeper started (window=%dm interval=%s)",
			s.cfg.StaleMatchMinutes, interval)
		for {
			select {
			case <-ctx.Done():
				log.Printf("[SWEEP] sweeper stopped: %v", ctx.Err())
				return
			case <-ticker.C:
				if n, err := s.SweepStaleMatches(ctx); err != nil {
					log.Printf("[SWEEP] sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("[SWEEP] cancelled %d stale matches", n)
				}
			}
		}
	}()
}

// SweepStaleMatches cancels every WAITING match older than the staleness
// window, refunding the creator's stake. Each match is handled in its own
// transaction with the status re-checked under lock, so a concurrent join
// acceptance wins cleanly.
func (s *Service) SweepStaleMatches(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-time.Duration(s.cfg.StaleMatchMinutes) * time.Minute)
	stale, err := s.store.ListStaleWaitingMatches(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, candidate := range stale {
		refunds := make(map[string]string)
		err := s.store.WithTx(ctx, func(tx store.Tx) error {
			m, err := tx.GetMatchForUpdate(candidate.ID)
			if err != nil {
				return err
			}
			// Re-check under lock: the match may have been joined or
			// cancelled since the listing.
			if m.Status != models.MatchWaiting || m.CreatedAt.After(cutoff) {
				return nil
			}

			players, err := tx.GetMatchPlayersForUpdate(m.ID)
			if err != nil {
				return err
			}
			for _, p := range players {
				row, err := wallet.Apply(tx, p.UserID, models.TxRefund, m.Stake, m.ID, "Stake refunded on expiry")
				if err != nil {
					return err
				}
				refunds[p.UserID] = row.BalanceAfter.String()
			}
			if err := tx.RejectPendingJoinRequests(m.ID, ""); err != nil {
				return err
			}
			m.Status = models.MatchCancelled
			return tx.UpdateMatch(m)
		})
		if err != nil {
			log.Printf("[SWEEP] failed to sweep match %s: %v", candidate.ID, err)
			continue
		}
		if len(refunds) == 0 {
			continue
		}

		swept++
		s.events.MatchEvent(ctx, events.MatchCancelled, candidate.ID, map[string]interface{}{"reason": "expired"})
		for userID, balance := range refunds {
			s.events.BalanceEvent(ctx, userID, balance)
		}
	}
	return swept, nil
}
