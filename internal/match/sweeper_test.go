package match

import (
	"testing"

	"github.com/play2cash/backend/internal/models"
)

func TestSweepCancelsStaleWaitingMatches(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "carol", "100")

	stale, _ := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "20"))
	fresh, _ := e.svc.Create(e.ctx, "carol", "tap-race", dec(t, "20"))
	e.st.SetMatchCreatedAt(stale.ID, timeAgoMinutes(e.cfg.StaleMatchMinutes+1))

	n, err := e.svc.SweepStaleMatches(e.ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}

	// The stale match is cancelled and the escrow returned.
	got, _ := e.st.GetMatch(e.ctx, stale.ID)
	if got.Status != models.MatchCancelled {
		t.Errorf("stale match status = %s, want %s", got.Status, models.MatchCancelled)
	}
	e.mustBalance(t, "alice", "100")
	assertMatchLedgerZero(t, e, stale.ID)

	// The fresh match is untouched.
	got, _ = e.st.GetMatch(e.ctx, fresh.ID)
	if got.Status != models.MatchWaiting {
		t.Errorf("fresh match status = %s, want %s", got.Status, models.MatchWaiting)
	}
	e.mustBalance(t, "carol", "80")
}

func TestSweepRejectsPendingRequests(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "bob", "50")

	m, _ := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "20"))
	req, _ := e.svc.RequestJoin(e.ctx, m.ID, "bob")
	e.st.SetMatchCreatedAt(m.ID, timeAgoMinutes(e.cfg.StaleMatchMinutes+1))

	if _, err := e.svc.SweepStaleMatches(e.ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	r, _ := e.st.GetJoinRequest(e.ctx, req.ID)
	if r.Status != models.RequestRejected {
		t.Errorf("request status = %s, want %s", r.Status, models.RequestRejected)
	}
}

func TestSweepIgnoresFreshAndNonWaiting(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "bob", "50")

	// An old but already-active match must never be swept.
	m := e.pairUp(t, "alice", "bob", "20")
	e.st.SetMatchCreatedAt(m.ID, timeAgoMinutes(e.cfg.StaleMatchMinutes+60))

	n, err := e.svc.SweepStaleMatches(e.ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("swept = %d, want 0", n)
	}
	got, _ := e.st.GetMatch(e.ctx, m.ID)
	if got.Status != models.MatchActive {
		t.Errorf("status = %s, want %s", got.Status, models.MatchActive)
	}
}
