package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/play2cash/backend/internal/config"
	"github.com/play2cash/backend/internal/models"
	"github.com/play2cash/backend/internal/store"
	"github.com/shopspring/decimal"
)

// Test fixture: in-memory store with the platform user and one game of each
// scoring mode seeded.
type env struct {
	ctx context.Context
	st  *store.Memory
	cfg *config.Config
	svc *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		ctx: context.Background(),
		st:  store.NewMemory(),
		cfg: &config.Config{
			FeePercentage:     5,
			CountdownSeconds:  0,
			StaleMatchMinutes: 10,
			SweepIntervalSecs: 60,
			MinStake:          1,
			MaxStake:          1000,
			TiePolicy:         TieRefund,
		},
	}
	e.svc = NewService(e.st, e.cfg, nil)

	err := e.st.WithTx(e.ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(&models.User{
			ID:        "platform",
			AccountID: store.PlatformAccountID,
			Email:     "platform@internal",
			IsSystem:  true,
			Balance:   decimal.Zero,
		}); err != nil {
			return err
		}
		if err := tx.CreateGame(&models.Game{
			ID:            "g-tap",
			Slug:          "tap-race",
			Name:          "Tap Race",
			Scoring:       models.ScoringHighscore,
			IsActive:      true,
			MinStake:      decimal.NewFromInt(1),
			MaxStake:      decimal.NewFromInt(1000),
			FeePercentage: decimal.NewFromInt(5),
		}); err != nil {
			return err
		}
		return tx.CreateGame(&models.Game{
			ID:            "g-rps",
			Slug:          "rock-paper-scissors",
			Name:          "Rock Paper Scissors",
			Scoring:       models.ScoringRounds,
			IsActive:      true,
			MinStake:      decimal.NewFromInt(1),
			MaxStake:      decimal.NewFromInt(1000),
			FeePercentage: decimal.NewFromInt(5),
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return e
}

func (e *env) seedUser(t *testing.T, id, balance string) {
	t.Helper()
	err := e.st.WithTx(e.ctx, func(tx store.Tx) error {
		return tx.CreateUser(&models.User{
			ID:        id,
			AccountID: "P2C-" + id,
			Email:     id + "@test.local",
			Balance:   dec(t, balance),
		})
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func (e *env) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	u, err := e.st.GetUser(e.ctx, userID)
	if err != nil {
		t.Fatalf("get user %s: %v", userID, err)
	}
	return u.Balance
}

func (e *env) mustBalance(t *testing.T, userID, want string) {
	t.Helper()
	got := e.balance(t, userID)
	if !got.Equal(dec(t, want)) {
		t.Errorf("balance of %s = %s, want %s", userID, got.String(), want)
	}
}

// pairUp drives host+joiner all the way to an ACTIVE match.
func (e *env) pairUp(t *testing.T, host, joiner, stake string) *models.Match {
	t.Helper()
	m, err := e.svc.Create(e.ctx, host, "tap-race", dec(t, stake))
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	req, err := e.svc.RequestJoin(e.ctx, m.ID, joiner)
	if err != nil {
		t.Fatalf("request join: %v", err)
	}
	if _, err := e.svc.AcceptJoin(e.ctx, m.ID, host, req.ID); err != nil {
		t.Fatalf("accept join: %v", err)
	}
	if err := e.svc.StartAfterCountdown(e.ctx, m.ID, host); err != nil {
		t.Fatalf("start match: %v", err)
	}
	return m
}

func TestCreateEscrowsStake(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")

	m, err := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "20"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Status != models.MatchWaiting {
		t.Errorf("status = %s, want %s", m.Status, models.MatchWaiting)
	}
	if m.ShareCode == "" {
		t.Error("share code not generated")
	}
	e.mustBalance(t, "alice", "80")

	players, _ := e.st.GetMatchPlayers(e.ctx, m.ID)
	if len(players) != 1 || players[0].UserID != "alice" {
		t.Errorf("creator not seated: %+v", players)
	}
}

func TestCreateRejectsInsufficientBalance(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "10")

	_, err := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "20"))
	if !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	// The failed escrow must leave no trace.
	e.mustBalance(t, "alice", "10")
	txs, _ := e.st.ListUserTransactions(e.ctx, "alice", 10, 0)
	if len(txs) != 0 {
		t.Errorf("failed create wrote %d ledger rows", len(txs))
	}
}

func TestCreateRejectsStakeOutsideGameBounds(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100000")

	_, err := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "5000"))
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestCreateRejectsStakeOutsidePlatformLimits(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")

	// The game row allows 1-1000; the platform ceiling is tighter and wins.
	e.cfg.MaxStake = 10
	_, err := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "20"))
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("over ceiling err = %v, want ErrInvalidState", err)
	}

	e.cfg.MaxStake = 1000
	e.cfg.MinStake = 5
	_, err = e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "2"))
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("under floor err = %v, want ErrInvalidState", err)
	}

	e.mustBalance(t, "alice", "100")
}

func TestCreateUnknownGame(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")

	_, err := e.svc.Create(e.ctx, "alice", "no-such-game", dec(t, "20"))
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStartIsIdempotentlyRejected(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "bob", "50")
	m := e.pairUp(t, "alice", "bob", "20")

	// The match is already ACTIVE; a retried start must not restart it.
	err := e.svc.StartAfterCountdown(e.ctx, m.ID, "alice")
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("second start err = %v, want ErrInvalidState", err)
	}

	got, _ := e.st.GetMatch(e.ctx, m.ID)
	if got.Status != models.MatchActive {
		t.Errorf("status = %s, want %s", got.Status, models.MatchActive)
	}
}

func TestStartRequiresElapsedCountdown(t *testing.T) {
	e := newEnv(t)
	e.cfg.CountdownSeconds = 3600
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "bob", "50")

	m, _ := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "20"))
	req, _ := e.svc.RequestJoin(e.ctx, m.ID, "bob")
	if _, err := e.svc.AcceptJoin(e.ctx, m.ID, "alice", req.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	err := e.svc.StartAfterCountdown(e.ctx, m.ID, "alice")
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("early start err = %v, want ErrInvalidState", err)
	}
}

func TestStartRejectsNonPlayer(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "bob", "50")
	e.seedUser(t, "mallory", "50")

	m, _ := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "20"))
	req, _ := e.svc.RequestJoin(e.ctx, m.ID, "bob")
	if _, err := e.svc.AcceptJoin(e.ctx, m.ID, "alice", req.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	err := e.svc.StartAfterCountdown(e.ctx, m.ID, "mallory")
	if !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestCancelRefundsAllSeats(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "bob", "50")

	m, _ := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "20"))
	req, _ := e.svc.RequestJoin(e.ctx, m.ID, "bob")
	if _, err := e.svc.AcceptJoin(e.ctx, m.ID, "alice", req.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// COUNTDOWN: both stakes escrowed.
	e.mustBalance(t, "alice", "80")
	e.mustBalance(t, "bob", "30")

	if err := e.svc.Cancel(e.ctx, m.ID, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	e.mustBalance(t, "alice", "100")
	e.mustBalance(t, "bob", "50")

	got, _ := e.st.GetMatch(e.ctx, m.ID)
	if got.Status != models.MatchCancelled {
		t.Errorf("status = %s, want %s", got.Status, models.MatchCancelled)
	}

	// The cancelled match's ledger nets to zero.
	assertMatchLedgerZero(t, e, m.ID)
}

func TestCancelWithPendingJoinRequest(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "bob", "50")

	m, _ := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "20"))
	req, _ := e.svc.RequestJoin(e.ctx, m.ID, "bob")

	// Cancelling while a request is still pending must succeed and resolve
	// the request, not strand the escrowed stake.
	if err := e.svc.Cancel(e.ctx, m.ID, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	e.mustBalance(t, "alice", "100")

	got, _ := e.st.GetMatch(e.ctx, m.ID)
	if got.Status != models.MatchCancelled {
		t.Errorf("status = %s, want %s", got.Status, models.MatchCancelled)
	}
	r, _ := e.st.GetJoinRequest(e.ctx, req.ID)
	if r.Status != models.RequestRejected {
		t.Errorf("request status = %s, want %s", r.Status, models.RequestRejected)
	}
}

func TestCancelOnlyByCreator(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "bob", "50")

	m, _ := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "20"))
	err := e.svc.Cancel(e.ctx, m.ID, "bob")
	if !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestCancelRejectedOnceActive(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "bob", "50")
	m := e.pairUp(t, "alice", "bob", "20")

	err := e.svc.Cancel(e.ctx, m.ID, "alice")
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	// No refund happened.
	e.mustBalance(t, "alice", "80")
	e.mustBalance(t, "bob", "30")
}

func TestGetResultOnlyWhenCompleted(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "bob", "50")
	m := e.pairUp(t, "alice", "bob", "20")

	_, err := e.svc.GetResult(e.ctx, m.ID)
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestListOpenHidesStaleMatches(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice", "100")
	e.seedUser(t, "carol", "100")

	fresh, _ := e.svc.Create(e.ctx, "alice", "tap-race", dec(t, "10"))
	stale, _ := e.svc.Create(e.ctx, "carol", "tap-race", dec(t, "10"))
	e.st.SetMatchCreatedAt(stale.ID, timeAgoMinutes(e.cfg.StaleMatchMinutes+1))

	open, err := e.svc.ListOpen(e.ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].ID != fresh.ID {
		t.Errorf("open matches = %+v, want only %s", open, fresh.ID)
	}
}

func timeAgoMinutes(minutes int) time.Time {
	return time.Now().Add(-time.Duration(minutes) * time.Minute)
}

// assertMatchLedgerZero checks the fundamental accounting invariant: every
// unit escrowed into a match is paid out, refunded or retained as fee, so the
// match's ledger rows sum to exactly zero.
func assertMatchLedgerZero(t *testing.T, e *env, matchID string) {
	t.Helper()
	txs, err := e.st.ListMatchTransactions(e.ctx, matchID)
	if err != nil {
		t.Fatalf("list match transactions: %v", err)
	}
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
		if !tx.BalanceAfter.Equal(tx.BalanceBefore.Add(tx.Amount)) {
			t.Errorf("ledger row %d violates balance_after = balance_before + amount: %+v", tx.ID, tx)
		}
	}
	if !sum.IsZero() {
		t.Errorf("match %s ledger sums to %s, want 0 (rows: %+v)", matchID, sum.String(), txs)
	}
}

// assertBalanceMatchesLedger checks that the user's stored balance equals the
// balance_after of their most recent ledger row.
func assertBalanceMatchesLedger(t *testing.T, e *env, userID string) {
	t.Helper()
	txs, err := e.st.ListUserTransactions(e.ctx, userID, 1, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) == 0 {
		return
	}
	balance := e.balance(t, userID)
	if !balance.Equal(txs[0].BalanceAfter) {
		t.Errorf("balance of %s = %s, last ledger balance_after = %s",
			userID, balance.String(), txs[0].BalanceAfter.String())
	}
}
