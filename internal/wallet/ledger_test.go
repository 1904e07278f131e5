package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/play2cash/backend/internal/models"
	"github.com/play2cash/backend/internal/store"
	"github.com/shopspring/decimal"
)

func newTestLedger(t *testing.T) (*Ledger, *store.Memory, context.Context) {
	t.Helper()
	st := store.NewMemory()
	return NewLedger(st, nil), st, context.Background()
}

func seedUser(t *testing.T, st *store.Memory, id string, balance int64) {
	t.Helper()
	err := st.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateUser(&models.User{
			ID:        id,
			AccountID: "P2C-" + id,
			Email:     id + "@test.local",
			Balance:   decimal.NewFromInt(balance),
		})
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func mustBalance(t *testing.T, st *store.Memory, id string, want int64) {
	t.Helper()
	u, err := st.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !u.Balance.Equal(decimal.NewFromInt(want)) {
		t.Errorf("balance of %s = %s, want %d", id, u.Balance.String(), want)
	}
}

func TestApplyWritesConsistentRow(t *testing.T) {
	l, st, ctx := newTestLedger(t)
	seedUser(t, st, "u1", 100)

	row, err := l.CreateTransaction(ctx, "u1", models.TxDeposit, decimal.NewFromInt(25), "", "test credit")
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if !row.BalanceBefore.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance_before = %s, want 100", row.BalanceBefore.String())
	}
	if !row.BalanceAfter.Equal(decimal.NewFromInt(125)) {
		t.Errorf("balance_after = %s, want 125", row.BalanceAfter.String())
	}
	mustBalance(t, st, "u1", 125)
}

func TestApplyRejectsOverdraft(t *testing.T) {
	l, st, ctx := newTestLedger(t)
	seedUser(t, st, "u1", 10)

	_, err := l.CreateTransaction(ctx, "u1", models.TxStake, decimal.NewFromInt(-20), "", "stake")
	if !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	// Rolled back: balance intact, no ledger row.
	mustBalance(t, st, "u1", 10)
	txs, _ := st.ListUserTransactions(ctx, "u1", 10, 0)
	if len(txs) != 0 {
		t.Errorf("overdraft wrote %d rows", len(txs))
	}
}

func TestApplyExactBalanceToZero(t *testing.T) {
	l, st, ctx := newTestLedger(t)
	seedUser(t, st, "u1", 20)

	row, err := l.CreateTransaction(ctx, "u1", models.TxStake, decimal.NewFromInt(-20), "", "all in")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !row.BalanceAfter.IsZero() {
		t.Errorf("balance_after = %s, want 0", row.BalanceAfter.String())
	}
}

func TestLedgerChainIsContiguous(t *testing.T) {
	l, st, ctx := newTestLedger(t)
	seedUser(t, st, "u1", 100)

	amounts := []int64{-30, 50, -10, -5}
	for _, a := range amounts {
		typ := models.TxDeposit
		if a < 0 {
			typ = models.TxStake
		}
		if _, err := l.CreateTransaction(ctx, "u1", typ, decimal.NewFromInt(a), "", "step"); err != nil {
			t.Fatalf("apply %d: %v", a, err)
		}
	}

	// Newest first: each row's balance_before equals the next older row's
	// balance_after, and the head equals the live balance.
	txs, _ := st.ListUserTransactions(ctx, "u1", 100, 0)
	if len(txs) != len(amounts) {
		t.Fatalf("rows = %d, want %d", len(txs), len(amounts))
	}
	u, _ := st.GetUser(ctx, "u1")
	if !u.Balance.Equal(txs[0].BalanceAfter) {
		t.Errorf("live balance %s != head balance_after %s", u.Balance.String(), txs[0].BalanceAfter.String())
	}
	for i := 0; i < len(txs)-1; i++ {
		if !txs[i].BalanceBefore.Equal(txs[i+1].BalanceAfter) {
			t.Errorf("chain broken between rows %d and %d: %s != %s",
				i, i+1, txs[i].BalanceBefore.String(), txs[i+1].BalanceAfter.String())
		}
	}
}

func TestDepositLifecycle(t *testing.T) {
	l, st, ctx := newTestLedger(t)
	seedUser(t, st, "u1", 0)

	req, err := l.RequestDeposit(ctx, "u1", decimal.NewFromInt(75), "mobile-money", "ref-123")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	// No money moves before moderation.
	mustBalance(t, st, "u1", 0)

	// A second pending request is refused.
	_, err = l.RequestDeposit(ctx, "u1", decimal.NewFromInt(10), "mobile-money", "ref-124")
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("duplicate request err = %v, want ErrConflict", err)
	}

	if err := l.ApproveDeposit(ctx, req.ID, "checked"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	mustBalance(t, st, "u1", 75)

	// Approval is terminal.
	err = l.ApproveDeposit(ctx, req.ID, "again")
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("double approve err = %v, want ErrInvalidState", err)
	}
	mustBalance(t, st, "u1", 75)
}

func TestDepositReject(t *testing.T) {
	l, st, ctx := newTestLedger(t)
	seedUser(t, st, "u1", 0)

	req, _ := l.RequestDeposit(ctx, "u1", decimal.NewFromInt(75), "card", "ref")
	if err := l.RejectDeposit(ctx, req.ID, "no payment received"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	mustBalance(t, st, "u1", 0)
	txs, _ := st.ListUserTransactions(ctx, "u1", 10, 0)
	if len(txs) != 0 {
		t.Errorf("rejected deposit wrote %d ledger rows", len(txs))
	}
}

func TestWithdrawalEscrowsAtRequest(t *testing.T) {
	l, st, ctx := newTestLedger(t)
	seedUser(t, st, "u1", 100)

	req, err := l.RequestWithdrawal(ctx, "u1", decimal.NewFromInt(40), "bank", "acct-9")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	mustBalance(t, st, "u1", 60)

	if err := l.ApproveWithdrawal(ctx, req.ID, "paid"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	// Approval moves no further money.
	mustBalance(t, st, "u1", 60)
}

func TestWithdrawalRejectRefunds(t *testing.T) {
	l, st, ctx := newTestLedger(t)
	seedUser(t, st, "u1", 100)

	req, _ := l.RequestWithdrawal(ctx, "u1", decimal.NewFromInt(40), "bank", "acct-9")
	mustBalance(t, st, "u1", 60)

	if err := l.RejectWithdrawal(ctx, req.ID, "bad account"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	mustBalance(t, st, "u1", 100)

	txs, _ := st.ListUserTransactions(ctx, "u1", 10, 0)
	if len(txs) != 2 {
		t.Fatalf("rows = %d, want WITHDRAWAL + REFUND", len(txs))
	}
	if txs[0].Type != models.TxRefund {
		t.Errorf("latest row type = %s, want %s", txs[0].Type, models.TxRefund)
	}
}

func TestWithdrawalOverBalanceRejected(t *testing.T) {
	l, st, ctx := newTestLedger(t)
	seedUser(t, st, "u1", 30)

	_, err := l.RequestWithdrawal(ctx, "u1", decimal.NewFromInt(40), "bank", "acct-9")
	if !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	mustBalance(t, st, "u1", 30)
}

func TestManualAdjustByAccountID(t *testing.T) {
	l, st, ctx := newTestLedger(t)
	seedUser(t, st, "u1", 10)

	row, err := l.ManualAdjust(ctx, "P2C-u1", decimal.NewFromInt(15), "goodwill credit")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if row.Type != models.TxDeposit {
		t.Errorf("type = %s, want %s", row.Type, models.TxDeposit)
	}
	mustBalance(t, st, "u1", 25)

	_, err = l.ManualAdjust(ctx, "P2C-unknown", decimal.NewFromInt(5), "")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("unknown account err = %v, want ErrNotFound", err)
	}
}
