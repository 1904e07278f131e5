package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/play2cash/backend/internal/events"
	"github.com/play2cash/backend/internal/models"
	"github.com/play2cash/backend/internal/store"
	"github.com/shopspring/decimal"
)

// Ledger is the only writer of user balances. Every balance change is one
// atomic unit: the users.balance update and the appended transaction row
// with its balance_before/balance_after snapshots commit together or not
// at all.
type Ledger struct {
	store  store.Store
	events *events.Publisher
}

func NewLedger(st store.Store, pub *events.Publisher) *Ledger {
	return &Ledger{store: st, events: pub}
}

// Apply executes one ledger leg inside an existing store transaction.
// The user row is locked for the duration of the caller's transaction, so
// concurrent legs for the same user serialize instead of losing updates.
// Negative amounts that would take the balance below zero fail with
// ErrInsufficientBalance and write nothing.
func Apply(tx store.Tx, userID, txType string, amount decimal.Decimal, matchID, description string) (*models.Transaction, error) {
	user, err := tx.GetUserForUpdate(userID)
	if err != nil {
		return nil, fmt.Errorf("ledger: load user %s: %w", userID, err)
	}

	balanceAfter := user.Balance.Add(amount)
	if balanceAfter.IsNegative() {
		return nil, fmt.Errorf("ledger: %s of %s for user %s: %w",
			txType, amount.String(), user.AccountID, models.ErrInsufficientBalance)
	}

	if err := tx.UpdateUserBalance(userID, balanceAfter); err != nil {
		return nil, fmt.Errorf("ledger: update balance: %w", err)
	}

	row := &models.Transaction{
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: user.Balance,
		BalanceAfter:  balanceAfter,
		Description:   description,
	}
	if matchID != "" {
		row.MatchID = sql.NullString{String: matchID, Valid: true}
	}
	if err := tx.InsertTransaction(row); err != nil {
		return nil, fmt.Errorf("ledger: insert transaction: %w", err)
	}

	return row, nil
}

// CreateTransaction runs a single ledger leg in its own transaction and
// publishes the balance change after commit.
func (l *Ledger) CreateTransaction(ctx context.Context, userID, txType string, amount decimal.Decimal, matchID, description string) (*models.Transaction, error) {
	var row *models.Transaction
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		row, err = Apply(tx, userID, txType, amount, matchID, description)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[LEDGER] %s %s user=%s balance=%s", txType, amount.String(), userID, row.BalanceAfter.String())
	l.events.BalanceEvent(ctx, userID, row.BalanceAfter.String())
	return row, nil
}

// RequestDeposit queues an admin-moderated top-up. No money moves until an
// admin approves. A user may have at most one pending deposit request.
func (l *Ledger) RequestDeposit(ctx context.Context, userID string, amount decimal.Decimal, method, reference string) (*models.DepositRequest, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount must be positive: %w", models.ErrInvalidState)
	}

	req := &models.DepositRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Method:    method,
		Reference: reference,
		Status:    models.RequestPending,
	}
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUserForUpdate(userID); err != nil {
			return err
		}
		pending, err := tx.HasPendingDeposit(userID)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("pending deposit request already exists: %w", models.ErrConflict)
		}
		return tx.CreateDepositRequest(req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveDeposit credits the wallet and marks the request approved, as one
// atomic unit.
func (l *Ledger) ApproveDeposit(ctx context.Context, requestID, note string) error {
	var row *models.Transaction
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		req, err := tx.GetDepositRequestForUpdate(requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestPending {
			return fmt.Errorf("deposit request is %s: %w", req.Status, models.ErrInvalidState)
		}
		row, err = Apply(tx, req.UserID, models.TxDeposit, req.Amount, "", "Deposit approved")
		if err != nil {
			return err
		}
		return tx.UpdateDepositRequest(requestID, models.RequestApproved, note)
	})
	if err != nil {
		return err
	}

	log.Printf("[LEDGER] deposit %s approved user=%s amount=%s", requestID, row.UserID, row.Amount.String())
	l.events.BalanceEvent(ctx, row.UserID, row.BalanceAfter.String())
	return nil
}

// RejectDeposit marks the request rejected. Nothing was escrowed, so no
// ledger leg is needed.
func (l *Ledger) RejectDeposit(ctx context.Context, requestID, note string) error {
	return l.store.WithTx(ctx, func(tx store.Tx) error {
		req, err := tx.GetDepositRequestForUpdate(requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestPending {
			return fmt.Errorf("deposit request is %s: %w", req.Status, models.ErrInvalidState)
		}
		return tx.UpdateDepositRequest(requestID, models.RequestRejected, note)
	})
}

// RequestWithdrawal debits the wallet immediately (escrow until moderation)
// and queues the request. Rejection refunds; approval pays out externally.
func (l *Ledger) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, method, destination string) (*models.WithdrawalRequest, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("withdrawal amount must be positive: %w", models.ErrInvalidState)
	}

	req := &models.WithdrawalRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Method:      method,
		Destination: destination,
		Status:      models.RequestPending,
	}
	var row *models.Transaction
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		pending, err := tx.HasPendingWithdrawal(userID)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("pending withdrawal request already exists: %w", models.ErrConflict)
		}
		row, err = Apply(tx, userID, models.TxWithdrawal, amount.Neg(), "", "Withdrawal requested")
		if err != nil {
			return err
		}
		return tx.CreateWithdrawalRequest(req)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[LEDGER] withdrawal %s requested user=%s amount=%s", req.ID, userID, amount.String())
	l.events.BalanceEvent(ctx, userID, row.BalanceAfter.String())
	return req, nil
}

// ApproveWithdrawal marks a pending withdrawal completed. The funds were
// already debited at request time.
func (l *Ledger) ApproveWithdrawal(ctx context.Context, requestID, note string) error {
	return l.store.WithTx(ctx, func(tx store.Tx) error {
		req, err := tx.GetWithdrawalRequestForUpdate(requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestPending {
			return fmt.Errorf("withdrawal request is %s: %w", req.Status, models.ErrInvalidState)
		}
		return tx.UpdateWithdrawalRequest(requestID, models.RequestApproved, note)
	})
}

// RejectWithdrawal refunds the escrowed amount and marks the request
// rejected, as one atomic unit.
func (l *Ledger) RejectWithdrawal(ctx context.Context, requestID, note string) error {
	var row *models.Transaction
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		req, err := tx.GetWithdrawalRequestForUpdate(requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestPending {
			return fmt.Errorf("withdrawal request is %s: %w", req.Status, models.ErrInvalidState)
		}
		row, err = Apply(tx, req.UserID, models.TxRefund, req.Amount, "", "Withdrawal rejected: "+note)
		if err != nil {
			return err
		}
		return tx.UpdateWithdrawalRequest(requestID, models.RequestRejected, note)
	})
	if err != nil {
		return err
	}

	l.events.BalanceEvent(ctx, row.UserID, row.BalanceAfter.String())
	return nil
}

// ManualAdjust credits or debits a user located by their external account
// handle. Used by the admin panel for manual corrections.
func (l *Ledger) ManualAdjust(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	user, err := l.store.GetUserByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	txType := models.TxDeposit
	if amount.IsNegative() {
		txType = models.TxWithdrawal
	}
	if description == "" {
		description = "Manual adjustment"
	}
	return l.CreateTransaction(ctx, user.ID, txType, amount, "", description)
}

// Balance returns the user's current balance together with their most
// recent ledger rows.
func (l *Ledger) Balance(ctx context.Context, userID string) (decimal.Decimal, []models.Transaction, error) {
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	txs, err := l.store.ListUserTransactions(ctx, userID, 20, 0)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return user.Balance, txs, nil
}
