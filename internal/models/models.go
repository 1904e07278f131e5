package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Match lifecycle states. Transitions are monotonic: a match never moves
// backwards and terminal states are immutable.
const (
	MatchWaiting   = "WAITING"
	MatchCountdown = "COUNTDOWN"
	MatchActive    = "ACTIVE"
	MatchCompleted = "COMPLETED"
	MatchCancelled = "CANCELLED"
)

// Ledger transaction types
const (
	TxDeposit    = "DEPOSIT"
	TxWithdrawal = "WITHDRAWAL"
	TxStake      = "STAKE"
	TxWinnings   = "WINNINGS"
	TxRefund     = "REFUND"
	TxFee        = "FEE"
)

// Join request / moderation queue states
const (
	RequestPending  = "PENDING"
	RequestAccepted = "ACCEPTED"
	RequestRejected = "REJECTED"
	RequestExpired  = "EXPIRED"
	RequestApproved = "APPROVED"
)

// Game scoring modes (how submitted results are interpreted)
const (
	ScoringHighscore = "highscore"
	ScoringRounds    = "rounds"
)

// User represents a registered player. Balance is only ever mutated through
// the wallet ledger, inside the same transaction that appends the ledger row.
type User struct {
	ID           string          `db:"id" json:"id"`
	AccountID    string          `db:"account_id" json:"accountId"`
	Email        string          `db:"email" json:"email"`
	PasswordHash string          `db:"password_hash" json:"-"`
	DisplayName  string          `db:"display_name" json:"displayName"`
	Balance      decimal.Decimal `db:"balance" json:"balance"`
	IsBlocked    bool            `db:"is_blocked" json:"isBlocked"`
	IsSystem     bool            `db:"is_system" json:"-"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

// Game is a catalog entry. Read-only to the match core.
type Game struct {
	ID            string          `db:"id" json:"id"`
	Slug          string          `db:"slug" json:"slug"`
	Name          string          `db:"name" json:"name"`
	Scoring       string          `db:"scoring" json:"scoring"`
	IsActive      bool            `db:"is_active" json:"isActive"`
	MinStake      decimal.Decimal `db:"min_stake" json:"minStake"`
	MaxStake      decimal.Decimal `db:"max_stake" json:"maxStake"`
	FeePercentage decimal.Decimal `db:"fee_percentage" json:"feePercentage"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// Match is the aggregate root of a two-seat stake game.
type Match struct {
	ID                 string          `db:"id" json:"id"`
	GameID             string          `db:"game_id" json:"gameId"`
	Stake              decimal.Decimal `db:"stake" json:"stake"`
	PlatformFee        decimal.Decimal `db:"platform_fee" json:"platformFee"`
	Status             string          `db:"status" json:"status"`
	CreatedBy          string          `db:"created_by" json:"createdBy"`
	WinnerID           sql.NullString  `db:"winner_id" json:"winnerId"`
	ShareCode          string          `db:"share_code" json:"shareCode"`
	GameState          json.RawMessage `db:"game_state" json:"gameState,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
	CountdownStartedAt sql.NullTime    `db:"countdown_started_at" json:"countdownStartedAt"`
	StartedAt          sql.NullTime    `db:"started_at" json:"startedAt"`
	CompletedAt        sql.NullTime    `db:"completed_at" json:"completedAt"`
}

// MatchPlayer is one occupied seat of a match.
type MatchPlayer struct {
	ID          int64               `db:"id" json:"id"`
	MatchID     string              `db:"match_id" json:"matchId"`
	UserID      string              `db:"user_id" json:"userId"`
	Score       decimal.NullDecimal `db:"score" json:"score"`
	GameResult  json.RawMessage     `db:"game_result" json:"gameResult,omitempty"`
	JoinedAt    time.Time           `db:"joined_at" json:"joinedAt"`
	SubmittedAt sql.NullTime        `db:"submitted_at" json:"submittedAt"`
}

// JoinRequest is a pending claim on the second seat of a WAITING match.
type JoinRequest struct {
	ID          string       `db:"id" json:"id"`
	MatchID     string       `db:"match_id" json:"matchId"`
	RequesterID string       `db:"requester_id" json:"requesterId"`
	Status      string       `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	ResolvedAt  sql.NullTime `db:"resolved_at" json:"resolvedAt"`
}

// Transaction is one append-only ledger row. Invariant:
// BalanceAfter = BalanceBefore + Amount, and BalanceAfter equals the user's
// balance at the instant the row commits.
type Transaction struct {
	ID            int64           `db:"id" json:"id"`
	UserID        string          `db:"user_id" json:"userId"`
	MatchID       sql.NullString  `db:"match_id" json:"matchId"`
	Type          string          `db:"type" json:"type"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balanceAfter"`
	Description   string          `db:"description" json:"description"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// DepositRequest is an admin-moderated top-up. At most one PENDING per user.
type DepositRequest struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"userId"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Method      string          `db:"method" json:"method"`
	Reference   string          `db:"reference" json:"reference"`
	Status      string          `db:"status" json:"status"`
	Note        string          `db:"note" json:"note"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	ProcessedAt sql.NullTime    `db:"processed_at" json:"processedAt"`
}

// WithdrawalRequest is an admin-moderated cash-out. The amount is debited
// from the wallet at request time and refunded if the request is rejected.
type WithdrawalRequest struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"userId"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Method      string          `db:"method" json:"method"`
	Destination string          `db:"destination" json:"destination"`
	Status      string          `db:"status" json:"status"`
	Note        string          `db:"note" json:"note"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	ProcessedAt sql.NullTime    `db:"processed_at" json:"processedAt"`
}

// PlatformRevenue records the fee retained on one completed match.
// Written exactly once per match, never mutated.
type PlatformRevenue struct {
	ID        int64           `db:"id" json:"id"`
	MatchID   string          `db:"match_id" json:"matchId"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// AdminAccount is an operator login for the moderation panel.
type AdminAccount struct {
	Username    string         `db:"username" json:"username"`
	DisplayName string         `db:"display_name" json:"displayName"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Roles       pq.StringArray `db:"roles" json:"roles"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// AdminAudit is one audit-log line for an admin action.
type AdminAudit struct {
	ID            int64           `db:"id" json:"id"`
	AdminUsername string          `db:"admin_username" json:"adminUsername"`
	IP            string          `db:"ip" json:"ip"`
	Route         string          `db:"route" json:"route"`
	Action        string          `db:"action" json:"action"`
	Details       json.RawMessage `db:"details" json:"details"`
	Success       bool            `db:"success" json:"success"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}
