package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/play2cash/backend/internal/models"
	"github.com/shopspring/decimal"
)

// AccountID of the seeded system user that fee legs are credited to. Keeping
// the fee as a ledger leg against a real user row is what makes every match's
// transactions sum to zero.
const PlatformAccountID = "P2C-PLATFORM"

// Store is the persistence boundary of the core. The production
// implementation is Postgres; tests run against the in-memory one.
type Store interface {
	// WithTx runs fn inside a single atomic transaction. Every state-mutating
	// operation on a match or a balance goes through here; row locks taken
	// via the ForUpdate reads are held until commit or rollback.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByAccountID(ctx context.Context, accountID string) (*models.User, error)

	GetGame(ctx context.Context, id string) (*models.Game, error)
	GetGameBySlug(ctx context.Context, slug string) (*models.Game, error)
	ListActiveGames(ctx context.Context) ([]models.Game, error)

	GetMatch(ctx context.Context, id string) (*models.Match, error)
	GetMatchByShareCode(ctx context.Context, code string) (*models.Match, error)
	// ListOpenMatches returns WAITING matches created after cutoff
	// (the staleness filter on open-match discovery).
	ListOpenMatches(ctx context.Context, cutoff time.Time) ([]models.Match, error)
	// ListStaleWaitingMatches returns WAITING matches created at or before
	// cutoff, for the reconciliation sweeper.
	ListStaleWaitingMatches(ctx context.Context, cutoff time.Time) ([]models.Match, error)
	GetMatchPlayers(ctx context.Context, matchID string) ([]models.MatchPlayer, error)

	GetJoinRequest(ctx context.Context, id string) (*models.JoinRequest, error)

	ListUserTransactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
	ListMatchTransactions(ctx context.Context, matchID string) ([]models.Transaction, error)
	GetMatchRevenue(ctx context.Context, matchID string) (*models.PlatformRevenue, error)
}

// Tx is the set of operations available inside a store transaction.
// ForUpdate reads take row-level locks; they are the serialization points
// that prevent double-join, double-resolution and lost balance updates.
type Tx interface {
	CreateUser(u *models.User) error
	GetUserForUpdate(id string) (*models.User, error)
	UpdateUserBalance(id string, balance decimal.Decimal) error
	SetUserBlocked(id string, blocked bool) error

	CreateGame(g *models.Game) error

	CreateMatch(m *models.Match) error
	GetMatchForUpdate(id string) (*models.Match, error)
	UpdateMatch(m *models.Match) error

	CreateMatchPlayer(p *models.MatchPlayer) error
	GetMatchPlayersForUpdate(matchID string) ([]models.MatchPlayer, error)
	UpdateMatchPlayerResult(matchID, userID string, score decimal.Decimal, result json.RawMessage, submittedAt time.Time) error

	CreateJoinRequest(r *models.JoinRequest) error
	GetJoinRequestForUpdate(id string) (*models.JoinRequest, error)
	HasPendingJoinRequest(matchID, userID string) (bool, error)
	UpdateJoinRequestStatus(id, status string) error
	// RejectPendingJoinRequests resolves every still-pending request on the
	// match except exceptID (pass "" to reject all).
	RejectPendingJoinRequests(matchID, exceptID string) error

	InsertTransaction(t *models.Transaction) error
	// ListMatchTransactions reads the match's ledger legs inside the
	// transaction, for the settlement idempotency check.
	ListMatchTransactions(matchID string) ([]models.Transaction, error)

	CreatePlatformRevenue(matchID string, amount decimal.Decimal) error

	CreateDepositRequest(r *models.DepositRequest) error
	GetDepositRequestForUpdate(id string) (*models.DepositRequest, error)
	UpdateDepositRequest(id, status, note string) error
	HasPendingDeposit(userID string) (bool, error)

	CreateWithdrawalRequest(r *models.WithdrawalRequest) error
	GetWithdrawalRequestForUpdate(id string) (*models.WithdrawalRequest, error)
	UpdateWithdrawalRequest(id, status, note string) error
	HasPendingWithdrawal(userID string) (bool, error)
}
