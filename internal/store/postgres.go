package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/play2cash/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Postgres implements Store on sqlx. All mutations run inside WithTx with
// SELECT ... FOR UPDATE on the rows being changed.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func notFound(err error) error {
	if err == sql.ErrNoRows {
		return models.ErrNotFound
	}
	return err
}

const userCols = `id, account_id, email, password_hash, display_name, balance, is_blocked, is_system, created_at`
const gameCols = `id, slug, name, scoring, is_active, min_stake, max_stake, fee_percentage, created_at`
const matchCols = `id, game_id, stake, platform_fee, status, created_by, winner_id, share_code, game_state, created_at, countdown_started_at, started_at, completed_at`
const playerCols = `id, match_id, user_id, score, game_result, joined_at, submitted_at`
const txCols = `id, user_id, match_id, type, amount, balance_before, balance_after, description, created_at`

func (s *Postgres) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

func (s *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userCols+` FROM users WHERE id=$1`, id)
	return &u, notFound(err)
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userCols+` FROM users WHERE email=$1`, email)
	return &u, notFound(err)
}

func (s *Postgres) GetUserByAccountID(ctx context.Context, accountID string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userCols+` FROM users WHERE account_id=$1`, accountID)
	return &u, notFound(err)
}

func (s *Postgres) GetGame(ctx context.Context, id string) (*models.Game, error) {
	var g models.Game
	err := s.db.GetContext(ctx, &g, `SELECT `+gameCols+` FROM games WHERE id=$1`, id)
	return &g, notFound(err)
}

func (s *Postgres) GetGameBySlug(ctx context.Context, slug string) (*models.Game, error) {
	var g models.Game
	err := s.db.GetContext(ctx, &g, `SELECT `+gameCols+` FROM games WHERE slug=$1`, slug)
	return &g, notFound(err)
}

func (s *Postgres) ListActiveGames(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	err := s.db.SelectContext(ctx, &games, `SELECT `+gameCols+` FROM games WHERE is_active=TRUE ORDER BY name`)
	return games, err
}

func (s *Postgres) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	var m models.Match
	err := s.db.GetContext(ctx, &m, `SELECT `+matchCols+` FROM matches WHERE id=$1`, id)
	return &m, notFound(err)
}

func (s *Postgres) GetMatchByShareCode(ctx context.Context, code string) (*models.Match, error) {
	var m models.Match
	err := s.db.GetContext(ctx, &m, `SELECT `+matchCols+` FROM matches WHERE share_code=$1`, code)
	return &m, notFound(err)
}

func (s *Postgres) ListOpenMatches(ctx context.Context, cutoff time.Time) ([]models.Match, error) {
	var matches []models.Match
	err := s.db.SelectContext(ctx, &matches,
		`SELECT `+matchCols+` FROM matches WHERE status=$1 AND created_at > $2 ORDER BY created_at DESC`,
		models.MatchWaiting, cutoff)
	return matches, err
}

func (s *Postgres) ListStaleWaitingMatches(ctx context.Context, cutoff time.Time) ([]models.Match, error) {
	var matches []models.Match
	err := s.db.SelectContext(ctx, &matches,
		`SELECT `+matchCols+` FROM matches WHERE status=$1 AND created_at <= $2 ORDER BY created_at`,
		models.MatchWaiting, cutoff)
	return matches, err
}

func (s *Postgres) GetMatchPlayers(ctx context.Context, matchID string) ([]models.MatchPlayer, error) {
	var players []models.MatchPlayer
	err := s.db.SelectContext(ctx, &players,
		`SELECT `+playerCols+` FROM match_players WHERE match_id=$1 ORDER BY joined_at`, matchID)
	return players, err
}

func (s *Postgres) GetJoinRequest(ctx context.Context, id string) (*models.JoinRequest, error) {
	var r models.JoinRequest
	err := s.db.GetContext(ctx, &r,
		`SELECT id, match_id, requester_id, status, created_at, resolved_at FROM join_requests WHERE id=$1`, id)
	return &r, notFound(err)
}

func (s *Postgres) ListUserTransactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.SelectContext(ctx, &txs,
		`SELECT `+txCols+` FROM transactions WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	return txs, err
}

func (s *Postgres) ListMatchTransactions(ctx context.Context, matchID string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.SelectContext(ctx, &txs,
		`SELECT `+txCols+` FROM transactions WHERE match_id=$1 ORDER BY id`, matchID)
	return txs, err
}

func (s *Postgres) GetMatchRevenue(ctx context.Context, matchID string) (*models.PlatformRevenue, error) {
	var r models.PlatformRevenue
	err := s.db.GetContext(ctx, &r,
		`SELECT id, match_id, amount, created_at FROM platform_revenue WHERE match_id=$1`, matchID)
	return &r, notFound(err)
}

// pgTx wraps one sqlx transaction.
type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) CreateUser(u *models.User) error {
	return t.tx.QueryRowx(
		`INSERT INTO users (id, account_id, email, password_hash, display_name, balance, is_blocked, is_system, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING created_at`,
		u.ID, u.AccountID, u.Email, u.PasswordHash, u.DisplayName, u.Balance, u.IsBlocked, u.IsSystem,
	).Scan(&u.CreatedAt)
}

func (t *pgTx) GetUserForUpdate(id string) (*models.User, error) {
	var u models.User
	err := t.tx.Get(&u, `SELECT `+userCols+` FROM users WHERE id=$1 FOR UPDATE`, id)
	return &u, notFound(err)
}

func (t *pgTx) UpdateUserBalance(id string, balance decimal.Decimal) error {
	_, err := t.tx.Exec(`UPDATE users SET balance=$1 WHERE id=$2`, balance, id)
	return err
}

func (t *pgTx) SetUserBlocked(id string, blocked bool) error {
	res, err := t.tx.Exec(`UPDATE users SET is_blocked=$1 WHERE id=$2`, blocked, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (t *pgTx) CreateGame(g *models.Game) error {
	return t.tx.QueryRowx(
		`INSERT INTO games (id, slug, name, scoring, is_active, min_stake, max_stake, fee_percentage, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING created_at`,
		g.ID, g.Slug, g.Name, g.Scoring, g.IsActive, g.MinStake, g.MaxStake, g.FeePercentage,
	).Scan(&g.CreatedAt)
}

func (t *pgTx) CreateMatch(m *models.Match) error {
	return t.tx.QueryRowx(
		`INSERT INTO matches (id, game_id, stake, platform_fee, status, created_by, winner_id, share_code, game_state, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING created_at`,
		m.ID, m.GameID, m.Stake, m.PlatformFee, m.Status, m.CreatedBy, m.WinnerID, m.ShareCode, m.GameState,
	).Scan(&m.CreatedAt)
}

func (t *pgTx) GetMatchForUpdate(id string) (*models.Match, error) {
	var m models.Match
	err := t.tx.Get(&m, `SELECT `+matchCols+` FROM matches WHERE id=$1 FOR UPDATE`, id)
	return &m, notFound(err)
}

func (t *pgTx) UpdateMatch(m *models.Match) error {
	_, err := t.tx.Exec(
		`UPDATE matches SET status=$1, platform_fee=$2, winner_id=$3, game_state=$4,
		 countdown_started_at=$5, started_at=$6, completed_at=$7 WHERE id=$8`,
		m.Status, m.PlatformFee, m.WinnerID, m.GameState,
		m.CountdownStartedAt, m.StartedAt, m.CompletedAt, m.ID)
	return err
}

func (t *pgTx) CreateMatchPlayer(p *models.MatchPlayer) error {
	return t.tx.QueryRowx(
		`INSERT INTO match_players (match_id, user_id, score, game_result, joined_at)
		 VALUES ($1,$2,$3,$4,NOW()) RETURNING id, joined_at`,
		p.MatchID, p.UserID, p.Score, p.GameResult,
	).Scan(&p.ID, &p.JoinedAt)
}

func (t *pgTx) GetMatchPlayersForUpdate(matchID string) ([]models.MatchPlayer, error) {
	var players []models.MatchPlayer
	err := t.tx.Select(&players,
		`SELECT `+playerCols+` FROM match_players WHERE match_id=$1 ORDER BY joined_at FOR UPDATE`, matchID)
	return players, err
}

func (t *pgTx) UpdateMatchPlayerResult(matchID, userID string, score decimal.Decimal, result json.RawMessage, submittedAt time.Time) error {
	res, err := t.tx.Exec(
		`UPDATE match_players SET score=$1, game_result=$2, submitted_at=$3 WHERE match_id=$4 AND user_id=$5`,
		score, result, submittedAt, matchID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (t *pgTx) CreateJoinRequest(r *models.JoinRequest) error {
	return t.tx.QueryRowx(
		`INSERT INTO join_requests (id, match_id, requester_id, status, created_at)
		 VALUES ($1,$2,$3,$4,NOW()) RETURNING created_at`,
		r.ID, r.MatchID, r.RequesterID, r.Status,
	).Scan(&r.CreatedAt)
}

func (t *pgTx) GetJoinRequestForUpdate(id string) (*models.JoinRequest, error) {
	var r models.JoinRequest
	err := t.tx.Get(&r,
		`SELECT id, match_id, requester_id, status, created_at, resolved_at FROM join_requests WHERE id=$1 FOR UPDATE`, id)
	return &r, notFound(err)
}

func (t *pgTx) HasPendingJoinRequest(matchID, userID string) (bool, error) {
	var cnt int
	err := t.tx.Get(&cnt,
		`SELECT COUNT(*) FROM join_requests WHERE match_id=$1 AND requester_id=$2 AND status=$3`,
		matchID, userID, models.RequestPending)
	return cnt > 0, err
}

func (t *pgTx) UpdateJoinRequestStatus(id, status string) error {
	_, err := t.tx.Exec(
		`UPDATE join_requests SET status=$1, resolved_at=NOW() WHERE id=$2`, status, id)
	return err
}

func (t *pgTx) RejectPendingJoinRequests(matchID, exceptID string) error {
	// id is a uuid column; comparing it as text keeps the empty
	// reject-everything sentinel from failing the bind.
	_, err := t.tx.Exec(
		`UPDATE join_requests SET status=$1, resolved_at=NOW()
		 WHERE match_id=$2 AND status=$3 AND ($4 = '' OR id::text <> $4)`,
		models.RequestRejected, matchID, models.RequestPending, exceptID)
	return err
}

func (t *pgTx) InsertTransaction(tr *models.Transaction) error {
	return t.tx.QueryRowx(
		`INSERT INTO transactions (user_id, match_id, type, amount, balance_before, balance_after, description, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id, created_at`,
		tr.UserID, tr.MatchID, tr.Type, tr.Amount, tr.BalanceBefore, tr.BalanceAfter, tr.Description,
	).Scan(&tr.ID, &tr.CreatedAt)
}

func (t *pgTx) ListMatchTransactions(matchID string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := t.tx.Select(&txs,
		`SELECT `+txCols+` FROM transactions WHERE match_id=$1 ORDER BY id`, matchID)
	return txs, err
}

func (t *pgTx) CreatePlatformRevenue(matchID string, amount decimal.Decimal) error {
	_, err := t.tx.Exec(
		`INSERT INTO platform_revenue (match_id, amount, created_at) VALUES ($1,$2,NOW())`, matchID, amount)
	return err
}

func (t *pgTx) CreateDepositRequest(r *models.DepositRequest) error {
	return t.tx.QueryRowx(
		`INSERT INTO deposit_requests (id, user_id, amount, method, reference, status, note, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING created_at`,
		r.ID, r.UserID, r.Amount, r.Method, r.Reference, r.Status, r.Note,
	).Scan(&r.CreatedAt)
}

func (t *pgTx) GetDepositRequestForUpdate(id string) (*models.DepositRequest, error) {
	var r models.DepositRequest
	err := t.tx.Get(&r,
		`SELECT id, user_id, amount, method, reference, status, note, created_at, processed_at
		 FROM deposit_requests WHERE id=$1 FOR UPDATE`, id)
	return &r, notFound(err)
}

func (t *pgTx) UpdateDepositRequest(id, status, note string) error {
	_, err := t.tx.Exec(
		`UPDATE deposit_requests SET status=$1, note=$2, processed_at=NOW() WHERE id=$3`, status, note, id)
	return err
}

func (t *pgTx) HasPendingDeposit(userID string) (bool, error) {
	var cnt int
	err := t.tx.Get(&cnt,
		`SELECT COUNT(*) FROM deposit_requests WHERE user_id=$1 AND status=$2`, userID, models.RequestPending)
	return cnt > 0, err
}

func (t *pgTx) CreateWithdrawalRequest(r *models.WithdrawalRequest) error {
	return t.tx.QueryRowx(
		`INSERT INTO withdrawal_requests (id, user_id, amount, method, destination, status, note, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING created_at`,
		r.ID, r.UserID, r.Amount, r.Method, r.Destination, r.Status, r.Note,
	).Scan(&r.CreatedAt)
}

func (t *pgTx) GetWithdrawalRequestForUpdate(id string) (*models.WithdrawalRequest, error) {
	var r models.WithdrawalRequest
	err := t.tx.Get(&r,
		`SELECT id, user_id, amount, method, destination, status, note, created_at, processed_at
		 FROM withdrawal_requests WHERE id=$1 FOR UPDATE`, id)
	return &r, notFound(err)
}

func (t *pgTx) UpdateWithdrawalRequest(id, status, note string) error {
	_, err := t.tx.Exec(
		`UPDATE withdrawal_requests SET status=$1, note=$2, processed_at=NOW() WHERE id=$3`, status, note, id)
	return err
}

func (t *pgTx) HasPendingWithdrawal(userID string) (bool, error) {
	var cnt int
	err := t.tx.Get(&cnt,
		`SELECT COUNT(*) FROM withdrawal_requests WHERE user_id=$1 AND status=$2`, userID, models.RequestPending)
	return cnt > 0, err
}
