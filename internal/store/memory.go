package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/play2cash/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Memory is an in-memory Store used by the test suite. A single mutex
// serializes transactions; rollback restores a snapshot taken at Begin.
type Memory struct {
	mu sync.Mutex
	st memState
}

type memState struct {
	users        map[string]models.User
	games        map[string]models.Game
	matches      map[string]models.Match
	players      []models.MatchPlayer
	joinRequests map[string]models.JoinRequest
	transactions []models.Transaction
	deposits     map[string]models.DepositRequest
	withdrawals  map[string]models.WithdrawalRequest
	revenues     []models.PlatformRevenue
	nextID       int64
}

func NewMemory() *Memory {
	return &Memory{st: memState{
		users:        make(map[string]models.User),
		games:        make(map[string]models.Game),
		matches:      make(map[string]models.Match),
		joinRequests: make(map[string]models.JoinRequest),
		deposits:     make(map[string]models.DepositRequest),
		withdrawals:  make(map[string]models.WithdrawalRequest),
		nextID:       1,
	}}
}

func (s memState) clone() memState {
	c := memState{
		users:        make(map[string]models.User, len(s.users)),
		games:        make(map[string]models.Game, len(s.games)),
		matches:      make(map[string]models.Match, len(s.matches)),
		joinRequests: make(map[string]models.JoinRequest, len(s.joinRequests)),
		deposits:     make(map[string]models.DepositRequest, len(s.deposits)),
		withdrawals:  make(map[string]models.WithdrawalRequest, len(s.withdrawals)),
		players:      append([]models.MatchPlayer(nil), s.players...),
		transactions: append([]models.Transaction(nil), s.transactions...),
		revenues:     append([]models.PlatformRevenue(nil), s.revenues...),
		nextID:       s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.games {
		c.games[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.joinRequests {
		c.joinRequests[k] = v
	}
	for k, v := range s.deposits {
		c.deposits[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	return c
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&memTx{m: m}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.st.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *Memory) GetUserByAccountID(ctx context.Context, accountID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.st.users {
		if u.AccountID == accountID {
			u := u
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *Memory) GetGame(ctx context.Context, id string) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.st.games[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &g, nil
}

func (m *Memory) GetGameBySlug(ctx context.Context, slug string) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.st.games {
		if g.Slug == slug {
			g := g
			return &g, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *Memory) ListActiveGames(ctx context.Context) ([]models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var games []models.Game
	for _, g := range m.st.games {
		if g.IsActive {
			games = append(games, g)
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Name < games[j].Name })
	return games, nil
}

func (m *Memory) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.st.matches[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &mt, nil
}

func (m *Memory) GetMatchByShareCode(ctx context.Context, code string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mt := range m.st.matches {
		if mt.ShareCode == code {
			mt := mt
			return &mt, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *Memory) ListOpenMatches(ctx context.Context, cutoff time.Time) ([]models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []models.Match
	for _, mt := range m.st.matches {
		if mt.Status == models.MatchWaiting && mt.CreatedAt.After(cutoff) {
			matches = append(matches, mt)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	return matches, nil
}

func (m *Memory) ListStaleWaitingMatches(ctx context.Context, cutoff time.Time) ([]models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []models.Match
	for _, mt := range m.st.matches {
		if mt.Status == models.MatchWaiting && !mt.CreatedAt.After(cutoff) {
			matches = append(matches, mt)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return matches, nil
}

func (m *Memory) GetMatchPlayers(ctx context.Context, matchID string) ([]models.MatchPlayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.matchPlayers(matchID), nil
}

func (m *Memory) GetJoinRequest(ctx context.Context, id string) (*models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.joinRequests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (m *Memory) ListUserTransactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []models.Transaction
	for i := len(m.st.transactions) - 1; i >= 0; i-- {
		if m.st.transactions[i].UserID == userID {
			txs = append(txs, m.st.transactions[i])
		}
	}
	if offset >= len(txs) {
		return nil, nil
	}
	txs = txs[offset:]
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return txs, nil
}

func (m *Memory) ListMatchTransactions(ctx context.Context, matchID string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []models.Transaction
	for _, t := range m.st.transactions {
		if t.MatchID.Valid && t.MatchID.String == matchID {
			txs = append(txs, t)
		}
	}
	return txs, nil
}

func (m *Memory) GetMatchRevenue(ctx context.Context, matchID string) (*models.PlatformRevenue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.st.revenues {
		if r.MatchID == matchID {
			r := r
			return &r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memState) matchPlayers(matchID string) []models.MatchPlayer {
	var players []models.MatchPlayer
	for _, p := range s.players {
		if p.MatchID == matchID {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].JoinedAt.Before(players[j].JoinedAt) })
	return players
}

// memTx mutates the shared state directly; WithTx restores the snapshot on error.
type memTx struct {
	m *Memory
}

func (t *memTx) CreateUser(u *models.User) error {
	u.CreatedAt = time.Now()
	t.m.st.users[u.ID] = *u
	return nil
}

func (t *memTx) GetUserForUpdate(id string) (*models.User, error) {
	u, ok := t.m.st.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (t *memTx) UpdateUserBalance(id string, balance decimal.Decimal) error {
	u, ok := t.m.st.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.Balance = balance
	t.m.st.users[id] = u
	return nil
}

func (t *memTx) SetUserBlocked(id string, blocked bool) error {
	u, ok := t.m.st.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.IsBlocked = blocked
	t.m.st.users[id] = u
	return nil
}

func (t *memTx) CreateGame(g *models.Game) error {
	g.CreatedAt = time.Now()
	t.m.st.games[g.ID] = *g
	return nil
}

func (t *memTx) CreateMatch(mt *models.Match) error {
	mt.CreatedAt = time.Now()
	t.m.st.matches[mt.ID] = *mt
	return nil
}

func (t *memTx) GetMatchForUpdate(id string) (*models.Match, error) {
	mt, ok := t.m.st.matches[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &mt, nil
}

func (t *memTx) UpdateMatch(mt *models.Match) error {
	cur, ok := t.m.st.matches[mt.ID]
	if !ok {
		return models.ErrNotFound
	}
	cur.Status = mt.Status
	cur.PlatformFee = mt.PlatformFee
	cur.WinnerID = mt.WinnerID
	cur.GameState = mt.GameState
	cur.CountdownStartedAt = mt.CountdownStartedAt
	cur.StartedAt = mt.StartedAt
	cur.CompletedAt = mt.CompletedAt
	t.m.st.matches[mt.ID] = cur
	return nil
}

func (t *memTx) CreateMatchPlayer(p *models.MatchPlayer) error {
	p.ID = t.m.st.nextID
	t.m.st.nextID++
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	t.m.st.players = append(t.m.st.players, *p)
	return nil
}

func (t *memTx) GetMatchPlayersForUpdate(matchID string) ([]models.MatchPlayer, error) {
	return t.m.st.matchPlayers(matchID), nil
}

func (t *memTx) UpdateMatchPlayerResult(matchID, userID string, score decimal.Decimal, result json.RawMessage, submittedAt time.Time) error {
	for i := range t.m.st.players {
		p := &t.m.st.players[i]
		if p.MatchID == matchID && p.UserID == userID {
			p.Score = decimal.NullDecimal{Decimal: score, Valid: true}
			p.GameResult = result
			p.SubmittedAt.Time = submittedAt
			p.SubmittedAt.Valid = true
			return nil
		}
	}
	return models.ErrNotFound
}

func (t *memTx) CreateJoinRequest(r *models.JoinRequest) error {
	r.CreatedAt = time.Now()
	t.m.st.joinRequests[r.ID] = *r
	return nil
}

func (t *memTx) GetJoinRequestForUpdate(id string) (*models.JoinRequest, error) {
	r, ok := t.m.st.joinRequests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (t *memTx) HasPendingJoinRequest(matchID, userID string) (bool, error) {
	for _, r := range t.m.st.joinRequests {
		if r.MatchID == matchID && r.RequesterID == userID && r.Status == models.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) UpdateJoinRequestStatus(id, status string) error {
	r, ok := t.m.st.joinRequests[id]
	if !ok {
		return models.ErrNotFound
	}
	r.Status = status
	r.ResolvedAt.Time = time.Now()
	r.ResolvedAt.Valid = true
	t.m.st.joinRequests[id] = r
	return nil
}

func (t *memTx) RejectPendingJoinRequests(matchID, exceptID string) error {
	for id, r := range t.m.st.joinRequests {
		if r.MatchID == matchID && r.Status == models.RequestPending && id != exceptID {
			r.Status = models.RequestRejected
			r.ResolvedAt.Time = time.Now()
			r.ResolvedAt.Valid = true
			t.m.st.joinRequests[id] = r
		}
	}
	return nil
}

func (t *memTx) InsertTransaction(tr *models.Transaction) error {
	tr.ID = t.m.st.nextID
	t.m.st.nextID++
	tr.CreatedAt = time.Now()
	t.m.st.transactions = append(t.m.st.transactions, *tr)
	return nil
}

func (t *memTx) ListMatchTransactions(matchID string) ([]models.Transaction, error) {
	var txs []models.Transaction
	for _, tr := range t.m.st.transactions {
		if tr.MatchID.Valid && tr.MatchID.String == matchID {
			txs = append(txs, tr)
		}
	}
	return txs, nil
}

func (t *memTx) CreatePlatformRevenue(matchID string, amount decimal.Decimal) error {
	t.m.st.revenues = append(t.m.st.revenues, models.PlatformRevenue{
		ID:        t.m.st.nextID,
		MatchID:   matchID,
		Amount:    amount,
		CreatedAt: time.Now(),
	})
	t.m.st.nextID++
	return nil
}

func (t *memTx) CreateDepositRequest(r *models.DepositRequest) error {
	r.CreatedAt = time.Now()
	t.m.st.deposits[r.ID] = *r
	return nil
}

func (t *memTx) GetDepositRequestForUpdate(id string) (*models.DepositRequest, error) {
	r, ok := t.m.st.deposits[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (t *memTx) UpdateDepositRequest(id, status, note string) error {
	r, ok := t.m.st.deposits[id]
	if !ok {
		return models.ErrNotFound
	}
	r.Status = status
	r.Note = note
	r.ProcessedAt.Time = time.Now()
	r.ProcessedAt.Valid = true
	t.m.st.deposits[id] = r
	return nil
}

func (t *memTx) HasPendingDeposit(userID string) (bool, error) {
	for _, r := range t.m.st.deposits {
		if r.UserID == userID && r.Status == models.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreateWithdrawalRequest(r *models.WithdrawalRequest) error {
	r.CreatedAt = time.Now()
	t.m.st.withdrawals[r.ID] = *r
	return nil
}

func (t *memTx) GetWithdrawalRequestForUpdate(id string) (*models.WithdrawalRequest, error) {
	r, ok := t.m.st.withdrawals[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (t *memTx) UpdateWithdrawalRequest(id, status, note string) error {
	r, ok := t.m.st.withdrawals[id]
	if !ok {
		return models.ErrNotFound
	}
	r.Status = status
	r.Note = note
	r.ProcessedAt.Time = time.Now()
	r.ProcessedAt.Valid = true
	t.m.st.withdrawals[id] = r
	return nil
}

func (t *memTx) HasPendingWithdrawal(userID string) (bool, error) {
	for _, r := range t.m.st.withdrawals {
		if r.UserID == userID && r.Status == models.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

// SetMatchCreatedAt backdates a match's creation time. Test helper for
// staleness filtering and the reconciliation sweeper.
func (m *Memory) SetMatchCreatedAt(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mt, ok := m.st.matches[id]; ok {
		mt.CreatedAt = at
		m.st.matches[id] = mt
	}
}
