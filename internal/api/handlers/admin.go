package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/play2cash/backend/internal/admin"
	"github.com/play2cash/backend/internal/config"
	"github.com/play2cash/backend/internal/models"
	"github.com/play2cash/backend/internal/store"
	"github.com/play2cash/backend/internal/wallet"
	"github.com/shopspring/decimal"
)

// GetAdminUsers returns a paginated user list with balances.
func GetAdminUsers(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		search := c.DefaultQuery("search", "")
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit > 200 {
			limit = 200
		}

		type userRow struct {
			ID          string `db:"id" json:"id"`
			AccountID   string `db:"account_id" json:"accountId"`
			Email       string `db:"email" json:"email"`
			DisplayName string `db:"display_name" json:"displayName"`
			Balance     string `db:"balance" json:"balance"`
			IsBlocked   bool   `db:"is_blocked" json:"isBlocked"`
			CreatedAt   string `db:"created_at" json:"createdAt"`
			MatchCount  int    `db:"match_count" json:"matchCount"`
			TotalCount  int    `db:"total_count" json:"-"`
		}

		query := `
			SELECT u.id, u.account_id, u.email, u.display_name, u.balance::text as balance,
				u.is_blocked,
				to_char(u.created_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') as created_at,
				(SELECT COUNT(*) FROM match_players mp WHERE mp.user_id = u.id) as match_count,
				COUNT(*) OVER() as total_count
			FROM users u
			WHERE u.is_system = FALSE
				AND ($1 = '' OR u.email ILIKE '%'||$1||'%' OR u.account_id ILIKE '%'||$1||'%')
			ORDER BY u.created_at DESC
			LIMIT $2 OFFSET $3
		`

		var rows []userRow
		if err := db.Select(&rows, query, search, limit, offset); err != nil {
			respondError(c, err)
			return
		}

		total := 0
		if len(rows) > 0 {
			total = rows[0].TotalCount
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "users": rows, "total": total, "limit": limit, "offset": offset})
	}
}

// AdminSetUserBlocked blocks or unblocks a user account.
func AdminSetUserBlocked(db *sqlx.DB, st store.Store, blocked bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminUsername := c.GetString("admin_username")
		targetID := c.Param("id")
		action := "unblock_user"
		if blocked {
			action = "block_user"
		}

		err := st.WithTx(c.Request.Context(), func(tx store.Tx) error {
			return tx.SetUserBlocked(targetID, blocked)
		})
		if err != nil {
			admin.LogAction(db, adminUsername, c.ClientIP(), c.FullPath(), action,
				map[string]interface{}{"user_id": targetID}, false)
			respondError(c, err)
			return
		}

		admin.LogAction(db, adminUsername, c.ClientIP(), c.FullPath(), action,
			map[string]interface{}{"user_id": targetID}, true)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// AdminCreditUser applies a manual balance adjustment by external account id.
func AdminCreditUser(db *sqlx.DB, ledger *wallet.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminUsername := c.GetString("admin_username")

		var req struct {
			AccountID   string          `json:"accountId" binding:"required"`
			Amount      decimal.Decimal `json:"amount" binding:"required"`
			Description string          `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "accountId and amount required"})
			return
		}

		row, err := ledger.ManualAdjust(c.Request.Context(), req.AccountID, req.Amount, req.Description)
		if err != nil {
			admin.LogAction(db, adminUsername, c.ClientIP(), c.FullPath(), "credit_user",
				map[string]interface{}{"account_id": req.AccountID, "amount": req.Amount.String()}, false)
			respondError(c, err)
			return
		}

		admin.LogAction(db, adminUsername, c.ClientIP(), c.FullPath(), "credit_user",
			map[string]interface{}{"account_id": req.AccountID, "amount": req.Amount.String()}, true)
		c.JSON(http.StatusOK, gin.H{"success": true, "balance": row.BalanceAfter})
	}
}

// AdminCreateGame adds a catalog entry. Stake bounds and fee default to the
// platform-wide config values when omitted.
func AdminCreateGame(db *sqlx.DB, st store.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminUsername := c.GetString("admin_username")

		var req struct {
			Slug          string           `json:"slug" binding:"required"`
			Name          string           `json:"name" binding:"required"`
			Scoring       string           `json:"scoring"`
			MinStake      *decimal.Decimal `json:"minStake"`
			MaxStake      *decimal.Decimal `json:"maxStake"`
			FeePercentage *decimal.Decimal `json:"feePercentage"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "slug and name required"})
			return
		}
		if req.Scoring == "" {
			req.Scoring = models.ScoringHighscore
		}
		if req.Scoring != models.ScoringHighscore && req.Scoring != models.ScoringRounds {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown scoring mode"})
			return
		}
		if _, err := st.GetGameBySlug(c.Request.Context(), req.Slug); err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "slug already in use"})
			return
		} else if !errors.Is(err, models.ErrNotFound) {
			respondError(c, err)
			return
		}

		g := &models.Game{
			ID:            uuid.NewString(),
			Slug:          req.Slug,
			Name:          req.Name,
			Scoring:       req.Scoring,
			IsActive:      true,
			MinStake:      decimal.NewFromInt(int64(cfg.MinStake)),
			MaxStake:      decimal.NewFromInt(int64(cfg.MaxStake)),
			FeePercentage: decimal.NewFromInt(int64(cfg.FeePercentage)),
		}
		if req.MinStake != nil {
			g.MinStake = *req.MinStake
		}
		if req.MaxStake != nil {
			g.MaxStake = *req.MaxStake
		}
		if req.FeePercentage != nil {
			g.FeePercentage = *req.FeePercentage
		}
		if g.MinStake.GreaterThan(g.MaxStake) || g.FeePercentage.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid stake bounds or fee"})
			return
		}

		err := st.WithTx(c.Request.Context(), func(tx store.Tx) error {
			return tx.CreateGame(g)
		})
		if err != nil {
			admin.LogAction(db, adminUsername, c.ClientIP(), c.FullPath(), "create_game",
				map[string]interface{}{"slug": req.Slug}, false)
			respondError(c, err)
			return
		}

		admin.LogAction(db, adminUsername, c.ClientIP(), c.FullPath(), "create_game",
			map[string]interface{}{"slug": req.Slug, "fee": g.FeePercentage.String()}, true)
		c.JSON(http.StatusOK, gin.H{"success": true, "game": g})
	}
}

// GetAdminAuditLogs returns recent admin audit entries.
func GetAdminAuditLogs(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit > 200 {
			limit = 200
		}

		logs, err := admin.GetAuditLogs(db, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs})
	}
}
