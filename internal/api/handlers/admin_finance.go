package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/play2cash/backend/internal/admin"
	"github.com/play2cash/backend/internal/wallet"
)

type financeRow struct {
	ID          string `db:"id" json:"id"`
	UserID      string `db:"user_id" json:"userId"`
	AccountID   string `db:"account_id" json:"accountId"`
	Email       string `db:"email" json:"email"`
	Amount      string `db:"amount" json:"amount"`
	Method      string `db:"method" json:"method"`
	Detail      string `db:"detail" json:"detail"`
	Status      string `db:"status" json:"status"`
	Note        string `db:"note" json:"note"`
	CreatedAt   string `db:"created_at" json:"createdAt"`
	ProcessedAt string `db:"processed_at" json:"processedAt"`
	TotalCount  int    `db:"total_count" json:"-"`
}

func listFinanceRequests(db *sqlx.DB, table, detailCol string) func(status string, limit, offset int) ([]financeRow, int, error) {
	return func(status string, limit, offset int) ([]financeRow, int, error) {
		query := `
			SELECT r.id, r.user_id, u.account_id, u.email, r.amount::text as amount,
				r.method, r.` + detailCol + ` as detail, r.status, r.note,
				to_char(r.created_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"') as created_at,
				COALESCE(to_char(r.processed_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"'), '') as processed_at,
				COUNT(*) OVER() as total_count
			FROM ` + table + ` r
			JOIN users u ON u.id = r.user_id
			WHERE ($1 = '' OR r.status = $1)
			ORDER BY r.created_at DESC
			LIMIT $2 OFFSET $3
		`
		var rows []financeRow
		if err := db.Select(&rows, query, status, limit, offset); err != nil {
			return nil, 0, err
		}
		total := 0
		if len(rows) > 0 {
			total = rows[0].TotalCount
		}
		return rows, total, nil
	}
}

func pageParams(c *gin.Context) (string, int, int) {
	status := c.DefaultQuery("status", "")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit > 200 {
		limit = 200
	}
	return status, limit, offset
}

// GetAdminDeposits lists deposit requests, newest first.
func GetAdminDeposits(db *sqlx.DB) gin.HandlerFunc {
	list := listFinanceRequests(db, "deposit_requests", "reference")
	return func(c *gin.Context) {
		status, limit, offset := pageParams(c)
		rows, total, err := list(status, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "requests": rows, "total": total, "limit": limit, "offset": offset})
	}
}

// GetAdminWithdrawals lists withdrawal requests, newest first.
func GetAdminWithdrawals(db *sqlx.DB) gin.HandlerFunc {
	list := listFinanceRequests(db, "withdrawal_requests", "destination")
	return func(c *gin.Context) {
		status, limit, offset := pageParams(c)
		rows, total, err := list(status, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "requests": rows, "total": total, "limit": limit, "offset": offset})
	}
}

func resolveFinanceRequest(db *sqlx.DB, action string, resolve func(c *gin.Context, requestID, note string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminUsername := c.GetString("admin_username")
		requestID := c.Param("id")

		var req struct {
			Note string `json:"note"`
		}
		_ = c.ShouldBindJSON(&req)

		err := resolve(c, requestID, req.Note)
		if err != nil {
			admin.LogAction(db, adminUsername, c.ClientIP(), c.FullPath(), action,
				map[string]interface{}{"request_id": requestID}, false)
			respondError(c, err)
			return
		}

		admin.LogAction(db, adminUsername, c.ClientIP(), c.FullPath(), action,
			map[string]interface{}{"request_id": requestID, "note": req.Note}, true)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// ApproveDeposit credits the user's wallet and closes the request.
func ApproveDeposit(db *sqlx.DB, ledger *wallet.Ledger) gin.HandlerFunc {
	return resolveFinanceRequest(db, "approve_deposit", func(c *gin.Context, id, note string) error {
		return ledger.ApproveDeposit(c.Request.Context(), id, note)
	})
}

// RejectDeposit closes the request without moving money.
func RejectDeposit(db *sqlx.DB, ledger *wallet.Ledger) gin.HandlerFunc {
	return resolveFinanceRequest(db, "reject_deposit", func(c *gin.Context, id, note string) error {
		return ledger.RejectDeposit(c.Request.Context(), id, note)
	})
}

// ApproveWithdrawal marks an escrowed withdrawal as paid out.
func ApproveWithdrawal(db *sqlx.DB, ledger *wallet.Ledger) gin.HandlerFunc {
	return resolveFinanceRequest(db, "approve_withdrawal", func(c *gin.Context, id, note string) error {
		return ledger.ApproveWithdrawal(c.Request.Context(), id, note)
	})
}

// RejectWithdrawal refunds the escrowed amount and closes the request.
func RejectWithdrawal(db *sqlx.DB, ledger *wallet.Ledger) gin.HandlerFunc {
	return resolveFinanceRequest(db, "reject_withdrawal", func(c *gin.Context, id, note string) error {
		return ledger.RejectWithdrawal(c.Request.Context(), id, note)
	})
}

// GetAdminRevenue reports accumulated platform fees.
func GetAdminRevenue(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var summary struct {
			TotalRevenue string `db:"total_revenue" json:"totalRevenue"`
			MatchCount   int    `db:"match_count" json:"matchCount"`
		}
		err := db.Get(&summary, `
			SELECT COALESCE(SUM(amount), 0)::text as total_revenue, COUNT(*) as match_count
			FROM platform_revenue
		`)
		if err != nil {
			respondError(c, err)
			return
		}

		type dayRow struct {
			Day     string `db:"day" json:"day"`
			Revenue string `db:"revenue" json:"revenue"`
			Matches int    `db:"matches" json:"matches"`
		}
		var daily []dayRow
		err = db.Select(&daily, `
			SELECT to_char(created_at, 'YYYY-MM-DD') as day,
				SUM(amount)::text as revenue, COUNT(*) as matches
			FROM platform_revenue
			WHERE created_at > NOW() - INTERVAL '30 days'
			GROUP BY 1
			ORDER BY 1 DESC
		`)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary, "daily": daily})
	}
}
