package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/play2cash/backend/internal/store"
	"github.com/play2cash/backend/internal/wallet"
	"github.com/shopspring/decimal"
)

// GetWallet returns the caller's balance and recent ledger rows.
func GetWallet(ledger *wallet.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		balance, txs, err := ledger.Balance(c.Request.Context(), userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "balance": balance, "transactions": txs})
	}
}

// ListTransactions returns the caller's ledger history, paginated.
func ListTransactions(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit > 200 {
			limit = 200
		}

		txs, err := st.ListUserTransactions(c.Request.Context(), userID(c), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "transactions": txs, "limit": limit, "offset": offset})
	}
}

// RequestDeposit queues an admin-moderated deposit.
func RequestDeposit(ledger *wallet.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Amount    decimal.Decimal `json:"amount" binding:"required"`
			Method    string          `json:"method"`
			Reference string          `json:"reference"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "amount required"})
			return
		}

		dep, err := ledger.RequestDeposit(c.Request.Context(), userID(c), req.Amount, req.Method, req.Reference)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "requestId": dep.ID})
	}
}

// RequestWithdrawal debits the wallet and queues an admin-moderated payout.
func RequestWithdrawal(ledger *wallet.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Amount      decimal.Decimal `json:"amount" binding:"required"`
			Method      string          `json:"method"`
			Destination string          `json:"destination"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "amount required"})
			return
		}

		wd, err := ledger.RequestWithdrawal(c.Request.Context(), userID(c), req.Amount, req.Method, req.Destination)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "requestId": wd.ID})
	}
}
