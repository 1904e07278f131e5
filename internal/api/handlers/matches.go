package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/play2cash/backend/internal/config"
	"github.com/play2cash/backend/internal/match"
	"github.com/shopspring/decimal"
)

// CreateMatch escrows the caller's stake and opens a WAITING match.
func CreateMatch(matches *match.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			GameSlug string          `json:"gameSlug" binding:"required"`
			Stake    decimal.Decimal `json:"stake" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "gameSlug and stake required"})
			return
		}
		if !req.Stake.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "stake must be positive"})
			return
		}

		m, err := matches.Create(c.Request.Context(), userID(c), req.GameSlug, req.Stake)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"id":        m.ID,
			"shareLink": cfg.FrontendURL + "/m/" + m.ShareCode,
		})
	}
}

// ListOpenMatches returns joinable matches (staleness-filtered).
func ListOpenMatches(matches *match.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		open, err := matches.ListOpen(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "matches": open})
	}
}

// GetMatch returns a single match by id.
func GetMatch(matches *match.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := matches.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "match": m})
	}
}

// GetMatchByCode resolves a share-link code to its match.
func GetMatchByCode(matches *match.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := matches.GetByShareCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "match": m})
	}
}

// RequestJoinMatch files a claim on the second seat.
func RequestJoinMatch(matches *match.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := matches.RequestJoin(c.Request.Context(), c.Param("id"), userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "requestId": req.ID})
	}
}

// AcceptJoinRequest admits a requester into the second seat and starts the
// countdown.
func AcceptJoinRequest(matches *match.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RequestID string `json:"requestId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "requestId required"})
			return
		}

		countdownStart, err := matches.AcceptJoin(c.Request.Context(), c.Param("id"), userID(c), req.RequestID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":            true,
			"countdownStartTime": countdownStart.UTC().Format(time.RFC3339),
		})
	}
}

// StartMatch transitions COUNTDOWN -> ACTIVE once the countdown elapsed.
func StartMatch(matches *match.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := matches.StartAfterCountdown(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// CancelMatch aborts a not-yet-started match and refunds stakes.
func CancelMatch(matches *match.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := matches.Cancel(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// GetMatchResult returns the settled outcome of a completed match.
func GetMatchResult(matches *match.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := matches.GetResult(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
	}
}
