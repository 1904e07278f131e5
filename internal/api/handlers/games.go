package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/play2cash/backend/internal/match"
	"github.com/play2cash/backend/internal/store"
	"github.com/shopspring/decimal"
)

// ListGames returns the active game catalog.
func ListGames(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		games, err := st.ListActiveGames(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "games": games})
	}
}

// SubmitResult records the caller's score for an active match and settles
// the match when both sides are in.
func SubmitResult(matches *match.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			MatchID  string          `json:"matchId" binding:"required"`
			Score    decimal.Decimal `json:"score"`
			GameData json.RawMessage `json:"gameData"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "matchId required"})
			return
		}

		err := matches.SaveGameResult(c.Request.Context(), req.MatchID, userID(c), req.Score, req.GameData)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
