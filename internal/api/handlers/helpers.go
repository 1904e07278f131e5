package handlers

import (
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/play2cash/backend/internal/models"
)

// generateID generates a random alphanumeric ID
func generateID(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

// generateAccountID generates the external-facing account handle shown to
// admins for manual operations.
func generateAccountID() string {
	return "P2C-" + generateID(8)
}

// respondError maps a domain error onto the uniform failure envelope.
// Internal errors are logged with context and surfaced generically.
func respondError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrConflict):
		status = http.StatusBadRequest
	default:
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation. Check-then-insert races surface as this instead of the
// pre-check's clean error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// userID returns the authenticated user id set by the auth middleware.
func userID(c *gin.Context) string {
	return c.GetString("user_id")
}
