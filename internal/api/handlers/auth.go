package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/play2cash/backend/internal/config"
	"github.com/play2cash/backend/internal/models"
	"github.com/play2cash/backend/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func issueToken(cfg *config.Config, userID string) (string, error) {
	exp := time.Now().Add(time.Duration(cfg.TokenTTLHours) * time.Hour)
	claims := jwt.MapClaims{"user_id": userID, "exp": exp.Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// Register creates a new user account and returns a bearer token.
func Register(st store.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email       string `json:"email" binding:"required"`
			Password    string `json:"password" binding:"required"`
			DisplayName string `json:"displayName"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email and password required"})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid email address"})
			return
		}
		if len(req.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "password must be at least 8 characters"})
			return
		}
		name := strings.TrimSpace(req.DisplayName)
		if len(name) > 50 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "displayName too long"})
			return
		}

		if _, err := st.GetUserByEmail(c.Request.Context(), email); err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email already registered"})
			return
		} else if !errors.Is(err, models.ErrNotFound) {
			respondError(c, err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(c, err)
			return
		}

		user := &models.User{
			ID:           uuid.NewString(),
			AccountID:    generateAccountID(),
			Email:        email,
			PasswordHash: string(hash),
			DisplayName:  name,
			Balance:      decimal.Zero,
		}
		err = st.WithTx(c.Request.Context(), func(tx store.Tx) error {
			return tx.CreateUser(user)
		})
		if err != nil {
			// A concurrent registration can win the race between the
			// duplicate pre-check and the insert.
			if isUniqueViolation(err) {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email already registered"})
				return
			}
			respondError(c, err)
			return
		}

		token, err := issueToken(cfg, user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": user})
	}
}

// Login authenticates by email + password and returns a bearer token.
// Attempts are rate limited per email via Redis.
func Login(st store.Store, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email and password required"})
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))

		if rdb != nil && cfg.LoginRateLimitSeconds > 0 {
			key := fmt.Sprintf("login_rate:%s", email)
			ok, err := rdb.SetNX(context.Background(), key, "1",
				time.Duration(cfg.LoginRateLimitSeconds)*time.Second).Result()
			if err == nil && !ok {
				c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "too many login attempts"})
				return
			}
		}

		user, err := st.GetUserByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid email or password"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid email or password"})
			return
		}
		if user.IsBlocked {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "account is blocked"})
			return
		}

		token, err := issueToken(cfg, user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": user})
	}
}
