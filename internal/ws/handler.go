package ws

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/play2cash/backend/internal/config"
	"github.com/play2cash/backend/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Browsers cannot set an Authorization header on a WebSocket upgrade, so
// the bearer token travels as a query parameter instead.
func userIDFromToken(cfg *config.Config, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", fmt.Errorf("invalid token claims")
	}
	return userID, nil
}

// ServeMatch upgrades the connection and subscribes the caller to a match's
// event stream.
func ServeMatch(hub *Hub, st store.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := userIDFromToken(cfg, c.Query("token"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired token"})
			return
		}

		matchID := c.Param("id")
		m, err := st.GetMatch(c.Request.Context(), matchID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "match not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] upgrade failed for user %s: %v", userID, err)
			return
		}

		client := &Client{
			conn:    conn,
			userID:  userID,
			matchID: m.ID,
			send:    make(chan []byte, 16),
		}
		hub.register(client)
		log.Printf("[WS] user %s connected to match %s", userID, m.ID)

		client.sendJSON(map[string]interface{}{
			"type":    "connected",
			"matchId": m.ID,
			"status":  m.Status,
		})

		go client.writePump()
		go client.readPump(hub)
	}
}
