package middleware

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/play2cash/backend/internal/config"
)

// CORS returns a CORS middleware configured for the environment.
func CORS(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"X-Admin-Username", "X-Admin-Token", "Accept", "Cache-Control",
			"X-Requested-With",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour, // Cache preflight responses
	}

	if cfg.Environment == "development" {
		corsConfig.AllowOrigins = []string{
			"http://localhost:5173", // Vite dev server
			"http://127.0.0.1:5173",
		}
		if cfg.FrontendURL != "" {
			corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, cfg.FrontendURL)
		}
	} else if cfg.FrontendURL != "" {
		corsConfig.AllowOrigins = []string{cfg.FrontendURL}
		log.Printf("[CORS] allowed origins: %v", corsConfig.AllowOrigins)
	} else {
		// No frontend configured: same-origin / non-browser clients only.
		log.Printf("[CORS] FRONTEND_URL not set; cross-origin browser clients will be refused")
		corsConfig.AllowCredentials = false
		corsConfig.AllowOriginFunc = func(origin string) bool { return false }
	}

	return cors.New(corsConfig)
}
