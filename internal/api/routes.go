package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/play2cash/backend/internal/api/handlers"
	"github.com/play2cash/backend/internal/config"
	"github.com/play2cash/backend/internal/match"
	"github.com/play2cash/backend/internal/middleware"
	"github.com/play2cash/backend/internal/store"
	"github.com/play2cash/backend/internal/wallet"
	"github.com/play2cash/backend/internal/ws"
	"github.com/redis/go-redis/v9"
)

// Deps bundles everything the route handlers need.
type Deps struct {
	DB      *sqlx.DB
	Redis   *redis.Client
	Config  *config.Config
	Store   store.Store
	Ledger  *wallet.Ledger
	Matches *match.Service
	Hub     *ws.Hub
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Deps) {
	router.Use(middleware.CORS(d.Config))

	// No-cache middleware for development
	if d.Config.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Auth
		auth := v1.Group("/auth")
		{
			auth.POST("/register", handlers.Register(d.Store, d.Config))
			auth.POST("/login", handlers.Login(d.Store, d.Redis, d.Config))
		}

		// Authenticated user surface
		user := v1.Group("")
		user.Use(middleware.RequireUser(d.Config))
		{
			user.GET("/games", handlers.ListGames(d.Store))
			user.POST("/games/submit-result", handlers.SubmitResult(d.Matches))

			matches := user.Group("/matches")
			{
				matches.POST("", handlers.CreateMatch(d.Matches, d.Config))
				matches.GET("/open", handlers.ListOpenMatches(d.Matches))
				matches.GET("/code/:code", handlers.GetMatchByCode(d.Matches))
				matches.GET("/:id", handlers.GetMatch(d.Matches))
				matches.POST("/:id/request-join", handlers.RequestJoinMatch(d.Matches))
				matches.POST("/:id/accept", handlers.AcceptJoinRequest(d.Matches))
				matches.POST("/:id/start", handlers.StartMatch(d.Matches))
				matches.POST("/:id/cancel", handlers.CancelMatch(d.Matches))
				matches.GET("/:id/result", handlers.GetMatchResult(d.Matches))
			}

			walletGroup := user.Group("/wallet")
			{
				walletGroup.GET("", handlers.GetWallet(d.Ledger))
				walletGroup.GET("/transactions", handlers.ListTransactions(d.Store))
				walletGroup.POST("/deposits", handlers.RequestDeposit(d.Ledger))
				walletGroup.POST("/withdrawals", handlers.RequestWithdrawal(d.Ledger))
			}
		}

		// Live match event stream (token travels as a query parameter)
		v1.GET("/matches/:id/ws", ws.ServeMatch(d.Hub, d.Store, d.Config))

		// Admin panel
		adminGroup := v1.Group("/admin")
		adminGroup.Use(middleware.RequireAdmin(d.DB))
		{
			adminGroup.GET("/users", handlers.GetAdminUsers(d.DB))
			adminGroup.POST("/users/:id/block", handlers.AdminSetUserBlocked(d.DB, d.Store, true))
			adminGroup.POST("/users/:id/unblock", handlers.AdminSetUserBlocked(d.DB, d.Store, false))
			adminGroup.POST("/users/credit", handlers.AdminCreditUser(d.DB, d.Ledger))

			adminGroup.POST("/games", handlers.AdminCreateGame(d.DB, d.Store, d.Config))

			adminGroup.GET("/deposits", handlers.GetAdminDeposits(d.DB))
			adminGroup.POST("/deposits/:id/approve", handlers.ApproveDeposit(d.DB, d.Ledger))
			adminGroup.POST("/deposits/:id/reject", handlers.RejectDeposit(d.DB, d.Ledger))

			adminGroup.GET("/withdrawals", handlers.GetAdminWithdrawals(d.DB))
			adminGroup.POST("/withdrawals/:id/approve", handlers.ApproveWithdrawal(d.DB, d.Ledger))
			adminGroup.POST("/withdrawals/:id/reject", handlers.RejectWithdrawal(d.DB, d.Ledger))

			adminGroup.GET("/revenue", handlers.GetAdminRevenue(d.DB))
			adminGroup.GET("/audit", handlers.GetAdminAuditLogs(d.DB))
		}
	}
}
