package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/earnings-ledger/internal/config"
	"github.com/ignatzorin/earnings-ledger/internal/http/handlers"
	"github.com/ignatzorin/earnings-ledger/internal/http/middleware"
	"github.com/ignatzorin/earnings-ledger/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	tokenManager *service.TokenManager,
	ledgerHandler *handlers.LedgerHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	vaultHandler *handlers.VaultHandler,
	reportHandler *handlers.ReportHandler,
	healthHandler *handlers.HealthHandler,
	wsHandler *handlers.WSHandler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// WebSocket проверяет токен из query сам
	api.GET("/ws", wsHandler.Handle)

	viewer := api.Group("/")
	viewer.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(service.RoleViewer))
	{
		viewer.GET("/accounts", ledgerHandler.ListAccounts)
		viewer.GET("/accounts/:id/balance", ledgerHandler.GetBalance)
		viewer.GET("/accounts/:id/withdrawals", withdrawalHandler.ListAccountWithdrawals)
		viewer.GET("/withdrawals/:id", middleware.UUIDValidator("id"), withdrawalHandler.GetWithdrawal)
		viewer.GET("/vault/entries", vaultHandler.ListEntries)
		viewer.GET("/summary", reportHandler.Summary)
		viewer.GET("/audit", reportHandler.Audit)
	}

	operator := api.Group("/")
	operator.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(service.RoleOperator))
	{
		operator.POST("/accounts/:id/credits", ledgerHandler.Credit)
		operator.PUT("/accounts/:id/policy", ledgerHandler.ConfigurePolicy)
		operator.POST("/accounts/:id/withdrawals", withdrawalHandler.ReEnqueue)

		operator.POST("/queue/pause", withdrawalHandler.Pause)
		operator.POST("/queue/resume", withdrawalHandler.Resume)
		operator.POST("/queue/drain", withdrawalHandler.Drain)

		operator.POST("/vault/entries", vaultHandler.StoreEntry)
		operator.POST("/vault/entries/:id/redeem", middleware.UUIDValidator("id"), vaultHandler.Redeem)

		secretRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
		operator.GET("/vault/entries/:id/secret", secretRateLimit, middleware.UUIDValidator("id"), vaultHandler.RetrieveSecret)
	}

	return r
}
