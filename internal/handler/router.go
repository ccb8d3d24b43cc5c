package handler

import (
	"creditmanager/internal/config"
	"creditmanager/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter wires middleware and routes. Admin routes only exist
// outside release mode; in release mode those paths 404.
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, resolver *service.PricingResolver) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg, resolver)

	api := r.Group("/api/v1")
	{
		account := api.Group("/account")
		{
			account.POST("/register", h.Register)
			account.GET("/balance", h.GetBalance)
			account.GET("/exists", h.Exists)
			account.POST("/use", h.Use)
			account.GET("/transactions", h.ListTransactions)
		}

		purchase := api.Group("/purchase")
		{
			purchase.GET("/packs", h.ListPacks)
			purchase.POST("/checkout", h.Checkout)
			purchase.POST("/webhook", h.Webhook)
		}

		if cfg.IsDebug() {
			admin := api.Group("/admin")
			{
				admin.POST("/balances/clear", h.ClearAllBalances)
				admin.POST("/balance/adjust", h.AdjustBalance)
				admin.DELETE("/account/:id", h.DeleteAccount)
				admin.DELETE("/accounts", h.DeleteAllAccounts)
			}
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
