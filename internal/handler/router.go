package handler

import (
	"time"

	"walletsystem/internal/config"
	"walletsystem/internal/infrastructure/lock"
	"walletsystem/internal/repository"
	"walletsystem/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由并装配服务
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	store := repository.NewWalletStore(db)
	executor := service.NewResilientExecutor(
		service.NewExecutor(store, cfg.Kafka.Topic.LedgerEvents),
		cfg.Business,
	)
	walletService := service.NewWalletService(store, func(userID string) service.ProvisionLock {
		ttl := time.Duration(cfg.Business.ProvisionLockTTLSeconds) * time.Second
		return lock.NewProvisionLock(rdb, userID, ttl)
	})

	h := NewHandler(executor, walletService)

	api := r.Group("/api/v1")
	api.Use(AuthMiddleware())
	{
		wallet := api.Group("/wallet")
		{
			wallet.POST("/create", h.CreateWallet)
			wallet.GET("/balance", h.GetBalance)
			wallet.GET("/statement", h.GetStatement)
		}

		operations := api.Group("/operations")
		{
			operations.POST("/deposit", h.Deposit)
			operations.POST("/withdraw", h.Withdraw)
			operations.POST("/transfer", h.Transfer)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
