package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/hongquyngo/production/internal/config"
	"github.com/hongquyngo/production/internal/handler"
	"github.com/hongquyngo/production/internal/middleware"
	"github.com/hongquyngo/production/internal/model/entity"
	"github.com/hongquyngo/production/internal/repository"
	"github.com/hongquyngo/production/internal/service"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting production service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := entity.AutoMigrate(db); err != nil {
		zapLogger.Fatal("Failed to auto-migrate tables", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// 初始化Redis，用于单号日序列
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, document numbering falls back to uuid suffixes", zap.Error(err))
	}

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, db, rdb, zapLogger, cfg.Allocation.MaxRetries)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 健康检查
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "production"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "production"})
	})

	// 版本信息
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":    "production",
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	registerRoutes(v1, handlers)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func registerRoutes(v1 *gin.RouterGroup, handlers *handler.Handlers) {
	// 配方管理
	boms := v1.Group("/boms")
	{
		boms.GET("", handlers.BOM.List)
		boms.POST("", handlers.BOM.Create)
		boms.GET("/where-used/:materialId", handlers.BOM.WhereUsed)
		boms.GET("/:id", handlers.BOM.Get)
		boms.PUT("/:id/status", handlers.BOM.UpdateStatus)
		boms.GET("/:id/explode", handlers.BOM.Explode)
	}

	// 生产订单
	orders := v1.Group("/orders")
	{
		orders.GET("", handlers.Production.List)
		orders.POST("", handlers.Production.Create)
		orders.GET("/preview", handlers.Production.PreviewRequirements)
		orders.GET("/no/:orderNo", handlers.Production.GetByOrderNo)
		orders.GET("/:id", handlers.Production.Get)
		orders.GET("/:id/materials", handlers.Production.Materials)
		orders.POST("/:id/issue", handlers.Production.IssueMaterials)
		orders.POST("/:id/complete", handlers.Production.Complete)
		orders.POST("/:id/cancel", handlers.Production.Cancel)
		orders.GET("/:id/issues", handlers.Production.Issues)
		orders.GET("/:id/consumptions", handlers.Production.Consumptions)
		orders.GET("/:id/batches", handlers.Production.Batches)
	}

	v1.GET("/warehouses", handlers.Inventory.Warehouses)

	// 库存
	inventory := v1.Group("/inventory")
	{
		inventory.POST("/stock-in", handlers.Inventory.StockIn)
		inventory.GET("/balance", handlers.Inventory.Balance)
		inventory.GET("/batches", handlers.Inventory.StockByBatch)
		inventory.GET("/lots/:id", handlers.Inventory.GetLot)
		inventory.GET("/expiry", handlers.Inventory.ExpiryDashboard)
		inventory.GET("/allocation-preview", handlers.Inventory.PreviewAllocation)
		inventory.GET("/low-stock", handlers.Inventory.LowStock)
		inventory.GET("/production-impact", handlers.Inventory.ProductionImpact)
	}

	// 批次追溯
	trace := v1.Group("/trace")
	{
		trace.GET("/batches", handlers.Trace.BatchesByDate)
		trace.GET("/batches/:batchNo", handlers.Trace.BatchInfo)
		trace.GET("/batches/:batchNo/sources", handlers.Trace.BatchSources)
		trace.GET("/batches/:batchNo/locations", handlers.Trace.BatchLocations)
		trace.GET("/batches/:batchNo/movements", handlers.Trace.BatchMovements)
		trace.GET("/receipts/:batchNo", handlers.Trace.ReceiptByBatch)
	}

	// 报表
	reports := v1.Group("/reports")
	{
		reports.GET("/production/summary", handlers.Production.Summary)
		reports.GET("/production/daily", handlers.Production.DailyProduction)
		reports.GET("/consumption/totals", handlers.Production.ConsumptionTotals)
		reports.GET("/consumption/daily", handlers.Production.DailyConsumption)
		reports.GET("/orders/status", handlers.Production.StatusDistribution)
		reports.GET("/orders/type", handlers.Production.TypeDistribution)
		reports.GET("/activities", handlers.Production.RecentActivities)
	}
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// 单号唯一索引冲突需要被识别为 gorm.ErrDuplicatedKey 以触发重试
		TranslateError: true,
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return db, nil
}
