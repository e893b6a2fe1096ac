package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sandeshaa/backend/internal/auth"
	jwtpkg "sandeshaa/backend/internal/auth/jwt"
	"sandeshaa/backend/internal/config"
	"sandeshaa/backend/internal/delivery"
	"sandeshaa/backend/internal/health"
	"sandeshaa/backend/internal/logger"
	"sandeshaa/backend/internal/middleware"
	"sandeshaa/backend/internal/monitoring"
	"sandeshaa/backend/internal/retention"
	"sandeshaa/backend/internal/service"
	"sandeshaa/backend/internal/session"
	"sandeshaa/backend/internal/storage"
	"sandeshaa/backend/internal/storage/filesystem"
	"sandeshaa/backend/internal/storage/memory"
	"sandeshaa/backend/internal/storage/postgres"
	rediscache "sandeshaa/backend/internal/storage/redis"
	httptransport "sandeshaa/backend/internal/transport/http"
)

// main 启动消息中继服务：HTTP API、WebSocket 投递引擎与保留清扫器。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting sandeshaa server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	store, err := initializeStorage(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}
	defer store.Close()

	// 初始化 Blob 存储（加密文件内容）
	blobStore, err := filesystem.NewStore(cfg.Upload.Dir)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize blob storage: %v", err))
	}
	log.Info("blob storage initialized", zap.String("path", cfg.Upload.Dir))

	// Redis 为可选协作方：黑名单、限流和在线状态在未配置时全部退化为空操作
	var cache *rediscache.Cache
	if cfg.Redis.Address != "" {
		cache, err = rediscache.NewCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, continuing without it", zap.Error(err))
			cache = nil
		} else {
			log.Info("redis cache initialized", zap.String("address", cfg.Redis.Address))
			defer cache.Close()
		}
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化认证
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authService := auth.NewService(store)

	var blacklist auth.TokenBlacklist
	if cache != nil {
		blacklist = cache
	}
	gate := auth.NewGate(jwtManager, store, blacklist)

	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("access_expiry", cfg.JWT.AccessExpiry),
		zap.Duration("refresh_expiry", cfg.JWT.RefreshExpiry),
	)

	// 初始化服务层
	messageService := service.NewMessageService(store)
	fileService := service.NewFileService(store, blobStore, cfg.Upload.MaxSize, log)

	// 初始化投递引擎
	registry := session.NewRegistry()

	var presence delivery.PresenceCache
	if cache != nil {
		presence = cache
	}
	engine := delivery.NewEngine(registry, store, gate, presence, metrics, log, delivery.Config{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SendRate:       cfg.Delivery.SendRate,
		SendBurst:      cfg.Delivery.SendBurst,
	})

	// 初始化保留清扫器
	sweeper := retention.NewSweeper(store, blobStore, metrics, log, cfg.Retention)

	// 初始化健康检查
	var cachePinger health.Pinger
	if cache != nil {
		cachePinger = cache
	}
	healthChecker := health.NewHealthChecker(store, cachePinger, log)

	var rateLimitCache middleware.RateLimitCache
	if cache != nil {
		rateLimitCache = cache
	}

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		AuthService:    authService,
		JWTManager:     jwtManager,
		Gate:           gate,
		MessageService: messageService,
		FileService:    fileService,
		Engine:         engine,
		Metrics:        metrics,
		HealthChecker:  healthChecker,
		RateLimitCache: rateLimitCache,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 保留清扫器 goroutine：启动时各跑一轮，之后按周期触发
	group.Go(func() error {
		log.Info("starting retention sweeper",
			zap.Duration("message_max_age", cfg.Retention.MessageMaxAge),
			zap.Duration("file_max_age", cfg.Retention.FileMaxAge),
			zap.Duration("message_interval", cfg.Retention.MessageSweepInterval),
			zap.Duration("file_interval", cfg.Retention.FileSweepInterval),
		)
		if err := sweeper.Run(groupCtx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据配置选择存储实现
//
// 配置了数据库时走 GORM（postgres/mysql）并自动迁移表结构；
// 未配置时退化为内存存储，仅用于开发环境。
func initializeStorage(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	var store *postgres.Store
	var err error

	switch cfg.Database.Type {
	case "postgres":
		store, err = postgres.NewStore(cfg.Database.DSN,
			cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	case "mysql":
		store, err = postgres.NewMySQLStore(cfg.Database.DSN,
			cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Database.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Info("database storage initialized", zap.String("type", cfg.Database.Type))
	return store, nil
}
