package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sandeshaa/backend/internal/auth"
	jwtpkg "sandeshaa/backend/internal/auth/jwt"
	"sandeshaa/backend/internal/config"
	"sandeshaa/backend/internal/delivery"
	"sandeshaa/backend/internal/health"
	"sandeshaa/backend/internal/middleware"
	"sandeshaa/backend/internal/monitoring"
	"sandeshaa/backend/internal/service"
)

// 登录端点默认限流：每 IP 每分钟 10 次尝试
const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	AuthService    *auth.Service
	JWTManager     *jwtpkg.Manager
	Gate           *auth.Gate
	MessageService *service.MessageService
	FileService    *service.FileService
	Engine         *delivery.Engine
	Metrics        *monitoring.Metrics
	HealthChecker  *health.HealthChecker
	RateLimitCache middleware.RateLimitCache // 可为 nil
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.HTTPMetrics(deps.Metrics))

	// 全局请求体上限：上传上限再加 multipart 开销余量
	router.Use(middleware.RequestSizeLimit(deps.Config.Upload.MaxSize + 1<<20))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager, deps.Gate, deps.Metrics, deps.Logger)
	messageHandler := NewMessageHandler(deps.MessageService, deps.Logger)
	fileHandler := NewFileHandler(deps.FileService, deps.Logger)

	jwtAuth := middleware.NewJWTAuth(deps.Gate, deps.Logger)
	loginLimit := middleware.LoginRateLimit(deps.RateLimitCache, loginRateLimit, loginRateWindow, deps.Logger)

	// 健康检查与指标
	router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveEndpoint()))
	router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint()))
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	api := router.Group("/api")
	{
		// ========== Auth Routes ==========
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", loginLimit, authHandler.Register)
			authRoutes.POST("/login", loginLimit, authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.POST("/logout", jwtAuth.RequireAuth(), authHandler.Logout)
		}

		api.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)

		// 公钥查询为公开端点，密钥交换发生在首条消息之前
		api.GET("/users/:username/keys", authHandler.GetKeys)

		// ========== Conversation Routes ==========
		conversationRoutes := api.Group("/conversations")
		conversationRoutes.Use(jwtAuth.RequireAuth())
		{
			conversationRoutes.GET("", messageHandler.ListConversations)
			conversationRoutes.GET("/:username/messages", messageHandler.History)
			conversationRoutes.DELETE("/:username", messageHandler.ClearConversation)
		}

		// ========== File Routes ==========
		fileRoutes := api.Group("/files")
		fileRoutes.Use(jwtAuth.RequireAuth())
		{
			fileRoutes.POST("", fileHandler.Upload)
			fileRoutes.GET("/:id", fileHandler.Download)
		}
	}

	// ========== WebSocket ==========
	// 准入凭证走 ?token=，在引擎内升级后校验
	router.GET("/ws", delivery.HandleWebSocket(deps.Engine))

	return router
}
