package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sandeshaa/backend/internal/domain"
)

// CredentialGate 凭证校验入口，含黑名单检查
type CredentialGate interface {
	Verify(token string) (*domain.User, error)
}

// JWTAuth JWT认证中间件
type JWTAuth struct {
	gate CredentialGate
	log  *zap.Logger
}

// NewJWTAuth 创建JWT认证中间件
func NewJWTAuth(gate CredentialGate, log *zap.Logger) *JWTAuth {
	return &JWTAuth{
		gate: gate,
		log:  log,
	}
}

// RequireAuth 要求JWT认证
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			c.Abort()
			return
		}

		user, err := ja.gate.Verify(token)
		if err != nil {
			ja.log.Warn("invalid token",
				zap.String("error", err.Error()),
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			c.Abort()
			return
		}

		// 将用户信息存储到上下文
		c.Set("userID", user.ID)
		c.Set("username", user.Username)
		c.Set("user", user)

		c.Next()
	}
}

// extractToken 从请求中提取JWT token
func (ja *JWTAuth) extractToken(c *gin.Context) string {
	// 1. 从 Authorization header 提取
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	// 2. 从 cookie 提取
	token, err := c.Cookie("access_token")
	if err == nil && token != "" {
		return token
	}

	return ""
}

// UserID 从上下文取当前用户 ID
func UserID(c *gin.Context) string {
	return c.GetString("userID")
}

// Username 从上下文取当前用户名
func Username(c *gin.Context) string {
	return c.GetString("username")
}

// CurrentUser 从上下文取当前用户
func CurrentUser(c *gin.Context) *domain.User {
	value, exists := c.Get("user")
	if !exists {
		return nil
	}
	user, ok := value.(*domain.User)
	if !ok {
		return nil
	}
	return user
}
