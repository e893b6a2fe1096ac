package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitCache 基于滑动窗口计数的限流后端
type RateLimitCache interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
}

// LoginRateLimit 按客户端 IP 限制认证端点的请求频率
//
// cache 为 nil（未配置 Redis）时直接放行。限流后端出错时
// 放行并记日志：可用性优先于限流。
func LoginRateLimit(cache RateLimitCache, limit int64, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("login:%s", c.ClientIP())
		count, err := cache.IncrementRateLimit(key, window)
		if err != nil {
			log.Warn("rate limit backend unavailable", zap.Error(err))
			c.Next()
			return
		}

		if count > limit {
			log.Warn("login rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.Int64("count", count))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many attempts, try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
