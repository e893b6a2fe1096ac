package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache Redis 缓存实现
//
// 承担三类协作职责：登录限流计数、已注销令牌黑名单（按 jti）、
// 在线状态 TTL 缓存。全部是可选能力，未配置 Redis 时各调用方须自行降级。
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// ========== 令牌黑名单 ==========

// AddToBlacklist 将令牌 jti 加入黑名单，TTL 取令牌剩余有效期
func (c *Cache) AddToBlacklist(jti string, ttl time.Duration) error {
	key := fmt.Sprintf("blacklist:%s", jti)
	return c.client.Set(c.ctx, key, "1", ttl).Err()
}

// IsBlacklisted 检查令牌 jti 是否在黑名单中
func (c *Cache) IsBlacklisted(jti string) (bool, error) {
	key := fmt.Sprintf("blacklist:%s", jti)
	n, err := c.client.Exists(c.ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ========== 限流 ==========

// IncrementRateLimit 递增限流计数，首次递增时设置窗口 TTL
func (c *Cache) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	rateKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := c.client.Incr(c.ctx, rateKey).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.client.Expire(c.ctx, rateKey, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// GetRateLimit 获取当前限流计数
func (c *Cache) GetRateLimit(key string) (int64, error) {
	rateKey := fmt.Sprintf("ratelimit:%s", key)
	count, err := c.client.Get(c.ctx, rateKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

// ========== 在线状态 ==========

// SetPresence 记录用户在线状态，ttl 到期自动消失
func (c *Cache) SetPresence(userID string, ttl time.Duration) error {
	key := fmt.Sprintf("presence:%s", userID)
	return c.client.Set(c.ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Err()
}

// ClearPresence 清除用户在线状态
func (c *Cache) ClearPresence(userID string) error {
	key := fmt.Sprintf("presence:%s", userID)
	return c.client.Del(c.ctx, key).Err()
}

// IsOnline 查询用户是否在线
func (c *Cache) IsOnline(userID string) (bool, error) {
	key := fmt.Sprintf("presence:%s", userID)
	n, err := c.client.Exists(c.ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Health 检查 Redis 连接
func (c *Cache) Health() error {
	return c.client.Ping(c.ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}
