package auth

import (
	"errors"
	"time"

	jwtpkg "sandeshaa/backend/internal/auth/jwt"
	"sandeshaa/backend/internal/domain"
	"sandeshaa/backend/internal/storage"
)

// ErrInvalidCredential 连接凭证无效（缺失、过期、被吊销或指向未知用户）
var ErrInvalidCredential = errors.New("invalid credential")

// TokenBlacklist 令牌黑名单（Redis 实现；未配置时为 nil）
type TokenBlacklist interface {
	IsBlacklisted(jti string) (bool, error)
	AddToBlacklist(jti string, ttl time.Duration) error
}

// Gate 连接准入的凭证门
//
// 投递引擎把入站连接携带的 bearer 令牌交给它，换取一个稳定身份；
// 任何校验失败统一归结为 ErrInvalidCredential，由连接层拒绝准入。
type Gate struct {
	jwtManager *jwtpkg.Manager
	users      storage.UserRepository
	blacklist  TokenBlacklist // 可为 nil
}

// NewGate 创建凭证门
func NewGate(jwtManager *jwtpkg.Manager, users storage.UserRepository, blacklist TokenBlacklist) *Gate {
	return &Gate{
		jwtManager: jwtManager,
		users:      users,
		blacklist:  blacklist,
	}
}

// Verify 校验令牌并解析出用户身份
func (g *Gate) Verify(token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrInvalidCredential
	}

	claims, err := g.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	if g.blacklist != nil {
		revoked, err := g.blacklist.IsBlacklisted(claims.ID)
		// 黑名单查询失败时放行：可用性优先于已注销令牌的残余窗口
		if err == nil && revoked {
			return nil, ErrInvalidCredential
		}
	}

	user, err := g.users.GetUserByID(claims.UserID)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if !user.IsActive {
		return nil, ErrInvalidCredential
	}

	return user, nil
}

// Revoke 将令牌加入黑名单（注销）；未配置黑名单时为空操作
func (g *Gate) Revoke(token string) error {
	if g.blacklist == nil {
		return nil
	}

	claims, err := g.jwtManager.ValidateToken(token)
	if err != nil {
		return ErrInvalidCredential
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return g.blacklist.AddToBlacklist(claims.ID, ttl)
}
