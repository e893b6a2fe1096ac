package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(accessExpiry time.Duration) *Manager {
	return NewManager("test-secret-key-at-least-32-bytes!!", "sandeshaa", accessExpiry, 24*time.Hour)
}

func TestManager_GenerateAndValidate(t *testing.T) {
	manager := newTestManager(15 * time.Minute)

	pair, err := manager.GenerateTokenPair("u1", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.EqualValues(t, 900, pair.ExpiresIn)

	t.Run("访问令牌声明完整", func(t *testing.T) {
		claims, err := manager.ValidateToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, "alice", claims.Username)
		assert.Equal(t, "sandeshaa", claims.Issuer)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("访问与刷新令牌 jti 各自独立", func(t *testing.T) {
		access, err := manager.ValidateToken(pair.AccessToken)
		require.NoError(t, err)
		refresh, err := manager.ValidateToken(pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, access.ID, refresh.ID)
	})
}

func TestManager_ValidateRejects(t *testing.T) {
	manager := newTestManager(15 * time.Minute)

	t.Run("过期令牌", func(t *testing.T) {
		expired := newTestManager(-time.Minute)
		pair, err := expired.GenerateTokenPair("u1", "alice")
		require.NoError(t, err)

		_, err = expired.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("错误密钥签发的令牌", func(t *testing.T) {
		other := NewManager("another-secret-key-32-bytes-long!!!", "sandeshaa", 15*time.Minute, 24*time.Hour)
		pair, err := other.GenerateTokenPair("u1", "alice")
		require.NoError(t, err)

		_, err = manager.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("乱码令牌", func(t *testing.T) {
		_, err := manager.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestManager_RefreshAccessToken(t *testing.T) {
	manager := newTestManager(15 * time.Minute)

	pair, err := manager.GenerateTokenPair("u1", "alice")
	require.NoError(t, err)

	t.Run("刷新得到可用的新访问令牌", func(t *testing.T) {
		accessToken, err := manager.RefreshAccessToken(pair.RefreshToken)
		require.NoError(t, err)

		claims, err := manager.ValidateToken(accessToken)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
	})

	t.Run("无效刷新令牌被拒", func(t *testing.T) {
		_, err := manager.RefreshAccessToken("garbage")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
