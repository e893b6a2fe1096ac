package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwtpkg "sandeshaa/backend/internal/auth/jwt"
	"sandeshaa/backend/internal/domain"
	"sandeshaa/backend/internal/storage/memory"
)

func newTestService() (*Service, *memory.Store) {
	store := memory.NewStore()
	return NewService(store), store
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Username:          "alice",
		Password:          "password123",
		IdentityPublicKey: "identity-pub",
		PrekeyPublic:      "prekey-pub",
	}
}

func TestService_Register(t *testing.T) {
	service, _ := newTestService()

	t.Run("正常注册", func(t *testing.T) {
		user, err := service.Register(validRegisterInput())
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "alice", user.Username)
		assert.True(t, user.IsActive)
		assert.NotEqual(t, "password123", user.PasswordHash)
	})

	t.Run("用户名重复", func(t *testing.T) {
		_, err := service.Register(validRegisterInput())
		assert.ErrorIs(t, err, ErrUsernameExists)
	})

	t.Run("用户名归一化后重复", func(t *testing.T) {
		input := validRegisterInput()
		input.Username = "  ALICE  "
		_, err := service.Register(input)
		assert.ErrorIs(t, err, ErrUsernameExists)
	})

	t.Run("用户名不合法", func(t *testing.T) {
		input := validRegisterInput()
		input.Username = "1bad"
		_, err := service.Register(input)
		assert.ErrorIs(t, err, domain.ErrInvalidUsername)
	})

	t.Run("密码太弱", func(t *testing.T) {
		input := validRegisterInput()
		input.Username = "bob"
		input.Password = "short1"
		_, err := service.Register(input)
		assert.Error(t, err)
	})
}

func TestService_Login(t *testing.T) {
	service, store := newTestService()
	_, err := service.Register(validRegisterInput())
	require.NoError(t, err)

	t.Run("正确口令", func(t *testing.T) {
		user, err := service.Login(LoginInput{Username: "Alice", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("错误口令", func(t *testing.T) {
		_, err := service.Login(LoginInput{Username: "alice", Password: "wrongpass1"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("未知用户与错误口令同错", func(t *testing.T) {
		_, err := service.Login(LoginInput{Username: "ghost", Password: "password123"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("禁用用户", func(t *testing.T) {
		user, err := store.GetUserByUsername("alice")
		require.NoError(t, err)
		user.IsActive = false
		require.NoError(t, store.UpdateUser(user))

		_, err = service.Login(LoginInput{Username: "alice", Password: "password123"})
		assert.ErrorIs(t, err, ErrUserInactive)
	})
}

func TestService_GetPublicKeys(t *testing.T) {
	service, _ := newTestService()
	_, err := service.Register(validRegisterInput())
	require.NoError(t, err)

	t.Run("返回公钥束", func(t *testing.T) {
		keys, err := service.GetPublicKeys("ALICE")
		require.NoError(t, err)
		assert.Equal(t, "identity-pub", keys.IdentityPublicKey)
		assert.Equal(t, "prekey-pub", keys.PrekeyPublic)
	})

	t.Run("未知用户", func(t *testing.T) {
		_, err := service.GetPublicKeys("ghost")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestPasswordHashing(t *testing.T) {
	t.Run("哈希校验往返", func(t *testing.T) {
		hash, err := HashPassword("password123")
		require.NoError(t, err)
		assert.True(t, VerifyPassword("password123", hash))
		assert.False(t, VerifyPassword("password124", hash))
	})

	t.Run("超过72字节截断后仍一致", func(t *testing.T) {
		long := strings.Repeat("a", 80) + "1"
		hash, err := HashPassword(long)
		require.NoError(t, err)

		// bcrypt 只看前 72 字节：同前缀的超长口令视为同一口令
		assert.True(t, VerifyPassword(long, hash))
		assert.True(t, VerifyPassword(strings.Repeat("a", 72), hash))
	})
}

func TestGate_Verify(t *testing.T) {
	store := memory.NewStore()
	manager := jwtpkg.NewManager("test-secret-key-at-least-32-bytes!!", "sandeshaa", 15*time.Minute, 24*time.Hour)
	gate := NewGate(manager, store, nil)

	require.NoError(t, store.CreateUser(&domain.User{ID: "u1", Username: "alice", IsActive: true}))
	pair, err := manager.GenerateTokenPair("u1", "alice")
	require.NoError(t, err)

	t.Run("有效令牌换取身份", func(t *testing.T) {
		user, err := gate.Verify(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
	})

	t.Run("空令牌", func(t *testing.T) {
		_, err := gate.Verify("")
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("令牌指向未知用户", func(t *testing.T) {
		orphan, err := manager.GenerateTokenPair("ghost", "ghost")
		require.NoError(t, err)
		_, err = gate.Verify(orphan.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("禁用用户被拒", func(t *testing.T) {
		require.NoError(t, store.CreateUser(&domain.User{ID: "u2", Username: "bob", IsActive: false}))
		disabled, err := manager.GenerateTokenPair("u2", "bob")
		require.NoError(t, err)
		_, err = gate.Verify(disabled.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}
