package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-key-at-least-32-bytes!!"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SANDESHAA_JWT_SECRET", testJWTSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Database.Type)
	assert.Empty(t, cfg.Redis.Address)
	assert.Equal(t, "sandeshaa", cfg.JWT.Issuer)
	assert.Equal(t, 24*time.Hour, cfg.JWT.AccessExpiry)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention.MessageMaxAge)
	assert.Equal(t, 24*time.Hour, cfg.Retention.FileMaxAge)
	assert.Equal(t, time.Hour, cfg.Retention.MessageSweepInterval)
	assert.Equal(t, 30*time.Minute, cfg.Retention.FileSweepInterval)
	assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxSize)
	assert.Equal(t, 20, cfg.Delivery.SendRate)
	assert.Equal(t, 40, cfg.Delivery.SendBurst)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SANDESHAA_JWT_SECRET", testJWTSecret)
	t.Setenv("SANDESHAA_SERVER_PORT", "9090")
	t.Setenv("SANDESHAA_DATABASE_TYPE", "postgres")
	t.Setenv("SANDESHAA_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("SANDESHAA_RETENTION_MESSAGE_MAX_AGE", "72h")
	t.Setenv("SANDESHAA_RETENTION_FILE_MAX_AGE", "6h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 72*time.Hour, cfg.Retention.MessageMaxAge)
	assert.Equal(t, 6*time.Hour, cfg.Retention.FileMaxAge)
}

func TestLoad_JWTSecretChecks(t *testing.T) {
	t.Run("默认密钥被拒", func(t *testing.T) {
		t.Setenv("SANDESHAA_JWT_SECRET", "change-me-in-production")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("过短密钥被拒", func(t *testing.T) {
		t.Setenv("SANDESHAA_JWT_SECRET", "too-short")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoad_InvalidRetention(t *testing.T) {
	t.Setenv("SANDESHAA_JWT_SECRET", testJWTSecret)

	t.Run("非法消息窗口", func(t *testing.T) {
		t.Setenv("SANDESHAA_RETENTION_MESSAGE_MAX_AGE", "not-a-duration")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("负的文件窗口", func(t *testing.T) {
		t.Setenv("SANDESHAA_RETENTION_FILE_MAX_AGE", "-1h")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法清扫周期回退默认值", func(t *testing.T) {
		t.Setenv("SANDESHAA_RETENTION_MESSAGE_SWEEP_INTERVAL", "garbage")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, time.Hour, cfg.Retention.MessageSweepInterval)
	})
}
