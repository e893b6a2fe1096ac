package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{"合法用户名", "alice", nil},
		{"含数字和分隔符", "bob_42.test-x", nil},
		{"最短长度", "abc", nil},
		{"太短", "ab", ErrUsernameTooShort},
		{"太长", strings.Repeat("a", 33), ErrUsernameTooLong},
		{"数字开头", "1alice", ErrInvalidUsername},
		{"分隔符结尾", "alice_", ErrInvalidUsername},
		{"含空格", "ali ce", ErrInvalidUsername},
		{"含特殊字符", "alice@x", ErrInvalidUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "alice", NormalizeUsername("  Alice "))
	assert.Equal(t, "bob_42", NormalizeUsername("BOB_42"))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"合法密码", "secret123", nil},
		{"太短", "a1", ErrPasswordTooShort},
		{"太长", strings.Repeat("a1", 65), ErrPasswordTooLong},
		{"纯字母", "abcdefgh", ErrPasswordTooWeak},
		{"纯数字", "12345678", ErrPasswordTooWeak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
