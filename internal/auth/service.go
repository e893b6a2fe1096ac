package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"sandeshaa/backend/internal/domain"
	"sandeshaa/backend/internal/storage"
)

var (
	// ErrUsernameExists 用户名已存在
	ErrUsernameExists = errors.New("username already exists")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive 用户已被禁用
	ErrUserInactive = errors.New("user is inactive")
)

// Service 认证服务
//
// 身份注册与口令校验属于外围胶水，消息核心只消费它产出的稳定身份。
type Service struct {
	userRepo storage.UserRepository
}

// NewService 创建认证服务
func NewService(userRepo storage.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// RegisterInput 注册输入
type RegisterInput struct {
	Username          string
	Password          string
	IdentityPublicKey string
	PrekeyPublic      string
}

// LoginInput 登录输入
type LoginInput struct {
	Username string
	Password string
}

// Register 用户注册
func (s *Service) Register(input RegisterInput) (*domain.User, error) {
	username := domain.NormalizeUsername(input.Username)

	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	if user, err := s.userRepo.GetUserByUsername(username); err == nil && user != nil {
		return nil, ErrUsernameExists
	}

	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:                uuid.New().String(),
		Username:          username,
		PasswordHash:      passwordHash,
		IdentityPublicKey: input.IdentityPublicKey,
		PrekeyPublic:      input.PrekeyPublic,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.userRepo.CreateUser(user); err != nil {
		if errors.Is(err, storage.ErrUsernameExists) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login 用户登录
func (s *Service) Login(input LoginInput) (*domain.User, error) {
	username := domain.NormalizeUsername(input.Username)

	user, err := s.userRepo.GetUserByUsername(username)
	if err != nil {
		// 不区分"用户不存在"和"密码错误"，避免枚举用户名
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	if !VerifyPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.userRepo.UpdateLastLogin(user.ID); err != nil {
		// 登录时间只是统计信息，更新失败不阻断登录
		return user, nil
	}

	return user, nil
}

// GetPublicKeys 查询用户公钥（公开信息，无需认证）
func (s *Service) GetPublicKeys(username string) (*domain.PublicKeys, error) {
	user, err := s.userRepo.GetUserByUsername(domain.NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	keys := user.Keys()
	return &keys, nil
}

// HashPassword 使用 bcrypt 哈希密码
//
// bcrypt 只取前 72 字节，超长部分截断后哈希，与校验端保持一致。
func HashPassword(password string) (string, error) {
	raw := []byte(password)
	if len(raw) > domain.MaxPasswordHashBytes {
		raw = raw[:domain.MaxPasswordHashBytes]
	}
	hash, err := bcrypt.GenerateFromPassword(raw, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 校验密码与哈希是否匹配
func VerifyPassword(password, hash string) bool {
	raw := []byte(password)
	if len(raw) > domain.MaxPasswordHashBytes {
		raw = raw[:domain.MaxPasswordHashBytes]
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), raw) == nil
}
