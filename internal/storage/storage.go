package storage

import (
	"errors"
	"time"

	"sandeshaa/backend/internal/domain"
)

var (
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameExists 用户名已存在错误
	ErrUsernameExists = errors.New("username already exists")
	// ErrEnvelopeNotFound 消息信封未找到错误
	ErrEnvelopeNotFound = errors.New("envelope not found")
	// ErrFileEnvelopeNotFound 文件信封未找到错误
	ErrFileEnvelopeNotFound = errors.New("file envelope not found")
)

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
}

// EnvelopeRepository 定义消息信封数据存取操作。
//
// AppendEnvelope 负责分配 ID、Seq 和 CreatedAt（UTC），初始 Delivered=false；
// 调用方不得自带时间戳。MarkEnvelopeDelivered 是 delivered 标志唯一的写入口，
// 必须对单行序列化（SQL 层单条 UPDATE，内存层持锁），且落盘后才返回。
type EnvelopeRepository interface {
	AppendEnvelope(envelope *domain.Envelope) error
	MarkEnvelopeDelivered(id string) error
	ListUndeliveredEnvelopes(toUserID string) ([]domain.Envelope, error)
	ListConversationEnvelopes(userA, userB string, limit int) ([]domain.Envelope, error)
	ListConversations(userID string) ([]domain.Conversation, error)
	ClearConversation(userA, userB string) (int64, error)
	PurgeEnvelopesOlderThan(cutoff time.Time) (int64, error)
}

// FileEnvelopeRepository 定义文件信封数据存取操作。
type FileEnvelopeRepository interface {
	CreateFileEnvelope(envelope *domain.FileEnvelope) error
	GetFileEnvelope(id string) (*domain.FileEnvelope, error)
	MarkFileEnvelopeDelivered(id string) error
	ListFileEnvelopesOlderThan(cutoff time.Time) ([]domain.FileEnvelope, error)
	DeleteFileEnvelope(id string) error
}

// Store 聚合所有存储接口。
type Store interface {
	UserRepository
	EnvelopeRepository
	FileEnvelopeRepository

	Close() error
	Health() error
}
