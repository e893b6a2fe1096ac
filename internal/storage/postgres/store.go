package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sandeshaa/backend/internal/domain"
	"sandeshaa/backend/internal/storage"
)

// Store SQL 数据库存储实现（支持 PostgreSQL 和 MySQL）
//
// delivered 标志的翻转走单条 UPDATE，由数据库对行写入序列化；
// 信封顺序由 seq 自增列给出，是服务端权威顺序源。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn), maxOpenConns, maxIdleConns, connMaxLifetime)
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn), maxOpenConns, maxIdleConns, connMaxLifetime)
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*Store, error) {
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true, // 把方言错误翻译为 gorm.ErrDuplicatedKey 等
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	store := &Store{db: db}

	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Migrate 自动迁移数据库表结构
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Envelope{},
		&domain.FileEnvelope{},
	)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// ========== UserRepository ==========

// CreateUser 创建用户
func (s *Store) CreateUser(user *domain.User) error {
	err := s.db.Create(user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return storage.ErrUsernameExists
		}
		return err
	}
	return nil
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	return s.db.Save(user).Error
}

// UpdateLastLogin 更新最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	now := time.Now().UTC()
	return s.db.Model(&domain.User{}).
		Where("id = ?", userID).
		Update("last_login_at", now).Error
}

// ========== EnvelopeRepository ==========

// AppendEnvelope 追加一条消息信封
//
// ID 和 CreatedAt 由存储层分配，Seq 由数据库自增列分配。
// 返回即表示已落盘，之后才允许通知收件人。
func (s *Store) AppendEnvelope(envelope *domain.Envelope) error {
	if envelope.ID == "" {
		envelope.ID = uuid.New().String()
	}
	envelope.CreatedAt = time.Now().UTC()
	envelope.Delivered = false
	return s.db.Create(envelope).Error
}

// MarkEnvelopeDelivered 将信封标记为已投递（单条 UPDATE，行级序列化）
func (s *Store) MarkEnvelopeDelivered(id string) error {
	result := s.db.Model(&domain.Envelope{}).
		Where("id = ?", id).
		Update("delivered", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrEnvelopeNotFound
	}
	return nil
}

// ListUndeliveredEnvelopes 返回某收件人的全部未投递信封，按 Seq 升序
func (s *Store) ListUndeliveredEnvelopes(toUserID string) ([]domain.Envelope, error) {
	var envelopes []domain.Envelope
	err := s.db.Where("to_user_id = ? AND delivered = ?", toUserID, false).
		Order("seq ASC").
		Find(&envelopes).Error
	return envelopes, err
}

// ListConversationEnvelopes 返回两个用户之间的信封，按 Seq 升序
func (s *Store) ListConversationEnvelopes(userA, userB string, limit int) ([]domain.Envelope, error) {
	query := s.db.Where(
		"(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)",
		userA, userB, userB, userA,
	)

	var envelopes []domain.Envelope
	if limit > 0 {
		// 取最近 limit 条后翻转回升序
		err := query.Order("seq DESC").Limit(limit).Find(&envelopes).Error
		if err != nil {
			return nil, err
		}
		for i, j := 0, len(envelopes)-1; i < j; i, j = i+1, j-1 {
			envelopes[i], envelopes[j] = envelopes[j], envelopes[i]
		}
		return envelopes, nil
	}

	err := query.Order("seq ASC").Find(&envelopes).Error
	return envelopes, err
}

// ListConversations 返回某用户参与的所有会话摘要，按最近活动降序
func (s *Store) ListConversations(userID string) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := s.db.Raw(`
		SELECT c.peer_user_id,
		       COALESCE(u.username, '') AS peer_username,
		       c.message_count,
		       c.last_message_at
		FROM (
			SELECT CASE WHEN from_user_id = ? THEN to_user_id ELSE from_user_id END AS peer_user_id,
			       COUNT(*) AS message_count,
			       MAX(created_at) AS last_message_at
			FROM envelopes
			WHERE from_user_id = ? OR to_user_id = ?
			GROUP BY CASE WHEN from_user_id = ? THEN to_user_id ELSE from_user_id END
		) c
		LEFT JOIN users u ON u.id = c.peer_user_id
		ORDER BY c.last_message_at DESC`,
		userID, userID, userID, userID,
	).Scan(&conversations).Error
	return conversations, err
}

// ClearConversation 删除两个用户之间的全部信封，返回删除数量。幂等。
func (s *Store) ClearConversation(userA, userB string) (int64, error) {
	result := s.db.Where(
		"(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)",
		userA, userB, userB, userA,
	).Delete(&domain.Envelope{})
	return result.RowsAffected, result.Error
}

// PurgeEnvelopesOlderThan 删除创建时间早于 cutoff 的信封，返回删除数量
func (s *Store) PurgeEnvelopesOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&domain.Envelope{})
	return result.RowsAffected, result.Error
}

// ========== FileEnvelopeRepository ==========

// CreateFileEnvelope 创建文件信封
func (s *Store) CreateFileEnvelope(envelope *domain.FileEnvelope) error {
	if envelope.ID == "" {
		envelope.ID = uuid.New().String()
	}
	if envelope.CreatedAt.IsZero() {
		envelope.CreatedAt = time.Now().UTC()
	}
	return s.db.Create(envelope).Error
}

// GetFileEnvelope 根据 ID 获取文件信封
func (s *Store) GetFileEnvelope(id string) (*domain.FileEnvelope, error) {
	var envelope domain.FileEnvelope
	err := s.db.Where("id = ?", id).First(&envelope).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrFileEnvelopeNotFound
		}
		return nil, err
	}
	return &envelope, nil
}

// MarkFileEnvelopeDelivered 将文件信封标记为已投递
func (s *Store) MarkFileEnvelopeDelivered(id string) error {
	result := s.db.Model(&domain.FileEnvelope{}).
		Where("id = ?", id).
		Update("delivered", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrFileEnvelopeNotFound
	}
	return nil
}

// ListFileEnvelopesOlderThan 返回创建时间早于 cutoff 的文件信封
func (s *Store) ListFileEnvelopesOlderThan(cutoff time.Time) ([]domain.FileEnvelope, error) {
	var envelopes []domain.FileEnvelope
	err := s.db.Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&envelopes).Error
	return envelopes, err
}

// DeleteFileEnvelope 删除文件信封记录。幂等。
func (s *Store) DeleteFileEnvelope(id string) error {
	return s.db.Where("id = ?", id).Delete(&domain.FileEnvelope{}).Error
}
