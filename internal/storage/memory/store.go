package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sandeshaa/backend/internal/domain"
	"sandeshaa/backend/internal/storage"
)

// Store 使用内存保存用户与信封数据，主要用于开发验证和测试。
//
// envelopes 按 Seq 追加有序，Seq 由单一计数器在持锁状态下分配，
// 因此并发 Append 也能得到全局唯一且严格递增的顺序号。
type Store struct {
	mu         sync.RWMutex
	users      map[string]*domain.User // userID -> user
	byUsername map[string]string       // username -> userID

	envelopes    []*domain.Envelope          // 按 Seq 升序
	envelopeByID map[string]*domain.Envelope // envelopeID -> envelope
	nextSeq      int64
	lastCreated  time.Time

	fileEnvelopes map[string]*domain.FileEnvelope // fileEnvelopeID -> envelope
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		users:         make(map[string]*domain.User),
		byUsername:    make(map[string]string),
		envelopeByID:  make(map[string]*domain.Envelope),
		fileEnvelopes: make(map[string]*domain.FileEnvelope),
		nextSeq:       1,
	}
}

// ========== UserRepository ==========

// CreateUser 创建用户。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username]; exists {
		return storage.ErrUsernameExists
	}

	s.users[user.ID] = user
	s.byUsername[user.Username] = user.ID
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// GetUserByUsername 根据用户名获取用户。
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *s.users[id]
	return &copied, nil
}

// UpdateUser 更新用户信息。
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrUserNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = user
	return nil
}

// UpdateLastLogin 更新最后登录时间。
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	now := time.Now().UTC()
	user.LastLoginAt = &now
	return nil
}

// ========== EnvelopeRepository ==========

// AppendEnvelope 追加一条消息信封。
//
// ID、Seq、CreatedAt 均由存储层分配；CreatedAt 在顺序追加下单调不减，
// 时钟回拨时向前钳制，保证回放顺序可复现。
func (s *Store) AppendEnvelope(envelope *domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if envelope.ID == "" {
		envelope.ID = uuid.New().String()
	}
	envelope.Seq = s.nextSeq
	s.nextSeq++

	now := time.Now().UTC()
	if !now.After(s.lastCreated) {
		now = s.lastCreated.Add(time.Nanosecond)
	}
	s.lastCreated = now
	envelope.CreatedAt = now
	envelope.Delivered = false

	stored := *envelope
	s.envelopes = append(s.envelopes, &stored)
	s.envelopeByID[stored.ID] = &stored
	return nil
}

// MarkEnvelopeDelivered 将信封标记为已投递。
//
// 只允许 false -> true 翻转，重复调用是幂等的。
func (s *Store) MarkEnvelopeDelivered(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	envelope, ok := s.envelopeByID[id]
	if !ok {
		return storage.ErrEnvelopeNotFound
	}
	envelope.Delivered = true
	return nil
}

// ListUndeliveredEnvelopes 返回某收件人的全部未投递信封，按 Seq 升序。
func (s *Store) ListUndeliveredEnvelopes(toUserID string) ([]domain.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Envelope
	for _, envelope := range s.envelopes {
		if envelope.ToUserID == toUserID && !envelope.Delivered {
			result = append(result, *envelope)
		}
	}
	return result, nil
}

// ListConversationEnvelopes 返回两个用户之间的全部信封，按 Seq 升序。
//
// limit > 0 时只返回最近的 limit 条（仍为升序）。
func (s *Store) ListConversationEnvelopes(userA, userB string, limit int) ([]domain.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Envelope
	for _, envelope := range s.envelopes {
		if betweenPair(envelope, userA, userB) {
			result = append(result, *envelope)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

// ListConversations 返回某用户参与的所有会话摘要，按最近活动降序。
func (s *Store) ListConversations(userID string) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPeer := make(map[string]*domain.Conversation)
	for _, envelope := range s.envelopes {
		var peerID string
		switch userID {
		case envelope.FromUserID:
			peerID = envelope.ToUserID
		case envelope.ToUserID:
			peerID = envelope.FromUserID
		default:
			continue
		}

		conv, ok := byPeer[peerID]
		if !ok {
			conv = &domain.Conversation{PeerUserID: peerID}
			if peer, exists := s.users[peerID]; exists {
				conv.PeerUsername = peer.Username
			}
			byPeer[peerID] = conv
		}
		conv.MessageCount++
		if envelope.CreatedAt.After(conv.LastMessageAt) {
			conv.LastMessageAt = envelope.CreatedAt
		}
	}

	result := make([]domain.Conversation, 0, len(byPeer))
	for _, conv := range byPeer {
		result = append(result, *conv)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastMessageAt.After(result[j].LastMessageAt)
	})
	return result, nil
}

// ClearConversation 删除两个用户之间的全部信封，返回删除数量。幂等。
func (s *Store) ClearConversation(userA, userB string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	kept := s.envelopes[:0]
	for _, envelope := range s.envelopes {
		if betweenPair(envelope, userA, userB) {
			delete(s.envelopeByID, envelope.ID)
			deleted++
			continue
		}
		kept = append(kept, envelope)
	}
	s.envelopes = kept
	return deleted, nil
}

// PurgeEnvelopesOlderThan 删除创建时间早于 cutoff 的信封，返回删除数量。
func (s *Store) PurgeEnvelopesOlderThan(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	kept := s.envelopes[:0]
	for _, envelope := range s.envelopes {
		if envelope.CreatedAt.Before(cutoff) {
			delete(s.envelopeByID, envelope.ID)
			deleted++
			continue
		}
		kept = append(kept, envelope)
	}
	s.envelopes = kept
	return deleted, nil
}

// betweenPair 判断信封是否属于 userA 与 userB 之间的会话（双向）。
func betweenPair(envelope *domain.Envelope, userA, userB string) bool {
	return (envelope.FromUserID == userA && envelope.ToUserID == userB) ||
		(envelope.FromUserID == userB && envelope.ToUserID == userA)
}

// ========== FileEnvelopeRepository ==========

// CreateFileEnvelope 创建文件信封。
func (s *Store) CreateFileEnvelope(envelope *domain.FileEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if envelope.ID == "" {
		envelope.ID = uuid.New().String()
	}
	if envelope.CreatedAt.IsZero() {
		envelope.CreatedAt = time.Now().UTC()
	}
	stored := *envelope
	s.fileEnvelopes[stored.ID] = &stored
	return nil
}

// GetFileEnvelope 根据 ID 获取文件信封。
func (s *Store) GetFileEnvelope(id string) (*domain.FileEnvelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	envelope, ok := s.fileEnvelopes[id]
	if !ok {
		return nil, storage.ErrFileEnvelopeNotFound
	}
	copied := *envelope
	return &copied, nil
}

// MarkFileEnvelopeDelivered 将文件信封标记为已投递。
func (s *Store) MarkFileEnvelopeDelivered(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	envelope, ok := s.fileEnvelopes[id]
	if !ok {
		return storage.ErrFileEnvelopeNotFound
	}
	envelope.Delivered = true
	return nil
}

// ListFileEnvelopesOlderThan 返回创建时间早于 cutoff 的文件信封。
func (s *Store) ListFileEnvelopesOlderThan(cutoff time.Time) ([]domain.FileEnvelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.FileEnvelope
	for _, envelope := range s.fileEnvelopes {
		if envelope.CreatedAt.Before(cutoff) {
			result = append(result, *envelope)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteFileEnvelope 删除文件信封记录。幂等。
func (s *Store) DeleteFileEnvelope(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.fileEnvelopes, id)
	return nil
}

// Close 关闭存储（内存实现无资源可释放）。
func (s *Store) Close() error { return nil }

// Health 检查存储健康状态。
func (s *Store) Health() error { return nil }
