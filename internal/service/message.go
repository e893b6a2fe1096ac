package service

import (
	"sandeshaa/backend/internal/domain"
	"sandeshaa/backend/internal/storage"
)

// MessageService 封装消息历史查询逻辑。
//
// 实时投递走投递引擎，本服务只做已落盘信封的读取与会话维护。
type MessageService struct {
	store storage.Store
}

// NewMessageService 创建消息业务服务。
func NewMessageService(store storage.Store) *MessageService {
	return &MessageService{store: store}
}

// ListConversations 列出用户的会话摘要，按最近消息时间倒序。
func (s *MessageService) ListConversations(userID string) ([]domain.Conversation, error) {
	return s.store.ListConversations(userID)
}

// History 返回调用者与指定对端之间的消息历史，按顺序号升序。
//
// limit > 0 时只返回最近 limit 条（仍升序）。对端不存在时
// 返回 storage.ErrUserNotFound。
func (s *MessageService) History(userID, peerUsername string, limit int) ([]domain.Envelope, error) {
	peer, err := s.store.GetUserByUsername(domain.NormalizeUsername(peerUsername))
	if err != nil {
		return nil, err
	}
	return s.store.ListConversationEnvelopes(userID, peer.ID, limit)
}

// ClearConversation 删除调用者与指定对端之间的全部消息，返回删除数量。
//
// 幂等：会话本就为空时返回 0 而非错误。
func (s *MessageService) ClearConversation(userID, peerUsername string) (int64, error) {
	peer, err := s.store.GetUserByUsername(domain.NormalizeUsername(peerUsername))
	if err != nil {
		return 0, err
	}
	return s.store.ClearConversation(userID, peer.ID)
}
