package httptransport

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sandeshaa/backend/internal/middleware"
	"sandeshaa/backend/internal/service"
	"sandeshaa/backend/internal/storage"
)

// MessageHandler 处理消息历史相关的 HTTP 请求
type MessageHandler struct {
	messages *service.MessageService
	log      *zap.Logger
}

// NewMessageHandler 创建消息处理器
func NewMessageHandler(messages *service.MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		log:      log,
	}
}

// ListConversations 列出当前用户的会话摘要
func (h *MessageHandler) ListConversations(c *gin.Context) {
	conversations, err := h.messages.ListConversations(middleware.UserID(c))
	if err != nil {
		h.log.Error("failed to list conversations", zap.Error(err))
		InternalError(c, MsgConversationListFailed)
		return
	}

	Success(c, gin.H{
		"items": conversations,
		"count": len(conversations),
	})
}

// History 返回当前用户与指定对端的消息历史
//
// ?limit= 限制返回条数（最近 N 条，仍按顺序升序）。
func (h *MessageHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			BadRequest(c, "invalid limit")
			return
		}
		limit = parsed
	}

	envelopes, err := h.messages.History(middleware.UserID(c), c.Param("username"), limit)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			NotFound(c, MsgUserNotFound)
			return
		}
		h.log.Error("failed to load history", zap.Error(err))
		InternalError(c, MsgHistoryFailed)
		return
	}

	Success(c, gin.H{
		"items": envelopes,
		"count": len(envelopes),
	})
}

// ClearConversation 删除当前用户与指定对端的全部消息
func (h *MessageHandler) ClearConversation(c *gin.Context) {
	deleted, err := h.messages.ClearConversation(middleware.UserID(c), c.Param("username"))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			NotFound(c, MsgUserNotFound)
			return
		}
		h.log.Error("failed to clear conversation", zap.Error(err))
		InternalError(c, MsgClearFailed)
		return
	}

	h.log.Info("conversation cleared",
		zap.String("user_id", middleware.UserID(c)),
		zap.String("peer", c.Param("username")),
		zap.Int64("deleted", deleted),
	)

	Success(c, gin.H{"deleted": deleted})
}
