package delivery

import (
	"encoding/json"
	"time"

	"sandeshaa/backend/internal/domain"
)

// 连接上的消息类型
const (
	TypeSendMessage = "send_message" // 入站：发送一条消息
	TypeMessage     = "message"      // 出站：投递（实时推送或回放）
	TypeSent        = "sent"         // 出站：发送方回执
	TypeError       = "error"        // 出站：结构化错误
)

// inboundFrame 入站帧
type inboundFrame struct {
	Type    string `json:"type"`
	To      string `json:"to,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// messageFrame 投递帧：把一个信封推给收件人
type messageFrame struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	From      string `json:"from"`
	Payload   string `json:"payload"`
	CreatedAt string `json:"created_at"`
}

// sentFrame 回执帧：告知发送方信封 ID 和最终 delivered 状态
type sentFrame struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	To        string `json:"to"`
	Delivered bool   `json:"delivered"`
}

// errorFrame 错误帧
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// encodeMessage 把信封编码为投递帧
func encodeMessage(envelope *domain.Envelope, fromUsername string) ([]byte, error) {
	return json.Marshal(messageFrame{
		Type:      TypeMessage,
		ID:        envelope.ID,
		From:      fromUsername,
		Payload:   envelope.Payload,
		CreatedAt: envelope.CreatedAt.Format(time.RFC3339Nano),
	})
}

// encodeSent 编码发送方回执帧
func encodeSent(envelopeID, to string, delivered bool) ([]byte, error) {
	return json.Marshal(sentFrame{
		Type:      TypeSent,
		ID:        envelopeID,
		To:        to,
		Delivered: delivered,
	})
}

// encodeError 编码错误帧
func encodeError(message string) []byte {
	data, err := json.Marshal(errorFrame{Type: TypeError, Message: message})
	if err != nil {
		return []byte(`{"type":"error","message":"internal error"}`)
	}
	return data
}
