package domain

import "time"

// Envelope 表示一条持久化的加密消息
//
// Payload 是客户端加密后的密文，服务端原样透传。
// Seq 由存储层在写入时分配，是单个存储实例内严格递增的顺序号，
// 同一收件人的回放顺序以 Seq 为准，不信任客户端时间戳。
// Delivered 只允许 false -> true 单向翻转。
type Envelope struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Seq        int64     `json:"-" gorm:"autoIncrement;uniqueIndex"`
	FromUserID string    `json:"fromUserId" gorm:"type:varchar(36);index;not null"`
	ToUserID   string    `json:"toUserId" gorm:"type:varchar(36);index:idx_envelopes_backlog;not null"`
	Payload    string    `json:"payload" gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"index"`
	Delivered  bool      `json:"delivered" gorm:"default:false;index:idx_envelopes_backlog"`
}

// FileEnvelope 表示一次加密文件投递
//
// 与 Envelope 结构同源，但负载是对独立存储 Blob 的引用，
// 投递/保留语义一致：收件人下载即视为投递完成，过期由保留清理删除。
type FileEnvelope struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FromUserID  string    `json:"fromUserId" gorm:"type:varchar(36);index;not null"`
	ToUserID    string    `json:"toUserId" gorm:"type:varchar(36);index;not null"`
	Filename    string    `json:"filename" gorm:"type:varchar(255);not null"`
	StoredName  string    `json:"-" gorm:"type:varchar(255);not null"` // Blob 存储内部名，不暴露
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType" gorm:"type:varchar(100)"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index"`
	Delivered   bool      `json:"delivered" gorm:"default:false"`
}

// Conversation 会话摘要：与某个对端的最近一条消息时间和消息总数
type Conversation struct {
	PeerUsername  string    `json:"peerUsername"`
	PeerUserID    string    `json:"peerUserId"`
	MessageCount  int64     `json:"messageCount"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}
