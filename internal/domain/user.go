package domain

import "time"

// User 表示注册用户的业务实体
//
// 服务端只保存密码哈希和客户端上传的两把公钥，
// 私钥从不离开客户端，消息密文对服务端完全不透明。
type User struct {
	ID                string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username          string     `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	PasswordHash      string     `json:"-" gorm:"type:varchar(255);not null"` // 不返回给前端
	IdentityPublicKey string     `json:"identityPublicKey,omitempty" gorm:"type:text"`
	PrekeyPublic      string     `json:"prekeyPublic,omitempty" gorm:"type:text"`
	IsActive          bool       `json:"isActive" gorm:"default:true"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
}

// PublicKeys 用户公钥集合，任何人可查询（公钥本身是公开信息）
type PublicKeys struct {
	Username          string `json:"username"`
	IdentityPublicKey string `json:"identityPublicKey"`
	PrekeyPublic      string `json:"prekeyPublic"`
}

// Keys 返回用户的公钥集合
func (u *User) Keys() PublicKeys {
	return PublicKeys{
		Username:          u.Username,
		IdentityPublicKey: u.IdentityPublicKey,
		PrekeyPublic:      u.PrekeyPublic,
	}
}
