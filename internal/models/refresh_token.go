package models

import "time"

// RefreshToken 刷新令牌登记，ID 即 JWT 的 jti
type RefreshToken struct {
	ID         string     `gorm:"type:varchar(36);primarykey" json:"id"` // jti
	UserID     uint       `gorm:"index;not null" json:"user_id"`         // 所属用户
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expires_at"`      // 过期时间
	RevokedAt  *time.Time `gorm:"index" json:"revoked_at"`               // 吊销时间
	ReplacedBy string     `gorm:"type:varchar(36)" json:"replaced_by"`   // 轮换后的新 jti
	CreatedAt  time.Time  `json:"created_at"`                            // 签发时间
}

// TableName 指定表名
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
