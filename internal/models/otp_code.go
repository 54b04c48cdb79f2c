package models

import "time"

// OTPCode 短信验证码记录，每个手机号至多一条有效记录
type OTPCode struct {
	ID        uint       `gorm:"primarykey" json:"id"`                           // 主键
	Phone     string     `gorm:"type:varchar(11);index;not null" json:"phone"`   // 手机号
	Code      string     `gorm:"type:varchar(12);not null" json:"-"`             // 验证码（不返回给前端）
	Purpose   string     `gorm:"type:varchar(20);index;not null" json:"purpose"` // 用途（register/login）
	ExpiresAt time.Time  `gorm:"index;not null" json:"expires_at"`               // 过期时间
	IsUsed    bool       `gorm:"not null;default:false" json:"is_used"`          // 是否已使用
	UsedAt    *time.Time `json:"used_at"`                                        // 使用时间
	CreatedAt time.Time  `gorm:"index" json:"created_at"`                        // 签发时间
}

// TableName 指定表名
func (OTPCode) TableName() string {
	return "otp_codes"
}

// IsActive 在给定时刻是否仍可使用
func (c *OTPCode) IsActive(now time.Time) bool {
	return c != nil && !c.IsUsed && c.ExpiresAt.After(now)
}
