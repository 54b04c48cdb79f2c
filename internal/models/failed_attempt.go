package models

import "time"

// FailedAttempt 失败尝试记录，按 IP 与手机号两个维度计数
type FailedAttempt struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                // 主键
	IPAddress   string    `gorm:"type:varchar(64);index;not null" json:"ip_address"`   // 客户端IP
	Phone       *string   `gorm:"type:varchar(11);index" json:"phone"`                 // 手机号（未知用户时为空）
	AttemptType string    `gorm:"type:varchar(20);index;not null" json:"attempt_type"` // 类别（LOGIN/OTP）
	CreatedAt   time.Time `gorm:"index;not null" json:"created_at"`                    // 发生时间
}

// TableName 指定表名
func (FailedAttempt) TableName() string {
	return "failed_attempts"
}
