package models

import "time"

// User 用户表，手机号为登录标识
type User struct {
	ID                 uint       `gorm:"primarykey" json:"id"`                              // 主键
	Phone              string     `gorm:"type:varchar(11);uniqueIndex;not null" json:"phone"` // 手机号
	PasswordHash       string     `gorm:"not null" json:"-"`                                 // 密码哈希（不返回给前端）
	FirstName          string     `gorm:"type:varchar(150);default:''" json:"first_name"`    // 名
	LastName           string     `gorm:"type:varchar(150);default:''" json:"last_name"`     // 姓
	Email              string     `gorm:"type:varchar(254);default:''" json:"email"`         // 邮箱（可选）
	IsVerified         bool       `gorm:"not null;default:false" json:"is_verified"`         // 手机号是否已验证
	IsActive           bool       `gorm:"not null;default:true" json:"is_active"`            // 账号是否可用
	IsStaff            bool       `gorm:"not null;default:false" json:"is_staff"`            // 是否为工作人员
	TokenVersion       uint64     `gorm:"not null;default:0" json:"-"`                       // Token 版本（用于全量失效）
	TokenInvalidBefore *time.Time `gorm:"index" json:"-"`                                    // 该时间点前签发的 Token 失效
	LastLoginAt        *time.Time `json:"last_login_at"`                                     // 最后登录时间
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`                           // 创建时间
	UpdatedAt          time.Time  `json:"updated_at"`                                        // 更新时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
