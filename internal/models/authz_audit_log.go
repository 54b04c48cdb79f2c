package models

import "time"

// AuthzAuditLog 角色变更审计日志
// 说明：记录角色授予与回收，操作人为空表示系统行为（注册、注销、初始化）。
type AuthzAuditLog struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	OperatorUserID *uint     `gorm:"index" json:"operator_user_id,omitempty"`
	TargetUserID   uint      `gorm:"index;not null" json:"target_user_id"`
	Action         string    `gorm:"type:varchar(32);index;not null" json:"action"`
	Roles          string    `gorm:"type:varchar(255);not null;default:''" json:"roles"`
	RequestID      string    `gorm:"type:varchar(64);index;not null;default:''" json:"request_id"`
	DetailJSON     JSON      `gorm:"type:json" json:"detail"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (AuthzAuditLog) TableName() string {
	return "authz_audit_logs"
}
