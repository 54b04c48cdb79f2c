package service

import (
	"strings"
	"time"

	"github.com/otp-auth/internal/authz"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/models"
	"github.com/otp-auth/internal/repository"
)

// 角色审计动作
const (
	AuthzAuditActionAssign = "role_assign"
	AuthzAuditActionRemove = "role_remove"
)

// AuthzAuditRecordInput 角色审计记录输入
type AuthzAuditRecordInput struct {
	OperatorUserID *uint
	TargetUserID   uint
	Action         string
	Roles          []string
	RequestID      string
	Detail         models.JSON
}

// AuthzAuditService 角色审计服务
type AuthzAuditService struct {
	repo repository.AuthzAuditLogRepository
}

// NewAuthzAuditService 创建角色审计服务
func NewAuthzAuditService(repo repository.AuthzAuditLogRepository) *AuthzAuditService {
	return &AuthzAuditService{repo: repo}
}

// Record 记录角色审计日志
func (s *AuthzAuditService) Record(input AuthzAuditRecordInput) error {
	if s == nil || s.repo == nil {
		return nil
	}
	if input.TargetUserID == 0 || strings.TrimSpace(input.Action) == "" {
		return nil
	}
	return s.repo.Create(&models.AuthzAuditLog{
		OperatorUserID: input.OperatorUserID,
		TargetUserID:   input.TargetUserID,
		Action:         strings.TrimSpace(input.Action),
		Roles:          strings.Join(input.Roles, ","),
		RequestID:      strings.TrimSpace(input.RequestID),
		DetailJSON:     input.Detail,
		CreatedAt:      time.Now(),
	})
}

// RoleManager 角色授予与回收
type RoleManager interface {
	AssignUserRoles(userID uint, isStaff bool) error
	RemoveUser(userID uint) error
}

// AuditedRoleManager 在角色变更成功后写入审计日志，审计失败只记日志
type AuditedRoleManager struct {
	roles RoleManager
	audit *AuthzAuditService
}

// NewAuditedRoleManager 创建带审计的角色管理器
func NewAuditedRoleManager(roles RoleManager, audit *AuthzAuditService) *AuditedRoleManager {
	return &AuditedRoleManager{roles: roles, audit: audit}
}

// AssignUserRoles 授予角色
func (m *AuditedRoleManager) AssignUserRoles(userID uint, isStaff bool) error {
	if err := m.roles.AssignUserRoles(userID, isStaff); err != nil {
		return err
	}
	m.record(userID, AuthzAuditActionAssign, authz.RolesForUser(isStaff))
	return nil
}

// RemoveUser 回收用户全部角色
func (m *AuditedRoleManager) RemoveUser(userID uint) error {
	if err := m.roles.RemoveUser(userID); err != nil {
		return err
	}
	m.record(userID, AuthzAuditActionRemove, nil)
	return nil
}

func (m *AuditedRoleManager) record(userID uint, action string, roles []string) {
	if err := m.audit.Record(AuthzAuditRecordInput{TargetUserID: userID, Action: action, Roles: roles}); err != nil {
		logger.Warnw("authz_audit_record_failed", "user_id", userID, "action", action, "error", err)
	}
}
