package authz

import (
	"fmt"

	"github.com/otp-auth/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 预置角色矩阵：user 管理自己的账户，staff 额外可查看任意用户
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.RoleUser,
			Policies: []Policy{
				{Object: "/users/me", Action: "GET"},
				{Object: "/users/me", Action: "DELETE"},
				{Object: "/users/me/change-password", Action: "PUT"},
				{Object: "/users/me/login-logs", Action: "GET"},
			},
		},
		{
			Role:     constants.RoleStaff,
			Inherits: []string{constants.RoleUser},
			Policies: []Policy{
				{Object: "/users/:id", Action: "GET"},
			},
		},
	}
}

// BootstrapBuiltinRoles 写入预置角色继承关系与策略，已存在的规则会被跳过
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddGroupingPolicy(role, parentRole); err != nil {
				return fmt.Errorf("link role %s to %s failed: %w", role, parentRole, err)
			}
		}
		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required for role %s", role)
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add policy %s %s failed: %w", action, policy.Object, err)
			}
		}
	}
	return nil
}

// RolesForUser 根据用户属性推导应授予的角色
func RolesForUser(isStaff bool) []string {
	if isStaff {
		return []string{constants.RoleUser, constants.RoleStaff}
	}
	return []string{constants.RoleUser}
}
