package service

import (
	"context"
	"time"

	"github.com/otp-auth/internal/cache"
	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/models"
	"github.com/otp-auth/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// RoleRemover 删除用户时清理授权策略
type RoleRemover interface {
	RemoveUser(userID uint) error
}

// UserService 登录用户自助操作：查看、改密、注销
type UserService struct {
	policy    config.PasswordPolicyConfig
	userRepo  repository.UserRepository
	loginLogs repository.UserLoginLogRepository
	tokens    TokenIssuer
	roles     RoleRemover
}

// NewUserService 创建用户服务
func NewUserService(policy config.PasswordPolicyConfig, userRepo repository.UserRepository, loginLogs repository.UserLoginLogRepository, tokens TokenIssuer, roles RoleRemover) *UserService {
	return &UserService{policy: policy, userRepo: userRepo, loginLogs: loginLogs, tokens: tokens, roles: roles}
}

// GetByID 获取用户
func (s *UserService) GetByID(id uint) (*models.User, error) {
	if id == 0 {
		return nil, ErrNotFound
	}
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// ChangePassword 登录态修改密码，成功后已签发令牌全部失效
func (s *UserService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	user, err := s.GetByID(userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidPassword
	}
	if err := validatePassword(s.policy, newPassword, user.Phone); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now()
	user.PasswordHash = string(hashed)
	user.UpdatedAt = now
	user.TokenVersion++
	user.TokenInvalidBefore = &now
	if err := s.userRepo.Update(user); err != nil {
		return err
	}
	if err := s.tokens.RevokeUser(user.ID); err != nil {
		logger.Warnw("refresh_token_revoke_failed", "user_id", user.ID, "error", err)
	}
	_ = cache.SetUserAuthState(ctx, cache.BuildUserAuthState(user))
	logger.Infow("user_password_changed", "user_id", user.ID)
	return nil
}

// DeleteAccount 注销账号，清理令牌、授权与登录日志
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	user, err := s.GetByID(userID)
	if err != nil {
		return err
	}
	if err := s.tokens.RevokeUser(user.ID); err != nil {
		return err
	}
	if s.loginLogs != nil {
		if err := s.loginLogs.DeleteByUser(user.ID); err != nil {
			return err
		}
	}
	if err := s.userRepo.Delete(user.ID); err != nil {
		return err
	}
	if s.roles != nil {
		if err := s.roles.RemoveUser(user.ID); err != nil {
			logger.Warnw("user_role_remove_failed", "user_id", user.ID, "error", err)
		}
	}
	_ = cache.DelUserAuthState(ctx, user.ID)
	logger.Infow("user_deleted", "user_id", user.ID, "phone", logger.MaskPhone(user.Phone))
	return nil
}
