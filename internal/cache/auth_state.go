package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/otp-auth/internal/models"
)

const authStateCacheTTL = 10 * time.Minute

// UserAuthState 令牌校验所需的用户快照，TokenInvalidBefore 为 Unix 秒，0 表示未设置
type UserAuthState struct {
	UserID             uint   `json:"user_id"`
	IsActive           bool   `json:"is_active"`
	IsStaff            bool   `json:"is_staff"`
	TokenVersion       uint64 `json:"token_version"`
	TokenInvalidBefore int64  `json:"token_invalid_before"`
}

// UserLoader 缓存未命中时加载用户
type UserLoader func(userID uint) (*models.User, error)

// AcceptsToken 判断以 version 签发于 issuedAt 的令牌是否仍然有效
func (s *UserAuthState) AcceptsToken(version uint64, issuedAt time.Time) bool {
	if s == nil || version != s.TokenVersion {
		return false
	}
	if s.TokenInvalidBefore <= 0 {
		return true
	}
	return !issuedAt.IsZero() && issuedAt.Unix() >= s.TokenInvalidBefore
}

func userAuthStateKey(userID uint) string {
	return fmt.Sprintf("auth:user:%d", userID)
}

// BuildUserAuthState 从用户模型构建鉴权快照
func BuildUserAuthState(user *models.User) *UserAuthState {
	if user == nil {
		return nil
	}
	state := &UserAuthState{
		UserID:       user.ID,
		IsActive:     user.IsActive,
		IsStaff:      user.IsStaff,
		TokenVersion: user.TokenVersion,
	}
	if user.TokenInvalidBefore != nil {
		state.TokenInvalidBefore = user.TokenInvalidBefore.Unix()
	}
	return state
}

// ResolveUserAuthState 先读缓存，未命中或 Redis 异常时回源并回写；用户不存在时返回 nil
func ResolveUserAuthState(ctx context.Context, userID uint, load UserLoader) (*UserAuthState, error) {
	if cached, hit, err := GetUserAuthState(ctx, userID); err == nil && hit {
		return cached, nil
	}
	if load == nil {
		return nil, nil
	}
	user, err := load(userID)
	if err != nil || user == nil {
		return nil, err
	}
	state := BuildUserAuthState(user)
	_ = SetUserAuthState(ctx, state)
	return state, nil
}

// GetUserAuthState 获取用户鉴权快照
func GetUserAuthState(ctx context.Context, userID uint) (*UserAuthState, bool, error) {
	if userID == 0 {
		return nil, false, nil
	}
	var state UserAuthState
	hit, err := GetJSON(ctx, userAuthStateKey(userID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetUserAuthState 写入用户鉴权快照
func SetUserAuthState(ctx context.Context, state *UserAuthState) error {
	if state == nil || state.UserID == 0 {
		return nil
	}
	return SetJSON(ctx, userAuthStateKey(state.UserID), state, authStateCacheTTL)
}

// DelUserAuthState 删除用户鉴权快照
func DelUserAuthState(ctx context.Context, userID uint) error {
	if userID == 0 {
		return nil
	}
	return Del(ctx, userAuthStateKey(userID))
}
