package service

import (
	"strings"
	"time"

	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/metrics"
	"github.com/otp-auth/internal/models"
	"github.com/otp-auth/internal/repository"
)

// ThrottleSettings 失败尝试限制参数，构造后不可变
type ThrottleSettings struct {
	Limit  int
	Window time.Duration
}

// ThrottleSettingsFromConfig 从配置解析限制参数
func ThrottleSettingsFromConfig(cfg config.ThrottleConfig) ThrottleSettings {
	settings := ThrottleSettings{
		Limit:  cfg.FailedAttemptsLimit,
		Window: time.Duration(cfg.WindowHours) * time.Hour,
	}
	if settings.Limit <= 0 {
		settings.Limit = 3
	}
	if settings.Window <= 0 {
		settings.Window = time.Hour
	}
	return settings
}

// ThrottleGuard 基于失败记录计算 IP 与手机号两个维度是否超限
type ThrottleGuard struct {
	settings ThrottleSettings
	repo     repository.FailedAttemptRepository
	now      func() time.Time
}

// NewThrottleGuard 创建限制守卫
func NewThrottleGuard(settings ThrottleSettings, repo repository.FailedAttemptRepository) *ThrottleGuard {
	return &ThrottleGuard{settings: settings, repo: repo, now: time.Now}
}

// Settings 返回当前参数
func (g *ThrottleGuard) Settings() ThrottleSettings {
	return g.settings
}

// CheckAllowed 窗口内失败次数严格大于上限时拒绝；phone 为空时仅检查 IP
func (g *ThrottleGuard) CheckAllowed(ip, phone, category string) (bool, error) {
	since := g.now().Add(-g.settings.Window)
	limit := int64(g.settings.Limit)

	if phone = strings.TrimSpace(phone); phone != "" {
		count, err := g.repo.CountByPhoneSince(phone, category, since)
		if err != nil {
			return false, err
		}
		if count > limit {
			return false, nil
		}
	}

	count, err := g.repo.CountByIPSince(strings.TrimSpace(ip), category, since)
	if err != nil {
		return false, err
	}
	return count <= limit, nil
}

// Check 超限时返回 *RateLimitedError
func (g *ThrottleGuard) Check(ip, phone, category string) error {
	allowed, err := g.CheckAllowed(ip, phone, category)
	if err != nil {
		return err
	}
	if !allowed {
		metrics.ThrottleDenied.WithLabelValues(category).Inc()
		logger.Warnw("throttle_denied", "category", category, "ip", ip, "phone", logger.MaskPhone(phone))
		return &RateLimitedError{Category: category, RetryAfter: g.settings.Window}
	}
	return nil
}

// RecordFailure 追加一条失败记录，phone 为空表示未知用户
func (g *ThrottleGuard) RecordFailure(ip, phone, category string) error {
	attempt := &models.FailedAttempt{
		IPAddress:   strings.TrimSpace(ip),
		AttemptType: category,
		CreatedAt:   g.now(),
	}
	if phone = strings.TrimSpace(phone); phone != "" {
		attempt.Phone = &phone
	}
	return g.repo.Create(attempt)
}
