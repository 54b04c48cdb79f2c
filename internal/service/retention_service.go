package service

import (
	"context"
	"time"

	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/repository"

	"golang.org/x/sync/errgroup"
)

// RetentionSettings 过期数据清理参数
type RetentionSettings struct {
	AttemptRetention time.Duration
	PruneInterval    time.Duration
}

// RetentionSettingsFromConfig 从配置解析清理参数，失败记录保留期不短于限制窗口
func RetentionSettingsFromConfig(cfg config.ThrottleConfig) RetentionSettings {
	settings := RetentionSettings{
		AttemptRetention: time.Duration(cfg.RetentionHours) * time.Hour,
		PruneInterval:    time.Duration(cfg.PruneIntervalMinutes) * time.Minute,
	}
	window := ThrottleSettingsFromConfig(cfg).Window
	if settings.AttemptRetention < window {
		settings.AttemptRetention = window
	}
	if settings.PruneInterval <= 0 {
		settings.PruneInterval = time.Hour
	}
	return settings
}

// PruneResult 一次清理的删除数量
type PruneResult struct {
	FailedAttempts int64 `json:"failed_attempts"`
	OTPCodes       int64 `json:"otp_codes"`
	RefreshTokens  int64 `json:"refresh_tokens"`
}

// RetentionService 清理失败记录、失效验证码与过期刷新令牌
type RetentionService struct {
	settings RetentionSettings
	attempts repository.FailedAttemptRepository
	codes    repository.OTPCodeRepository
	tokens   repository.RefreshTokenRepository
	now      func() time.Time
}

// NewRetentionService 创建清理服务
func NewRetentionService(settings RetentionSettings, attempts repository.FailedAttemptRepository, codes repository.OTPCodeRepository, tokens repository.RefreshTokenRepository) *RetentionService {
	return &RetentionService{settings: settings, attempts: attempts, codes: codes, tokens: tokens, now: time.Now}
}

// Settings 返回当前参数
func (s *RetentionService) Settings() RetentionSettings {
	return s.settings
}

// Prune 并行执行三类清理
func (s *RetentionService) Prune(ctx context.Context) (PruneResult, error) {
	now := s.now()
	var result PruneResult
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.attempts.DeleteBefore(now.Add(-s.settings.AttemptRetention))
		result.FailedAttempts = n
		return err
	})
	g.Go(func() error {
		n, err := s.codes.DeleteStale(now)
		result.OTPCodes = n
		return err
	})
	g.Go(func() error {
		n, err := s.tokens.DeleteExpired(now)
		result.RefreshTokens = n
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Errorw("retention_prune_failed", "error", err)
		return result, err
	}
	logger.Infow("retention_prune_done",
		"failed_attempts", result.FailedAttempts,
		"otp_codes", result.OTPCodes,
		"refresh_tokens", result.RefreshTokens,
	)
	return result, nil
}
