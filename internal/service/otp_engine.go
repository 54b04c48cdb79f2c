package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/constants"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/metrics"
	"github.com/otp-auth/internal/models"
	"github.com/otp-auth/internal/repository"
)

// SmsGateway 短信投递能力
type SmsGateway interface {
	Send(ctx context.Context, phone, code, template string) error
}

// OTPSettings 验证码参数，构造后不可变
type OTPSettings struct {
	TTL             time.Duration
	Length          int
	DispatchTimeout time.Duration
	Templates       map[string]string
}

// OTPSettingsFromConfig 从配置解析验证码参数
func OTPSettingsFromConfig(otp config.OTPConfig, sms config.SMSConfig) OTPSettings {
	settings := OTPSettings{
		TTL:             time.Duration(otp.ExpireMinutes) * time.Minute,
		Length:          otp.Length,
		DispatchTimeout: time.Duration(otp.DispatchTimeoutSeconds) * time.Second,
		Templates: map[string]string{
			constants.OTPPurposeRegister: strings.TrimSpace(sms.Templates.Register),
			constants.OTPPurposeLogin:    strings.TrimSpace(sms.Templates.Login),
		},
	}
	if settings.TTL <= 0 {
		settings.TTL = 5 * time.Minute
	}
	if settings.Length < 4 || settings.Length > 10 {
		settings.Length = 6
	}
	if settings.DispatchTimeout <= 0 {
		settings.DispatchTimeout = 10 * time.Second
	}
	return settings
}

// OTPEngine 负责验证码签发、投递与一次性消费
type OTPEngine struct {
	settings OTPSettings
	repo     repository.OTPCodeRepository
	gateway  SmsGateway
	now      func() time.Time
}

// NewOTPEngine 创建验证码引擎
func NewOTPEngine(settings OTPSettings, repo repository.OTPCodeRepository, gateway SmsGateway) *OTPEngine {
	return &OTPEngine{settings: settings, repo: repo, gateway: gateway, now: time.Now}
}

// Settings 返回当前参数
func (e *OTPEngine) Settings() OTPSettings {
	return e.settings
}

// Issue 作废旧验证码、生成并持久化新验证码，再投递一次短信。
// 投递失败返回 ErrDeliveryFailure，已持久化的记录保留。
func (e *OTPEngine) Issue(ctx context.Context, phone, purpose string) (string, error) {
	code, err := randomNumericCode(e.settings.Length)
	if err != nil {
		return "", err
	}
	now := e.now()
	record := &models.OTPCode{
		Phone:     phone,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(e.settings.TTL),
		CreatedAt: now,
	}
	if err := e.repo.Replace(record); err != nil {
		return "", err
	}
	metrics.OTPIssued.WithLabelValues(purpose).Inc()

	sendCtx, cancel := context.WithTimeout(ctx, e.settings.DispatchTimeout)
	defer cancel()
	if err := e.gateway.Send(sendCtx, phone, code, e.templateFor(purpose)); err != nil {
		logger.Warnw("otp_dispatch_failed", "phone", logger.MaskPhone(phone), "purpose", purpose, "error", err)
		return "", fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}
	logger.Infow("otp_issued", "phone", logger.MaskPhone(phone), "purpose", purpose, "expires_at", record.ExpiresAt)
	return code, nil
}

// Verify 原子消费匹配的有效验证码；错误码、过期与已使用不作区分
func (e *OTPEngine) Verify(ctx context.Context, phone, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.repo.Consume(phone, code, e.now())
	if err != nil {
		return false, err
	}
	if ok {
		metrics.OTPVerify.WithLabelValues("success").Inc()
	} else {
		metrics.OTPVerify.WithLabelValues("failure").Inc()
	}
	return ok, nil
}

func (e *OTPEngine) templateFor(purpose string) string {
	if tpl := e.settings.Templates[purpose]; tpl != "" {
		return tpl
	}
	return "auth-" + purpose
}

func randomNumericCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
