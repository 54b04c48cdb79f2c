package service

import (
	"errors"
	"fmt"
	"time"
)

// 输入校验错误
var (
	ErrInvalidPhone         = errors.New("phone must be 11 digits starting with 09")
	ErrInvalidOTPFormat     = errors.New("otp code must be 6 digits")
	ErrWeakPassword         = errors.New("password does not satisfy policy")
	ErrCaptchaRequired      = errors.New("captcha is required")
	ErrCaptchaInvalid       = errors.New("captcha is invalid")
	ErrCaptchaConfigInvalid = errors.New("captcha config is invalid")
	ErrCaptchaDisabled      = errors.New("captcha is disabled")
)

// 业务错误
var (
	ErrDuplicatePhone      = errors.New("phone already registered")
	ErrInvalidCredentials  = errors.New("invalid phone or password")
	ErrPhoneNotRegistered  = fmt.Errorf("%w: user does not exist", ErrInvalidCredentials)
	ErrInvalidOrExpiredOTP = errors.New("invalid or expired otp")
	ErrRateLimited         = errors.New("too many failed attempts")
	ErrDeliveryFailure     = errors.New("otp delivery failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidPassword     = errors.New("old password is incorrect")
	ErrTokenInvalid        = errors.New("token is invalid or expired")
	ErrUserInactive        = errors.New("user is inactive")
)

// RateLimitedError 限流错误，携带建议重试间隔
type RateLimitedError struct {
	Category   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: category=%s retry_after=%s", ErrRateLimited.Error(), e.Category, e.RetryAfter)
}

// Is 使 errors.Is(err, ErrRateLimited) 成立
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterOf 提取限流错误的重试间隔
func RetryAfterOf(err error) (time.Duration, bool) {
	var limited *RateLimitedError
	if errors.As(err, &limited) {
		return limited.RetryAfter, true
	}
	return 0, false
}
