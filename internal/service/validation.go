package service

import (
	"regexp"
	"strings"
)

var (
	phonePattern = regexp.MustCompile(`^09\d{9}$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)
)

// NormalizePhone 去除空白并校验手机号格式
func NormalizePhone(phone string) (string, error) {
	trimmed := strings.TrimSpace(phone)
	if !phonePattern.MatchString(trimmed) {
		return "", ErrInvalidPhone
	}
	return trimmed, nil
}

// IsValidPhone 手机号是否合法
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// IsValidOTPCode 验证码是否为 6 位数字
func IsValidOTPCode(code string) bool {
	return otpPattern.MatchString(code)
}
