package service

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/otp-auth/internal/config"
)

type passwordPolicyError struct {
	message string
}

func (e passwordPolicyError) Error() string {
	return e.message
}

func (e passwordPolicyError) Is(target error) bool {
	return target == ErrWeakPassword
}

func validatePassword(policy config.PasswordPolicyConfig, password string, phone string) error {
	if policy.MinLength > 0 && len([]rune(password)) < policy.MinLength {
		return passwordPolicyError{message: fmt.Sprintf("password must be at least %d characters", policy.MinLength)}
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasNumber = true
		default:
			hasSpecial = true
		}
	}

	if policy.RejectNumeric && password != "" && !hasUpper && !hasLower && !hasSpecial {
		return passwordPolicyError{message: "password cannot be entirely numeric"}
	}
	if phone != "" && strings.Contains(password, phone) {
		return passwordPolicyError{message: "password is too similar to the phone number"}
	}
	if policy.RequireUpper && !hasUpper {
		return passwordPolicyError{message: "password must contain an uppercase letter"}
	}
	if policy.RequireLower && !hasLower {
		return passwordPolicyError{message: "password must contain a lowercase letter"}
	}
	if policy.RequireNumber && !hasNumber {
		return passwordPolicyError{message: "password must contain a digit"}
	}
	if policy.RequireSpecial && !hasSpecial {
		return passwordPolicyError{message: "password must contain a special character"}
	}
	return nil
}

// ValidatePassword 按密码策略校验，phone 非空时拒绝包含手机号的密码
func ValidatePassword(policy config.PasswordPolicyConfig, password, phone string) error {
	return validatePassword(policy, password, phone)
}
