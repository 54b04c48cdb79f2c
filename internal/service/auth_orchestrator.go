package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/otp-auth/internal/cache"
	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/constants"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/repository"
)

// 响应文案
const (
	MessageRegistered         = "User registered. OTP sent successfully"
	MessageOTPSent            = "OTP sent to your phone"
	MessageOTPResent          = "OTP resent successfully"
	MessageOTPVerified        = "OTP verified successfully"
	MessagePhoneNotRegistered = "User does not exist. Please register."
)

// RequestMeta 请求上下文信息
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	RequestID string
}

// RegisterInput 注册输入
type RegisterInput struct {
	Phone    string
	Password string
	Meta     RequestMeta
}

// LoginInput 登录输入
type LoginInput struct {
	Phone    string
	Password string
	Meta     RequestMeta
}

// VerifyOTPInput 验证码校验输入
type VerifyOTPInput struct {
	Phone string
	Code  string
	Meta  RequestMeta
}

// ResendOTPInput 重发验证码输入
type ResendOTPInput struct {
	Phone string
	Meta  RequestMeta
}

// OTPDispatchResult 验证码已发出的结果
type OTPDispatchResult struct {
	Message string `json:"message"`
	Phone   string `json:"phone"`
}

// VerifyOTPResult 验证成功结果
type VerifyOTPResult struct {
	Access     string `json:"access"`
	Refresh    string `json:"refresh"`
	UserID     uint   `json:"user_id"`
	Phone      string `json:"phone"`
	IsVerified bool   `json:"is_verified"`
}

// RoleAssigner 为新用户授予角色
type RoleAssigner interface {
	AssignUserRoles(userID uint, isStaff bool) error
}

// AuthSettings 认证流程参数
type AuthSettings struct {
	PasswordPolicy       config.PasswordPolicyConfig
	RegisterCategory     string
	HideAccountExistence bool
}

// AuthSettingsFromConfig 从配置解析认证参数
func AuthSettingsFromConfig(cfg *config.Config) AuthSettings {
	category := strings.ToUpper(strings.TrimSpace(cfg.Throttle.RegisterCategory))
	if category == "" {
		category = constants.AttemptTypeLogin
	}
	return AuthSettings{
		PasswordPolicy:       cfg.Security.PasswordPolicy,
		RegisterCategory:     category,
		HideAccountExistence: cfg.Security.HideAccountExistence,
	}
}

// AuthOrchestrator 组合限制守卫、凭据存储与验证码引擎实现注册/登录/校验流程
type AuthOrchestrator struct {
	settings  AuthSettings
	store     CredentialStore
	users     repository.UserRepository
	guard     *ThrottleGuard
	engine    *OTPEngine
	tokens    TokenIssuer
	roles     RoleAssigner
	loginLogs *UserLoginLogService
}

// AuthOrchestratorDeps 编排器依赖
type AuthOrchestratorDeps struct {
	Store     CredentialStore
	Users     repository.UserRepository
	Guard     *ThrottleGuard
	Engine    *OTPEngine
	Tokens    TokenIssuer
	Roles     RoleAssigner
	LoginLogs *UserLoginLogService
}

// NewAuthOrchestrator 创建认证编排器
func NewAuthOrchestrator(settings AuthSettings, deps AuthOrchestratorDeps) *AuthOrchestrator {
	if settings.RegisterCategory == "" {
		settings.RegisterCategory = constants.AttemptTypeLogin
	}
	return &AuthOrchestrator{
		settings:  settings,
		store:     deps.Store,
		users:     deps.Users,
		guard:     deps.Guard,
		engine:    deps.Engine,
		tokens:    deps.Tokens,
		roles:     deps.Roles,
		loginLogs: deps.LoginLogs,
	}
}

// Register 创建未验证用户并发送注册验证码
func (o *AuthOrchestrator) Register(ctx context.Context, in RegisterInput) (*OTPDispatchResult, error) {
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(o.settings.PasswordPolicy, in.Password, phone); err != nil {
		return nil, err
	}
	exists, err := o.store.Exists(phone)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicatePhone
	}

	user, err := o.store.CreateUser(phone, in.Password)
	if err != nil {
		return nil, err
	}
	if o.roles != nil {
		if err := o.roles.AssignUserRoles(user.ID, user.IsStaff); err != nil {
			logger.Warnw("user_role_assign_failed", "user_id", user.ID, "error", err)
		}
	}
	logger.Infow("user_registered", "user_id", user.ID, "phone", logger.MaskPhone(phone))

	if err := o.guard.Check(in.Meta.ClientIP, phone, o.settings.RegisterCategory); err != nil {
		return nil, err
	}
	if _, err := o.engine.Issue(ctx, phone, constants.OTPPurposeRegister); err != nil {
		return nil, err
	}
	return &OTPDispatchResult{Message: MessageRegistered, Phone: phone}, nil
}

// Login 校验密码并发送登录验证码，此阶段不签发令牌
func (o *AuthOrchestrator) Login(ctx context.Context, in LoginInput) (*OTPDispatchResult, error) {
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	if err := o.guard.Check(in.Meta.ClientIP, phone, constants.AttemptTypeLogin); err != nil {
		o.recordLogin(0, phone, constants.LoginStagePassword, constants.LoginLogFailReasonRateLimited, in.Meta)
		return nil, err
	}

	user, err := o.store.Authenticate(phone, in.Password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, o.loginFailed(phone, in.Meta)
	}

	if _, err := o.engine.Issue(ctx, phone, constants.OTPPurposeLogin); err != nil {
		return nil, err
	}
	o.recordLogin(user.ID, phone, constants.LoginStagePassword, "", in.Meta)
	return &OTPDispatchResult{Message: MessageOTPSent, Phone: phone}, nil
}

func (o *AuthOrchestrator) loginFailed(phone string, meta RequestMeta) error {
	exists, err := o.store.Exists(phone)
	if err != nil {
		return err
	}
	if !exists {
		// 未知手机号只按 IP 记录，避免手机号维度被用于探测
		if err := o.guard.RecordFailure(meta.ClientIP, "", constants.AttemptTypeLogin); err != nil {
			return err
		}
		o.recordLogin(0, phone, constants.LoginStagePassword, constants.LoginLogFailReasonPhoneNotFound, meta)
		if o.settings.HideAccountExistence {
			return ErrInvalidCredentials
		}
		return ErrPhoneNotRegistered
	}
	if err := o.guard.RecordFailure(meta.ClientIP, phone, constants.AttemptTypeLogin); err != nil {
		return err
	}
	o.recordLogin(0, phone, constants.LoginStagePassword, constants.LoginLogFailReasonInvalidPassword, meta)
	return ErrInvalidCredentials
}

// VerifyOTP 校验验证码，成功后标记手机号已验证并签发令牌，这是唯一签发令牌的路径
func (o *AuthOrchestrator) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*VerifyOTPResult, error) {
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.Code)
	if !IsValidOTPCode(code) {
		return nil, ErrInvalidOTPFormat
	}
	if err := o.guard.Check(in.Meta.ClientIP, phone, constants.AttemptTypeOTP); err != nil {
		o.recordLogin(0, phone, constants.LoginStageOTP, constants.LoginLogFailReasonRateLimited, in.Meta)
		return nil, err
	}

	user, err := o.store.GetByPhone(phone)
	if err != nil {
		if errors.Is(err, ErrNotFound) && o.settings.HideAccountExistence {
			if recErr := o.guard.RecordFailure(in.Meta.ClientIP, "", constants.AttemptTypeOTP); recErr != nil {
				return nil, recErr
			}
			return nil, ErrInvalidOrExpiredOTP
		}
		return nil, err
	}

	// 停用账户不消费验证码
	if !user.IsActive {
		if err := o.guard.RecordFailure(in.Meta.ClientIP, phone, constants.AttemptTypeOTP); err != nil {
			return nil, err
		}
		o.recordLogin(user.ID, phone, constants.LoginStageOTP, constants.LoginLogFailReasonUserInactive, in.Meta)
		return nil, ErrUserInactive
	}
	ok, err := o.engine.Verify(ctx, phone, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := o.guard.RecordFailure(in.Meta.ClientIP, phone, constants.AttemptTypeOTP); err != nil {
			return nil, err
		}
		o.recordLogin(user.ID, phone, constants.LoginStageOTP, constants.LoginLogFailReasonOTPInvalid, in.Meta)
		return nil, ErrInvalidOrExpiredOTP
	}

	now := time.Now()
	if err := o.users.MarkLoggedIn(user.ID, !user.IsVerified, now); err != nil {
		return nil, err
	}
	user.IsVerified = true
	user.LastLoginAt = &now

	pair, err := o.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	_ = cache.SetUserAuthState(ctx, cache.BuildUserAuthState(user))
	o.recordLogin(user.ID, phone, constants.LoginStageOTP, "", in.Meta)
	logger.Infow("otp_verified", "user_id", user.ID, "phone", logger.MaskPhone(phone))

	return &VerifyOTPResult{
		Access:     pair.Access,
		Refresh:    pair.Refresh,
		UserID:     user.ID,
		Phone:      user.Phone,
		IsVerified: user.IsVerified,
	}, nil
}

// ResendOTP 重新签发验证码；未知手机号只记录 IP 失败并返回相同结果
func (o *AuthOrchestrator) ResendOTP(ctx context.Context, in ResendOTPInput) (*OTPDispatchResult, error) {
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	if err := o.guard.Check(in.Meta.ClientIP, phone, constants.AttemptTypeOTP); err != nil {
		return nil, err
	}

	result := &OTPDispatchResult{Message: MessageOTPResent, Phone: phone}
	user, err := o.store.GetByPhone(phone)
	if errors.Is(err, ErrNotFound) {
		if err := o.guard.RecordFailure(in.Meta.ClientIP, "", constants.AttemptTypeOTP); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	purpose := constants.OTPPurposeRegister
	if user.IsVerified {
		purpose = constants.OTPPurposeLogin
	}
	if _, err := o.engine.Issue(ctx, phone, purpose); err != nil {
		return nil, err
	}
	return result, nil
}

func (o *AuthOrchestrator) recordLogin(userID uint, phone, stage, failReason string, meta RequestMeta) {
	status := constants.LoginLogStatusSuccess
	if failReason != "" {
		status = constants.LoginLogStatusFailed
	}
	o.loginLogs.Record(RecordUserLoginInput{
		UserID:     userID,
		Phone:      phone,
		Stage:      stage,
		Status:     status,
		FailReason: failReason,
		Meta:       meta,
	})
}
