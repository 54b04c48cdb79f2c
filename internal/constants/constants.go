package constants

// 失败尝试类别
const (
	AttemptTypeLogin = "LOGIN"
	AttemptTypeOTP   = "OTP"
)

// 验证码用途
const (
	OTPPurposeRegister = "register"
	OTPPurposeLogin    = "login"
)

// 短信模板
const (
	SMSTemplateRegister = "auth-register"
	SMSTemplateLogin    = "auth-login"
)

// 短信服务提供方
const (
	SMSProviderKavenegar = "kavenegar"
	SMSProviderLog       = "log"
)

// 登录日志状态
const (
	LoginLogStatusSuccess = "success"
	LoginLogStatusFailed  = "failed"
)

// 登录日志失败原因
const (
	LoginLogFailReasonPhoneNotFound   = "phone_not_found"
	LoginLogFailReasonInvalidPassword = "invalid_password"
	LoginLogFailReasonUserInactive    = "user_inactive"
	LoginLogFailReasonRateLimited     = "rate_limited"
	LoginLogFailReasonOTPInvalid      = "otp_invalid"
	LoginLogFailReasonInternalError   = "internal_error"
)

// 登录日志阶段
const (
	LoginStagePassword = "password"
	LoginStageOTP      = "otp"
)

// 验证码服务提供方
const (
	CaptchaProviderNone  = "none"
	CaptchaProviderImage = "image"
)

// 验证码场景
const (
	CaptchaSceneRegister  = "register"
	CaptchaSceneResendOTP = "resend_otp"
)

// 角色
const (
	RoleUser  = "user"
	RoleStaff = "staff"
)

// 队列名称
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskRetentionPrune = "auth:retention_prune"
)
