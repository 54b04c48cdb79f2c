package public

import (
	"net/http"

	"github.com/otp-auth/internal/constants"
	handlershared "github.com/otp-auth/internal/http/handlers/shared"
	"github.com/otp-auth/internal/http/response"
	"github.com/otp-auth/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Phone          string                              `json:"phone" binding:"required,mobile"`
	Password       string                              `json:"password" binding:"required"`
	CaptchaPayload handlershared.CaptchaPayloadRequest `json:"captcha_payload"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required,mobile"`
	Password string `json:"password" binding:"required"`
}

// VerifyOTPRequest 验证码校验请求
type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"required,mobile"`
	Code  string `json:"code" binding:"required,otp_code"`
}

// ResendOTPRequest 重发验证码请求
type ResendOTPRequest struct {
	Phone          string                              `json:"phone" binding:"required,mobile"`
	CaptchaPayload handlershared.CaptchaPayloadRequest `json:"captcha_payload"`
}

// RefreshTokenRequest 刷新令牌请求
type RefreshTokenRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// VerifyTokenRequest 令牌校验请求
type VerifyTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// Register 注册并发送验证码
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !h.verifyCaptcha(c, constants.CaptchaSceneRegister, req.CaptchaPayload) {
		return
	}

	result, err := h.AuthOrchestrator.Register(c.Request.Context(), service.RegisterInput{
		Phone:    req.Phone,
		Password: req.Password,
		Meta:     handlershared.RequestMeta(c),
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.Created(c, result.Message, result)
}

// Login 校验密码并发送登录验证码
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.AuthOrchestrator.Login(c.Request.Context(), service.LoginInput{
		Phone:    req.Phone,
		Password: req.Password,
		Meta:     handlershared.RequestMeta(c),
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.SuccessWithMsg(c, result.Message, gin.H{"message": result.Message})
}

// VerifyOTP 校验验证码并签发令牌
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.AuthOrchestrator.VerifyOTP(c.Request.Context(), service.VerifyOTPInput{
		Phone: req.Phone,
		Code:  req.Code,
		Meta:  handlershared.RequestMeta(c),
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.SuccessWithMsg(c, service.MessageOTPVerified, result)
}

// ResendOTP 重新发送验证码
func (h *Handler) ResendOTP(c *gin.Context) {
	var req ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !h.verifyCaptcha(c, constants.CaptchaSceneResendOTP, req.CaptchaPayload) {
		return
	}

	result, err := h.AuthOrchestrator.ResendOTP(c.Request.Context(), service.ResendOTPInput{
		Phone: req.Phone,
		Meta:  handlershared.RequestMeta(c),
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}
	response.SuccessWithMsg(c, result.Message, result)
}

// RefreshToken 使用刷新令牌换取新令牌
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	pair, err := h.TokenIssuer.Refresh(req.Refresh)
	if err != nil {
		respondTokenError(c, err)
		return
	}
	response.Success(c, pair)
}

// VerifyToken 校验令牌
func (h *Handler) VerifyToken(c *gin.Context) {
	var req VerifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.TokenIssuer.Verify(req.Token); err != nil {
		respondTokenError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Response{StatusCode: response.CodeOK, Msg: "success", Data: gin.H{}})
}
