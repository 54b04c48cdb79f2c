package public

import (
	"errors"

	handlershared "github.com/otp-auth/internal/http/handlers/shared"
	"github.com/otp-auth/internal/http/response"
	"github.com/otp-auth/internal/service"

	"github.com/gin-gonic/gin"
)

// GetImageCaptcha 获取图片验证码挑战
func (h *Handler) GetImageCaptcha(c *gin.Context) {
	if h.CaptchaService == nil {
		handlershared.RespondError(c, response.CodeInternal, "captcha unavailable", service.ErrCaptchaConfigInvalid)
		return
	}

	challenge, err := h.CaptchaService.GenerateImageChallenge()
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCaptchaDisabled):
			response.BadRequest(c, service.ErrCaptchaDisabled.Error())
		default:
			handlershared.RespondError(c, response.CodeInternal, "captcha generate failed", err)
		}
		return
	}

	response.Success(c, challenge)
}

func (h *Handler) verifyCaptcha(c *gin.Context, scene string, payload handlershared.CaptchaPayloadRequest) bool {
	if h.CaptchaService == nil {
		return true
	}
	if err := h.CaptchaService.Verify(scene, payload.ToServicePayload()); err != nil {
		respondAuthError(c, err)
		return false
	}
	return true
}
