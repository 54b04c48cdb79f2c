package public

import (
	handlershared "github.com/otp-auth/internal/http/handlers/shared"
	"github.com/otp-auth/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetMyLoginLogs 获取当前用户最近的登录日志
func (h *Handler) GetMyLoginLogs(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	logs, err := h.UserLoginLogService.ListRecent(uid)
	if err != nil {
		handlershared.RespondError(c, response.CodeInternal, "fetch login logs failed", err)
		return
	}
	response.Success(c, logs)
}
