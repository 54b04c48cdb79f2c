package public

import (
	"strconv"

	"github.com/otp-auth/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// GetMe 获取当前用户
func (h *Handler) GetMe(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.UserService.GetByID(uid)
	if err != nil {
		respondUserError(c, err)
		return
	}
	response.Success(c, user)
}

// DeleteMe 注销当前用户
func (h *Handler) DeleteMe(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.UserService.DeleteAccount(c.Request.Context(), uid); err != nil {
		respondUserError(c, err)
		return
	}
	response.NoContent(c)
}

// ChangePassword 修改当前用户密码
func (h *Handler) ChangePassword(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.UserService.ChangePassword(c.Request.Context(), uid, req.OldPassword, req.NewPassword); err != nil {
		respondUserError(c, err)
		return
	}
	response.SuccessWithMsg(c, "Password updated successfully", gin.H{})
}

// GetUser 工作人员按 ID 查看用户
func (h *Handler) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid user id")
		return
	}
	user, err := h.UserService.GetByID(uint(id))
	if err != nil {
		respondUserError(c, err)
		return
	}
	response.Success(c, user)
}
