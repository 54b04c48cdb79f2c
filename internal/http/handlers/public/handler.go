package public

import "github.com/otp-auth/internal/provider"

// Handler 认证与用户自助接口处理器入口
type Handler struct {
	*provider.Container
}

// New 创建处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
