package shared

import (
	"strings"

	"github.com/otp-auth/internal/service"

	"github.com/gin-gonic/gin"
)

// ClientIP 解析调用方 IP；是否采信转发头由引擎的可信代理配置决定。
func ClientIP(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.ClientIP())
}

// RequestMeta 汇总请求上下文信息
func RequestMeta(c *gin.Context) service.RequestMeta {
	meta := service.RequestMeta{ClientIP: ClientIP(c)}
	if c == nil || c.Request == nil {
		return meta
	}
	meta.UserAgent = strings.TrimSpace(c.Request.UserAgent())
	if value, ok := c.Get("request_id"); ok {
		if id, ok := value.(string); ok {
			meta.RequestID = id
		}
	}
	return meta
}
