package shared

import (
	"errors"

	"github.com/otp-auth/internal/http/response"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	if retryAfter, ok := service.RetryAfterOf(err); ok {
		appErr.WithRetryAfter(retryAfter)
	}
	appErr.Write(c)
}

// MappedError 定义业务错误到接口错误响应的映射关系。
// Message 为空时直接使用业务错误文本。
type MappedError struct {
	Target  error
	Code    int
	Message string
}

// RespondMappedError 按规则映射业务错误，未命中时返回 fallback 并记录原始错误。
func RespondMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if !errors.Is(err, rule.Target) {
			continue
		}
		msg := rule.Message
		if msg == "" {
			msg = err.Error()
		}
		if rule.Code >= response.CodeInternal {
			RequestLog(c).Warnw("handler_upstream_error", "code", rule.Code, "error", err)
		}
		appErr := response.WrapError(rule.Code, msg, err)
		if retryAfter, ok := service.RetryAfterOf(err); ok {
			appErr.WithRetryAfter(retryAfter)
		}
		appErr.Write(c)
		return
	}
	RespondError(c, fallbackCode, fallbackMsg, err)
}

// ConcatMappedErrors 合并多组映射规则。
func ConcatMappedErrors(groups ...[]MappedError) []MappedError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]MappedError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}
