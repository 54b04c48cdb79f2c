package response

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// AppError 接口层错误，Code 同时决定 HTTP 状态码与 status_code
type AppError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%d %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// WithRetryAfter 附带 429 的重试等待时间
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	e.RetryAfter = d
	return e
}

// Write 写出统一错误响应
func (e *AppError) Write(c *gin.Context) {
	if e.Code == CodeTooManyRequests {
		TooManyRequests(c, e.Message, e.RetryAfter)
		return
	}
	Error(c, e.Code, e.Message)
}
