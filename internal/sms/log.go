package sms

import (
	"context"

	"github.com/otp-auth/internal/logger"
)

const maskedCode = "******"

// LogGateway 仅写日志的网关，用于本地开发
type LogGateway struct {
	revealCode bool
}

// NewLogGateway 创建日志网关，revealCode 为 false 时验证码与手机号脱敏输出
func NewLogGateway(revealCode bool) *LogGateway {
	return &LogGateway{revealCode: revealCode}
}

// Send 将验证码写入日志
func (g *LogGateway) Send(ctx context.Context, phone, code, template string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.revealCode {
		phone = logger.MaskPhone(phone)
		code = maskedCode
	}
	logger.Infow("sms_log_gateway_send", "phone", phone, "code", code, "template", template)
	return nil
}
