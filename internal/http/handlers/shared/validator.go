package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/otp-auth/internal/service"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 注册 mobile 与 otp_code 绑定校验标签
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	if err := v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return service.IsValidPhone(strings.TrimSpace(fl.Field().String()))
	}); err != nil {
		return err
	}
	return v.RegisterValidation("otp_code", func(fl validator.FieldLevel) bool {
		return service.IsValidOTPCode(strings.TrimSpace(fl.Field().String()))
	})
}

// FieldErrors 将绑定错误转换为字段级提示，无法识别时返回 nil
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe)] = fieldMessage(fe)
	}
	return fields
}

func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "mobile":
		return service.ErrInvalidPhone.Error()
	case "otp_code":
		return service.ErrInvalidOTPFormat.Error()
	default:
		return fmt.Sprintf("failed on %s validation", fe.Tag())
	}
}
