package public

import (
	handlershared "github.com/otp-auth/internal/http/handlers/shared"
	"github.com/otp-auth/internal/http/response"
	"github.com/otp-auth/internal/service"

	"github.com/gin-gonic/gin"
)

const internalErrorMessage = "internal server error"

var validationErrorRules = []handlershared.MappedError{
	{Target: service.ErrInvalidPhone, Code: response.CodeBadRequest},
	{Target: service.ErrInvalidOTPFormat, Code: response.CodeBadRequest},
	{Target: service.ErrWeakPassword, Code: response.CodeBadRequest},
	{Target: service.ErrCaptchaRequired, Code: response.CodeBadRequest},
	{Target: service.ErrCaptchaInvalid, Code: response.CodeBadRequest},
}

var authFlowErrorRules = []handlershared.MappedError{
	{Target: service.ErrDuplicatePhone, Code: response.CodeBadRequest},
	{Target: service.ErrPhoneNotRegistered, Code: response.CodeBadRequest, Message: service.MessagePhoneNotRegistered},
	{Target: service.ErrInvalidCredentials, Code: response.CodeBadRequest},
	{Target: service.ErrInvalidOrExpiredOTP, Code: response.CodeBadRequest},
	{Target: service.ErrUserInactive, Code: response.CodeBadRequest, Message: service.ErrInvalidCredentials.Error()},
	{Target: service.ErrRateLimited, Code: response.CodeTooManyRequests, Message: service.ErrRateLimited.Error()},
	{Target: service.ErrDeliveryFailure, Code: response.CodeBadGateway, Message: service.ErrDeliveryFailure.Error()},
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Message: "user not found"},
}

var tokenErrorRules = []handlershared.MappedError{
	{Target: service.ErrTokenInvalid, Code: response.CodeUnauthorized},
}

var userErrorRules = []handlershared.MappedError{
	{Target: service.ErrInvalidPassword, Code: response.CodeBadRequest},
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Message: "user not found"},
}

func respondAuthError(c *gin.Context, err error) {
	handlershared.RespondMappedError(c, err, handlershared.ConcatMappedErrors(validationErrorRules, authFlowErrorRules), response.CodeInternal, internalErrorMessage)
}

func respondTokenError(c *gin.Context, err error) {
	handlershared.RespondMappedError(c, err, tokenErrorRules, response.CodeInternal, internalErrorMessage)
}

func respondUserError(c *gin.Context, err error) {
	handlershared.RespondMappedError(c, err, handlershared.ConcatMappedErrors(validationErrorRules, userErrorRules), response.CodeInternal, internalErrorMessage)
}

func respondBindError(c *gin.Context, err error) {
	fields := handlershared.FieldErrors(err)
	if fields == nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	response.ErrorWithData(c, response.CodeBadRequest, "invalid request body", gin.H{"errors": fields})
}
