package response

// 业务状态码与 HTTP 状态码保持一致，成功为 0
const (
	CodeOK              = 0
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeTooManyRequests = 429
	CodeInternal        = 500
	CodeBadGateway      = 502
)

// HTTPStatus 业务状态码对应的 HTTP 状态码
func HTTPStatus(code int) int {
	if code >= 400 && code < 600 {
		return code
	}
	if code == CodeOK {
		return 200
	}
	return CodeInternal
}
