package router

import (
	"strconv"
	"strings"
	"time"

	"github.com/otp-auth/internal/authz"
	"github.com/otp-auth/internal/cache"
	"github.com/otp-auth/internal/config"
	handlershared "github.com/otp-auth/internal/http/handlers/shared"
	"github.com/otp-auth/internal/http/response"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/repository"
	"github.com/otp-auth/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			"X-Request-ID",
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.L()
	}
	sugar := log.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", handlershared.ClientIP(c),
		)
		if len(c.Errors) > 0 {
			entry.Errorw("request", "errors", c.Errors.String())
			return
		}
		entry.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// UserJWTAuthMiddleware 用户访问令牌鉴权中间件
func UserJWTAuthMiddleware(tokens service.TokenIssuer, userRepo repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil || userRepo == nil {
			abortUnauthorized(c, "token is invalid or expired")
			return
		}
		raw, msg := bearerToken(c.GetHeader("Authorization"))
		if msg != "" {
			abortUnauthorized(c, msg)
			return
		}
		claims, err := tokens.ParseAccess(raw)
		if err != nil {
			abortUnauthorized(c, "token is invalid or expired")
			return
		}

		state, err := cache.ResolveUserAuthState(c.Request.Context(), claims.UserID, userRepo.GetByID)
		if err != nil {
			handlershared.RequestLog(c).Errorw("user_auth_state_load_failed", "user_id", claims.UserID, "error", err)
		}
		switch {
		case state == nil:
			abortUnauthorized(c, "token is invalid or expired")
			return
		case !state.IsActive:
			abortUnauthorized(c, "user is inactive")
			return
		case !state.AcceptsToken(claims.TokenVersion, issuedAt(claims.IssuedAt)):
			abortUnauthorized(c, "token has been revoked")
			return
		}

		c.Set(handlershared.UserIDKey, claims.UserID)
		c.Set("user_phone", claims.Phone)
		c.Next()
	}
}

// UserRBACMiddleware 用户侧 RBAC 鉴权中间件，需在 UserJWTAuthMiddleware 之后
func UserRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	const denied = "you do not have permission to perform this action"
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("user_rbac_service_unavailable")
			abortForbidden(c, denied)
			return
		}
		userID := c.GetUint(handlershared.UserIDKey)
		if userID == 0 {
			abortUnauthorized(c, "authentication credentials were not provided")
			return
		}

		resource := strings.TrimSpace(c.FullPath())
		if resource == "" {
			resource = c.Request.URL.Path
		}
		log := handlershared.RequestLog(c).With(
			"user_id", userID,
			"method", c.Request.Method,
			"resource", authz.NormalizeObject(resource),
		)
		allowed, err := authzService.EnforceUser(userID, resource, c.Request.Method)
		if err != nil {
			log.Errorw("user_rbac_enforce_failed", "error", err)
			abortForbidden(c, denied)
			return
		}
		if !allowed {
			log.Warnw("user_rbac_permission_denied")
			abortForbidden(c, denied)
			return
		}
		c.Next()
	}
}

// bearerToken 解析 Authorization 头，失败时返回提示文案
func bearerToken(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "authentication credentials were not provided"
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || scheme != "Bearer" || token == "" {
		return "", "authorization header must be Bearer <token>"
	}
	return token, ""
}

func issuedAt(date *jwt.NumericDate) time.Time {
	if date == nil {
		return time.Time{}
	}
	return date.Time
}

func abortUnauthorized(c *gin.Context, msg string) {
	response.Unauthorized(c, msg)
	c.Abort()
}

func abortForbidden(c *gin.Context, msg string) {
	response.Forbidden(c, msg)
	c.Abort()
}
