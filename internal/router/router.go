package router

import (
	"fmt"
	"strings"

	"github.com/otp-auth/internal/cache"
	"github.com/otp-auth/internal/config"
	handlershared "github.com/otp-auth/internal/http/handlers/shared"
	publichandlers "github.com/otp-auth/internal/http/handlers/public"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/metrics"
	"github.com/otp-auth/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Warnw("router_trusted_proxies_invalid", "error", err)
	}
	if len(cfg.Server.RemoteIPHeaders) > 0 {
		r.RemoteIPHeaders = cfg.Server.RemoteIPHeaders
	}
	if err := handlershared.RegisterValidators(); err != nil {
		logger.Errorw("router_register_validators_failed", "error", err)
	}

	h := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "otp"
	}
	redisClient := cache.Client()
	scoped := cfg.Security.RateLimit
	rule := func(name string, rc config.RateRuleConfig) gin.HandlerFunc {
		return RateLimitMiddleware(redisClient, RateLimitRule{
			Name:          name,
			Prefix:        fmt.Sprintf("%s:rate:%s", redisPrefix, name),
			WindowSeconds: rc.WindowSeconds,
			MaxRequests:   rc.MaxRequests,
		}, KeyByIP)
	}
	registerLimit := rule("register", scoped.Register)
	loginLimit := rule("login", scoped.Login)
	otpLimit := rule("otp", scoped.OTP)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger.Z()))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 认证接口（匿名）
		auth := apiV1.Group("/auth", rule("anon", scoped.Anon))
		{
			auth.POST("/register", registerLimit, h.Register)
			auth.POST("/login", loginLimit, h.Login)
			auth.POST("/verify-otp", otpLimit, h.VerifyOTP)
			auth.POST("/resend-otp", otpLimit, h.ResendOTP)
			auth.POST("/jwt/refresh", h.RefreshToken)
			auth.POST("/jwt/verify", h.VerifyToken)
			auth.GET("/captcha", h.GetImageCaptcha)
		}

		// 登录用户接口
		users := apiV1.Group("/users")
		users.Use(UserJWTAuthMiddleware(c.TokenIssuer, c.UserRepo), UserRBACMiddleware(c.AuthzService))
		{
			users.GET("/me", h.GetMe)
			users.DELETE("/me", h.DeleteMe)
			users.PUT("/me/change-password", h.ChangePassword)
			users.GET("/me/login-logs", h.GetMyLoginLogs)
			users.GET("/:id", h.GetUser)
		}
	}

	if cfg.Metrics.Enabled {
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(metrics.Handler()))
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
