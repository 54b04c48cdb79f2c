package provider

import (
	"strings"
	"time"

	"github.com/otp-auth/internal/authz"
	"github.com/otp-auth/internal/cache"
	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/constants"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/metrics"
	"github.com/otp-auth/internal/models"
	"github.com/otp-auth/internal/queue"
	"github.com/otp-auth/internal/repository"
	"github.com/otp-auth/internal/service"
	"github.com/otp-auth/internal/sms"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	SmsGateway  service.SmsGateway

	// Repositories
	UserRepo          repository.UserRepository
	OTPCodeRepo       repository.OTPCodeRepository
	FailedAttemptRepo repository.FailedAttemptRepository
	RefreshTokenRepo  repository.RefreshTokenRepository
	UserLoginLogRepo  repository.UserLoginLogRepository
	AuthzAuditLogRepo repository.AuthzAuditLogRepository

	// Services
	AuthzService        *authz.Service
	AuthzAuditService   *service.AuthzAuditService
	RoleManager         *service.AuditedRoleManager
	CredentialStore     *service.UserCredentialStore
	ThrottleGuard       *service.ThrottleGuard
	OTPEngine           *service.OTPEngine
	TokenIssuer         *service.JWTTokenIssuer
	AuthOrchestrator    *service.AuthOrchestrator
	UserService         *service.UserService
	CaptchaService      *service.CaptchaService
	UserLoginLogService *service.UserLoginLogService
	RetentionService    *service.RetentionService
}

// NewContainer 初始化容器，使用全局数据库连接与配置中的短信网关
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}
	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c, err := Build(cfg, models.DB, NewSmsGateway(cfg.SMS, cfg.Server.Mode == "debug"))
	if err != nil {
		logger.Errorw("provider_init_failed", "error", err)
		panic(err)
	}
	c.QueueClient = queueClient
	return c
}

// Build 基于给定数据库与短信网关组装仓库和服务
func Build(cfg *config.Config, db *gorm.DB, gateway service.SmsGateway) (*Container, error) {
	c := &Container{
		Config:     cfg,
		SmsGateway: gateway,
	}

	// 1. 初始化 Repositories
	c.initRepositories(db)

	// 2. 初始化 Services
	if err := c.initServices(db); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.UserRepo = repository.NewUserRepository(db)
	c.OTPCodeRepo = repository.NewOTPCodeRepository(db)
	c.FailedAttemptRepo = repository.NewFailedAttemptRepository(db)
	c.RefreshTokenRepo = repository.NewRefreshTokenRepository(db)
	c.UserLoginLogRepo = repository.NewUserLoginLogRepository(db)
	c.AuthzAuditLogRepo = repository.NewAuthzAuditLogRepository(db)
}

func (c *Container) initServices(db *gorm.DB) error {
	authzService, err := authz.NewService(db)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		return err
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		return err
	}

	c.AuthzAuditService = service.NewAuthzAuditService(c.AuthzAuditLogRepo)
	c.RoleManager = service.NewAuditedRoleManager(c.AuthzService, c.AuthzAuditService)

	cfg := c.Config
	c.CredentialStore = service.NewUserCredentialStore(c.UserRepo)
	c.ThrottleGuard = service.NewThrottleGuard(service.ThrottleSettingsFromConfig(cfg.Throttle), c.FailedAttemptRepo)
	c.OTPEngine = service.NewOTPEngine(service.OTPSettingsFromConfig(cfg.OTP, cfg.SMS), c.OTPCodeRepo, c.SmsGateway)
	c.TokenIssuer = service.NewJWTTokenIssuer(service.TokenSettingsFromConfig(cfg.JWT), c.UserRepo, c.RefreshTokenRepo)
	c.UserLoginLogService = service.NewUserLoginLogService(c.UserLoginLogRepo)
	c.CaptchaService = service.NewCaptchaService(cfg.Captcha)
	c.AuthOrchestrator = service.NewAuthOrchestrator(service.AuthSettingsFromConfig(cfg), service.AuthOrchestratorDeps{
		Store:     c.CredentialStore,
		Users:     c.UserRepo,
		Guard:     c.ThrottleGuard,
		Engine:    c.OTPEngine,
		Tokens:    c.TokenIssuer,
		Roles:     c.RoleManager,
		LoginLogs: c.UserLoginLogService,
	})
	c.UserService = service.NewUserService(cfg.Security.PasswordPolicy, c.UserRepo, c.UserLoginLogRepo, c.TokenIssuer, c.RoleManager)
	c.RetentionService = service.NewRetentionService(service.RetentionSettingsFromConfig(cfg.Throttle), c.FailedAttemptRepo, c.OTPCodeRepo, c.RefreshTokenRepo)
	return nil
}

// NewSmsGateway 按配置选择短信提供方，真实网关外层包裹熔断与重试；debug 为 true 时日志网关输出明文验证码
func NewSmsGateway(cfg config.SMSConfig, debug bool) service.SmsGateway {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case constants.SMSProviderKavenegar:
		if strings.TrimSpace(cfg.APIKey) == "" {
			// 缺少密钥时每次发送都返回 ErrGatewayRejected，不降级为日志网关
			logger.Errorw("provider_sms_api_key_missing", "provider", cfg.Provider)
		}
		next := sms.NewKavenegarGateway(cfg.APIKey, cfg.BaseURL, seconds(cfg.TimeoutSeconds))
		return sms.NewResilientGateway(next, sms.ResilientOptions{
			Name:            constants.SMSProviderKavenegar,
			MaxFailures:     cfg.Breaker.MaxFailures,
			Interval:        seconds(cfg.Breaker.IntervalSeconds),
			OpenTimeout:     seconds(cfg.Breaker.TimeoutSeconds),
			MaxRetries:      cfg.Retry.MaxAttempts - 1,
			InitialInterval: time.Duration(cfg.Retry.InitialIntervalMS) * time.Millisecond,
		})
	default:
		return sms.NewLogGateway(debug)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
