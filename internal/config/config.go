package config

import (
	"fmt"
	"strings"

	"github.com/otp-auth/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	OTP      OTPConfig      `mapstructure:"otp"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	SMS      SMSConfig      `mapstructure:"sms"`
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            string   `mapstructure:"port"`
	Mode            string   `mapstructure:"mode"`              // debug / release
	TrustedProxies  []string `mapstructure:"trusted_proxies"`   // 可信代理（决定是否采信转发头）
	RemoteIPHeaders []string `mapstructure:"remote_ip_headers"` // 客户端 IP 转发头
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
	// 启动前等待数据库就绪的最长秒数（wait-for-db 使用）
	WaitTimeoutSeconds int `mapstructure:"wait_timeout_seconds"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey           string `mapstructure:"secret"`
	AccessExpireMinutes int    `mapstructure:"access_expire_minutes"`
	RefreshExpireHours  int    `mapstructure:"refresh_expire_hours"`
	RotateRefreshTokens bool   `mapstructure:"rotate_refresh_tokens"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	PasswordPolicy PasswordPolicyConfig `mapstructure:"password_policy"`
	RateLimit      ScopedRateConfig     `mapstructure:"rate_limit"`
	// 为 true 时登录/校验接口不再区分“手机号不存在”
	HideAccountExistence bool `mapstructure:"hide_account_existence"`
}

// ScopedRateConfig 接口级请求频率限制（按 IP）
type ScopedRateConfig struct {
	Register RateRuleConfig `mapstructure:"register"`
	Login    RateRuleConfig `mapstructure:"login"`
	OTP      RateRuleConfig `mapstructure:"otp"`
	Anon     RateRuleConfig `mapstructure:"anon"`
}

// RateRuleConfig 单条限流规则
type RateRuleConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// PasswordPolicyConfig 密码策略配置
type PasswordPolicyConfig struct {
	MinLength      int  `mapstructure:"min_length"`
	RequireUpper   bool `mapstructure:"require_upper"`
	RequireLower   bool `mapstructure:"require_lower"`
	RequireNumber  bool `mapstructure:"require_number"`
	RequireSpecial bool `mapstructure:"require_special"`
	RejectNumeric  bool `mapstructure:"reject_numeric"`
}

// OTPConfig 短信验证码配置
type OTPConfig struct {
	ExpireMinutes          int `mapstructure:"expire_minutes"`
	Length                 int `mapstructure:"length"`
	DispatchTimeoutSeconds int `mapstructure:"dispatch_timeout_seconds"`
}

// ThrottleConfig 失败尝试限制配置
type ThrottleConfig struct {
	FailedAttemptsLimit  int    `mapstructure:"failed_attempts_limit"`
	WindowHours          int    `mapstructure:"window_hours"`
	RegisterCategory     string `mapstructure:"register_category"`
	RetentionHours       int    `mapstructure:"retention_hours"`
	PruneIntervalMinutes int    `mapstructure:"prune_interval_minutes"`
}

// SMSConfig 短信网关配置
type SMSConfig struct {
	Provider       string            `mapstructure:"provider"` // kavenegar / log
	APIKey         string            `mapstructure:"api_key"`
	BaseURL        string            `mapstructure:"base_url"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
	Templates      SMSTemplateConfig `mapstructure:"templates"`
	Breaker        SMSBreakerConfig  `mapstructure:"breaker"`
	Retry          SMSRetryConfig    `mapstructure:"retry"`
}

// SMSTemplateConfig 短信模板名称
type SMSTemplateConfig struct {
	Register string `mapstructure:"register"`
	Login    string `mapstructure:"login"`
}

// SMSBreakerConfig 短信熔断配置
type SMSBreakerConfig struct {
	MaxFailures     int `mapstructure:"max_failures"`
	IntervalSeconds int `mapstructure:"interval_seconds"`
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`
}

// SMSRetryConfig 短信重试配置
type SMSRetryConfig struct {
	MaxAttempts       int `mapstructure:"max_attempts"`
	InitialIntervalMS int `mapstructure:"initial_interval_ms"`
}

// CaptchaConfig 验证码配置
type CaptchaConfig struct {
	Provider string             `mapstructure:"provider"`
	Scenes   CaptchaSceneConfig `mapstructure:"scenes"`
	Image    CaptchaImageConfig `mapstructure:"image"`
}

// CaptchaSceneConfig 验证码场景开关
type CaptchaSceneConfig struct {
	Register  bool `mapstructure:"register"`
	ResendOTP bool `mapstructure:"resend_otp"`
}

// CaptchaImageConfig 图片验证码配置
type CaptchaImageConfig struct {
	Length        int `mapstructure:"length"`
	Width         int `mapstructure:"width"`
	Height        int `mapstructure:"height"`
	NoiseCount    int `mapstructure:"noise_count"`
	ShowLine      int `mapstructure:"show_line"`
	ExpireSeconds int `mapstructure:"expire_seconds"`
	MaxStore      int `mapstructure:"max_store"`
}

// MetricsConfig 指标暴露配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("./")    // 备用路径
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	setDefaults(viper.GetViper())

	// 环境变量支持
	viper.AutomaticEnv()                                   // 自动读取环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将 . 替换为 _ (例如 sms.api_key -> SMS_API_KEY)

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.trusted_proxies", []string{"127.0.0.1", "::1"})
	v.SetDefault("server.remote_ip_headers", []string{"X-Forwarded-For", "X-Real-IP"})
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/otp_auth.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("database.wait_timeout_seconds", 60)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.access_expire_minutes", 60)
	v.SetDefault("jwt.refresh_expire_hours", 24)
	v.SetDefault("jwt.rotate_refresh_tokens", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "otp")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-CSRF-Token",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.password_policy.min_length", 8)
	v.SetDefault("security.password_policy.require_upper", false)
	v.SetDefault("security.password_policy.require_lower", false)
	v.SetDefault("security.password_policy.require_number", false)
	v.SetDefault("security.password_policy.require_special", false)
	v.SetDefault("security.password_policy.reject_numeric", true)
	v.SetDefault("security.rate_limit.register.window_seconds", 3600)
	v.SetDefault("security.rate_limit.register.max_requests", 10)
	v.SetDefault("security.rate_limit.login.window_seconds", 3600)
	v.SetDefault("security.rate_limit.login.max_requests", 15)
	v.SetDefault("security.rate_limit.otp.window_seconds", 3600)
	v.SetDefault("security.rate_limit.otp.max_requests", 20)
	v.SetDefault("security.rate_limit.anon.window_seconds", 86400)
	v.SetDefault("security.rate_limit.anon.max_requests", 100)
	v.SetDefault("security.hide_account_existence", false)
	v.SetDefault("otp.expire_minutes", 5)
	v.SetDefault("otp.length", 6)
	v.SetDefault("otp.dispatch_timeout_seconds", 10)
	v.SetDefault("throttle.failed_attempts_limit", 3)
	v.SetDefault("throttle.window_hours", 1)
	v.SetDefault("throttle.register_category", "LOGIN")
	v.SetDefault("throttle.retention_hours", 168)
	v.SetDefault("throttle.prune_interval_minutes", 60)
	v.SetDefault("sms.provider", "log")
	v.SetDefault("sms.api_key", "")
	v.SetDefault("sms.base_url", "https://api.kavenegar.com")
	v.SetDefault("sms.timeout_seconds", 5)
	v.SetDefault("sms.templates.register", "auth-register")
	v.SetDefault("sms.templates.login", "auth-login")
	v.SetDefault("sms.breaker.max_failures", 5)
	v.SetDefault("sms.breaker.interval_seconds", 60)
	v.SetDefault("sms.breaker.timeout_seconds", 30)
	v.SetDefault("sms.retry.max_attempts", 2)
	v.SetDefault("sms.retry.initial_interval_ms", 200)
	v.SetDefault("captcha.provider", "none")
	v.SetDefault("captcha.scenes.register", false)
	v.SetDefault("captcha.scenes.resend_otp", false)
	v.SetDefault("captcha.image.length", 5)
	v.SetDefault("captcha.image.width", 240)
	v.SetDefault("captcha.image.height", 80)
	v.SetDefault("captcha.image.noise_count", 2)
	v.SetDefault("captcha.image.show_line", 2)
	v.SetDefault("captcha.image.expire_seconds", 300)
	v.SetDefault("captcha.image.max_store", 10240)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
