package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/otp-auth/internal/app"
	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/constants"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	ansiReset     = "\033[0m"
	ansiBold      = "\033[1m"
	ansiDim       = "\033[2m"
	ansiGreen     = "\033[32m"
	ansiBlue      = "\033[34m"
	ansiCyan      = "\033[36m"
	ansiBrightMag = "\033[95m"
)

func main() {
	mode := flag.String("mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()

	printStartupBanner()
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()

	if err := run(cfg, *mode); err != nil {
		logger.Errorw("server_exit", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, mode string) error {
	release := cfg.Server.Mode == "release"
	if isWeakSecret(cfg.JWT.SecretKey) {
		if release {
			return errors.New("jwt secret is weak or still the default, configure a strong random key")
		}
		logger.Warnw("jwt_secret_weak", "hint", "set jwt.secret_key before deploying")
	}
	if err := checkSMSConfig(cfg.SMS, release); err != nil {
		return err
	}
	if release {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if err := models.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	return app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	})
}

// checkSMSConfig release 模式下拒绝缺少密钥的短信网关
func checkSMSConfig(cfg config.SMSConfig, release bool) error {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == constants.SMSProviderKavenegar && strings.TrimSpace(cfg.APIKey) == "" {
		if release {
			return errors.New("sms.api_key is required for the kavenegar provider")
		}
		logger.Warnw("sms_api_key_missing", "provider", provider)
	}
	if release && provider != constants.SMSProviderKavenegar {
		logger.Warnw("sms_log_provider_in_release", "provider", provider, "hint", "otp codes will not be delivered")
	}
	return nil
}

func printStartupBanner() {
	fmt.Println(ansiBrightMag + "╔════════════════════════════════════════════╗" + ansiReset)
	fmt.Println(ansiBrightMag + "║          🔐 OTP Auth API 启动中            ║" + ansiReset)
	fmt.Println(ansiBrightMag + "╚════════════════════════════════════════════╝" + ansiReset)
	fmt.Println(ansiCyan + " ██████╗ ████████╗██████╗      █████╗ ██╗   ██╗████████╗██╗  ██╗" + ansiReset)
	fmt.Println(ansiCyan + "██╔═══██╗╚══██╔══╝██╔══██╗    ██╔══██╗██║   ██║╚══██╔══╝██║  ██║" + ansiReset)
	fmt.Println(ansiCyan + "██║   ██║   ██║   ██████╔╝    ███████║██║   ██║   ██║   ███████║" + ansiReset)
	fmt.Println(ansiCyan + "██║   ██║   ██║   ██╔═══╝     ██╔══██║██║   ██║   ██║   ██╔══██║" + ansiReset)
	fmt.Println(ansiCyan + "╚██████╔╝   ██║   ██║         ██║  ██║╚██████╔╝   ██║   ██║  ██║" + ansiReset)
	fmt.Println(ansiCyan + " ╚═════╝    ╚═╝   ╚═╝         ╚═╝  ╚═╝ ╚═════╝    ╚═╝   ╚═╝  ╚═╝" + ansiReset)
	fmt.Println(ansiGreen + ansiBold + "Phone + password sign-in with SMS one-time codes" + ansiReset)
	fmt.Println(ansiBlue + "• Health:  GET /health" + ansiReset)
	fmt.Println(ansiBlue + "• Auth:    /api/v1/auth" + ansiReset)
	fmt.Println(ansiBlue + "• Users:   /api/v1/users" + ansiReset)
	fmt.Println(ansiDim + "--------------------------------------------------------------" + ansiReset)
}

func isWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	if strings.Contains(normalized, "change-me") ||
		strings.Contains(normalized, "change-in-production") ||
		strings.Contains(normalized, "your-secret-key") {
		return true
	}
	return false
}
