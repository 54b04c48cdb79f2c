package main

import (
	"flag"
	"os"
	"strings"

	"github.com/otp-auth/internal/authz"
	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/models"
	"github.com/otp-auth/internal/repository"
	"github.com/otp-auth/internal/service"
)

func main() {
	var phone, password string
	flag.StringVar(&phone, "phone", os.Getenv("OTP_STAFF_PHONE"), "工作人员手机号（09 开头 11 位）")
	flag.StringVar(&password, "password", os.Getenv("OTP_STAFF_PASSWORD"), "工作人员密码，已存在账号可留空")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}

	phone = strings.TrimSpace(phone)
	if phone == "" {
		stdLog.Printf("No staff phone given, only roles were seeded")
		return
	}
	normalized, err := service.NormalizePhone(phone)
	if err != nil {
		stdLog.Fatalf("Invalid staff phone %q: %v", phone, err)
	}
	if password != "" {
		if err := service.ValidatePassword(cfg.Security.PasswordPolicy, password, normalized); err != nil {
			stdLog.Fatalf("Staff password rejected: %v", err)
		}
	}

	user, err := models.EnsureStaffUser(models.DB, normalized, password)
	if err != nil {
		stdLog.Fatalf("Failed to seed staff user: %v", err)
	}
	roles := service.NewAuditedRoleManager(authzService, service.NewAuthzAuditService(repository.NewAuthzAuditLogRepository(models.DB)))
	if err := roles.AssignUserRoles(user.ID, true); err != nil {
		stdLog.Fatalf("Failed to assign staff roles: %v", err)
	}
	stdLog.Printf("Staff user ready: id=%d phone=%s", user.ID, logger.MaskPhone(normalized))
}
