package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/constants"
	"github.com/otp-auth/internal/models"
	"github.com/otp-auth/internal/repository"
	"github.com/otp-auth/internal/sms"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	testPhone    = "09123456789"
	testPassword = "StrongPass1!"
	testIP       = "10.0.0.1"
)

type authFixture struct {
	db        *gorm.DB
	gateway   *sms.MemoryGateway
	users     repository.UserRepository
	otps      repository.OTPCodeRepository
	attempts  repository.FailedAttemptRepository
	tokens    repository.RefreshTokenRepository
	loginLogs repository.UserLoginLogRepository
	guard     *ThrottleGuard
	engine    *OTPEngine
	issuer    *JWTTokenIssuer
	auth      *AuthOrchestrator
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:service_%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

func testPasswordPolicy() config.PasswordPolicyConfig {
	return config.PasswordPolicyConfig{
		MinLength:     8,
		RejectNumeric: true,
	}
}

func setupAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := setupServiceTestDB(t)
	f := &authFixture{
		db:        db,
		gateway:   sms.NewMemoryGateway(),
		users:     repository.NewUserRepository(db),
		otps:      repository.NewOTPCodeRepository(db),
		attempts:  repository.NewFailedAttemptRepository(db),
		tokens:    repository.NewRefreshTokenRepository(db),
		loginLogs: repository.NewUserLoginLogRepository(db),
	}
	f.guard = NewThrottleGuard(ThrottleSettings{Limit: 3, Window: time.Hour}, f.attempts)
	f.engine = NewOTPEngine(OTPSettings{
		TTL:             5 * time.Minute,
		Length:          6,
		DispatchTimeout: time.Second,
		Templates: map[string]string{
			constants.OTPPurposeRegister: constants.SMSTemplateRegister,
			constants.OTPPurposeLogin:    constants.SMSTemplateLogin,
		},
	}, f.otps, f.gateway)
	f.issuer = NewJWTTokenIssuer(TokenSettings{
		Secret:     []byte("test-secret"),
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		Rotate:     true,
	}, f.users, f.tokens)
	f.auth = NewAuthOrchestrator(AuthSettings{
		PasswordPolicy:   testPasswordPolicy(),
		RegisterCategory: constants.AttemptTypeLogin,
	}, AuthOrchestratorDeps{
		Store:     NewUserCredentialStore(f.users),
		Users:     f.users,
		Guard:     f.guard,
		Engine:    f.engine,
		Tokens:    f.issuer,
		LoginLogs: NewUserLoginLogService(f.loginLogs),
	})
	return f
}

func (f *authFixture) lastCode(t *testing.T) string {
	t.Helper()
	msg, ok := f.gateway.Last()
	if !ok {
		t.Fatalf("expected an sms to be sent")
	}
	return msg.Code
}

func (f *authFixture) countAttempts(t *testing.T, category string) int64 {
	t.Helper()
	var count int64
	if err := f.db.Model(&models.FailedAttempt{}).Where("attempt_type = ?", category).Count(&count).Error; err != nil {
		t.Fatalf("count attempts failed: %v", err)
	}
	return count
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}
