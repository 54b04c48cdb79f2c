//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/otp-auth/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := models.AllModels()
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(cleanupModels...); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresConcurrentReplaceKeepsSingleCode(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewOTPCodeRepository(db)
	phone := "09123456789"

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- repo.Replace(&models.OTPCode{
				Phone:     phone,
				Code:      strings.Repeat(string(rune('1'+n)), 6),
				Purpose:   "login",
				ExpiresAt: time.Now().Add(5 * time.Minute),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("replace failed: %v", err)
		}
	}

	count, err := repo.CountByPhone(phone)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one code after concurrent replace, got %d", count)
	}
}

func TestPostgresConsumeIsSingleUse(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewOTPCodeRepository(db)
	phone := "09123456789"
	if err := repo.Replace(&models.OTPCode{Phone: phone, Code: "123456", Purpose: "login", ExpiresAt: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Consume(phone, "123456", time.Now())
			if err != nil {
				t.Errorf("consume failed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", wins)
	}
}

func TestPostgresDuplicatePhone(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewUserRepository(db)
	if err := repo.Create(&models.User{Phone: "09123456789", PasswordHash: "x", IsActive: true}); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	err := repo.Create(&models.User{Phone: "09123456789", PasswordHash: "y", IsActive: true})
	if err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}
