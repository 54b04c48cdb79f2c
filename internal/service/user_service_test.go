package service

import (
	"context"
	"errors"
	"testing"

	"github.com/otp-auth/internal/models"

	"golang.org/x/crypto/bcrypt"
)

func setupUserServiceTest(t *testing.T) (*UserService, *authFixture, *models.User) {
	t.Helper()
	f := setupAuthFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &models.User{Phone: testPhone, PasswordHash: string(hash), IsActive: true}
	if err := f.users.Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc := NewUserService(testPasswordPolicy(), f.users, f.loginLogs, f.issuer, nil)
	return svc, f, user
}

func TestUserServiceChangePassword(t *testing.T) {
	svc, f, user := setupUserServiceTest(t)
	ctx := context.Background()
	pair, err := f.issuer.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "WrongOld1!", "NewStrong2@"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected invalid password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, testPassword, "123"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, testPassword, "NewStrong2@"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	reloaded, _ := f.users.GetByID(user.ID)
	if bcrypt.CompareHashAndPassword([]byte(reloaded.PasswordHash), []byte("NewStrong2@")) != nil {
		t.Fatalf("password hash not updated")
	}
	if reloaded.TokenVersion != user.TokenVersion+1 || reloaded.TokenInvalidBefore == nil {
		t.Fatalf("token version should bump: %+v", reloaded)
	}
	if _, err := f.issuer.Refresh(pair.Refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("old refresh token must be revoked, got %v", err)
	}
}

func TestUserServiceDeleteAccount(t *testing.T) {
	svc, f, user := setupUserServiceTest(t)
	if _, err := f.issuer.Issue(user); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.DeleteAccount(context.Background(), user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := f.users.GetByID(user.ID); got != nil {
		t.Fatalf("user should be gone")
	}
	var active int64
	f.db.Model(&models.RefreshToken{}).Where("user_id = ? AND revoked_at IS NULL", user.ID).Count(&active)
	if active != 0 {
		t.Fatalf("refresh tokens should be revoked")
	}
}
