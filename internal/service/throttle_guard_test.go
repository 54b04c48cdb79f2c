package service

import (
	"errors"
	"testing"
	"time"

	"github.com/otp-auth/internal/constants"
	"github.com/otp-auth/internal/repository"
)

func TestThrottleGuardDeniesOnlyAboveLimit(t *testing.T) {
	db := setupServiceTestDB(t)
	guard := NewThrottleGuard(ThrottleSettings{Limit: 3, Window: time.Hour}, repository.NewFailedAttemptRepository(db))

	for i := 0; i < 3; i++ {
		if err := guard.RecordFailure(testIP, testPhone, constants.AttemptTypeLogin); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	allowed, err := guard.CheckAllowed(testIP, testPhone, constants.AttemptTypeLogin)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !allowed {
		t.Fatalf("3 failures with limit 3 must still be allowed")
	}

	if err := guard.RecordFailure(testIP, testPhone, constants.AttemptTypeLogin); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	err = guard.Check(testIP, testPhone, constants.AttemptTypeLogin)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	retry, ok := RetryAfterOf(err)
	if !ok || retry != time.Hour {
		t.Fatalf("unexpected retry after: %v %v", retry, ok)
	}
}

func TestThrottleGuardBucketsAreIndependent(t *testing.T) {
	db := setupServiceTestDB(t)
	guard := NewThrottleGuard(ThrottleSettings{Limit: 1, Window: time.Hour}, repository.NewFailedAttemptRepository(db))

	// 两个不同 IP 针对同一手机号
	if err := guard.RecordFailure("10.0.0.1", testPhone, constants.AttemptTypeOTP); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := guard.RecordFailure("10.0.0.2", testPhone, constants.AttemptTypeOTP); err != nil {
		t.Fatalf("record: %v", err)
	}
	allowed, err := guard.CheckAllowed("10.0.0.3", testPhone, constants.AttemptTypeOTP)
	if err != nil || allowed {
		t.Fatalf("phone bucket should deny: allowed=%v err=%v", allowed, err)
	}
	allowed, err = guard.CheckAllowed("10.0.0.1", "09000000000", constants.AttemptTypeOTP)
	if err != nil || !allowed {
		t.Fatalf("other phone from single-failure ip should pass: allowed=%v err=%v", allowed, err)
	}
	allowed, err = guard.CheckAllowed("10.0.0.1", testPhone, constants.AttemptTypeLogin)
	if err != nil || !allowed {
		t.Fatalf("other category should pass: allowed=%v err=%v", allowed, err)
	}

	// 未知用户失败只计入 IP
	for i := 0; i < 2; i++ {
		if err := guard.RecordFailure("10.0.0.9", "", constants.AttemptTypeLogin); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	allowed, err = guard.CheckAllowed("10.0.0.9", "", constants.AttemptTypeLogin)
	if err != nil || allowed {
		t.Fatalf("ip bucket should deny: allowed=%v err=%v", allowed, err)
	}
	allowed, err = guard.CheckAllowed("10.0.0.9", "09351112233", constants.AttemptTypeLogin)
	if err != nil || allowed {
		t.Fatalf("ip bucket should deny even when the phone bucket is clean: allowed=%v err=%v", allowed, err)
	}
}

func TestThrottleGuardWindowRollover(t *testing.T) {
	db := setupServiceTestDB(t)
	guard := NewThrottleGuard(ThrottleSettings{Limit: 1, Window: time.Hour}, repository.NewFailedAttemptRepository(db))
	base := time.Now()
	guard.now = func() time.Time { return base }

	for i := 0; i < 2; i++ {
		if err := guard.RecordFailure(testIP, testPhone, constants.AttemptTypeLogin); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if allowed, _ := guard.CheckAllowed(testIP, testPhone, constants.AttemptTypeLogin); allowed {
		t.Fatalf("expected denial inside window")
	}

	guard.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	allowed, err := guard.CheckAllowed(testIP, testPhone, constants.AttemptTypeLogin)
	if err != nil || !allowed {
		t.Fatalf("expected allowance after window: allowed=%v err=%v", allowed, err)
	}
}
