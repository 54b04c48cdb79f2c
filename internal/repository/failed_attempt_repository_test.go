package repository

import (
	"testing"
	"time"

	"github.com/otp-auth/internal/models"
)

func TestFailedAttemptCountsByBucket(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewFailedAttemptRepository(db)
	now := time.Now()
	phone := "09123456789"

	rows := []models.FailedAttempt{
		{IPAddress: "1.1.1.1", Phone: &phone, AttemptType: "LOGIN", CreatedAt: now.Add(-10 * time.Minute)},
		{IPAddress: "1.1.1.1", AttemptType: "LOGIN", CreatedAt: now.Add(-5 * time.Minute)},
		{IPAddress: "2.2.2.2", Phone: &phone, AttemptType: "OTP", CreatedAt: now.Add(-5 * time.Minute)},
		{IPAddress: "1.1.1.1", Phone: &phone, AttemptType: "LOGIN", CreatedAt: now.Add(-2 * time.Hour)},
	}
	for i := range rows {
		if err := repo.Create(&rows[i]); err != nil {
			t.Fatalf("create attempt failed: %v", err)
		}
	}

	since := now.Add(-time.Hour)
	byPhone, err := repo.CountByPhoneSince(phone, "LOGIN", since)
	if err != nil {
		t.Fatalf("count by phone failed: %v", err)
	}
	if byPhone != 1 {
		t.Fatalf("expected 1 phone LOGIN attempt, got %d", byPhone)
	}
	byIP, err := repo.CountByIPSince("1.1.1.1", "LOGIN", since)
	if err != nil {
		t.Fatalf("count by ip failed: %v", err)
	}
	if byIP != 2 {
		t.Fatalf("expected 2 ip LOGIN attempts, got %d", byIP)
	}
	otpByPhone, _ := repo.CountByPhoneSince(phone, "OTP", since)
	if otpByPhone != 1 {
		t.Fatalf("expected 1 phone OTP attempt, got %d", otpByPhone)
	}

	deleted, err := repo.DeleteBefore(since)
	if err != nil {
		t.Fatalf("delete before failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
}
