package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/otp-auth/internal/constants"
	"github.com/otp-auth/internal/repository"
	"github.com/otp-auth/internal/sms"
)

func newTestEngine(t *testing.T) (*OTPEngine, *sms.MemoryGateway, repository.OTPCodeRepository) {
	t.Helper()
	db := setupServiceTestDB(t)
	repo := repository.NewOTPCodeRepository(db)
	gateway := sms.NewMemoryGateway()
	engine := NewOTPEngine(OTPSettings{
		TTL:             5 * time.Minute,
		Length:          6,
		DispatchTimeout: time.Second,
		Templates:       map[string]string{constants.OTPPurposeLogin: "login-tpl"},
	}, repo, gateway)
	return engine, gateway, repo
}

func TestOTPEngineIssueReplacesPreviousCode(t *testing.T) {
	engine, gateway, repo := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.Issue(ctx, testPhone, constants.OTPPurposeRegister)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := engine.Issue(ctx, testPhone, constants.OTPPurposeLogin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !IsValidOTPCode(first) || !IsValidOTPCode(second) {
		t.Fatalf("codes must be 6 digits: %q %q", first, second)
	}
	count, err := repo.CountByPhone(testPhone)
	if err != nil || count != 1 {
		t.Fatalf("expected a single stored code, got %d err=%v", count, err)
	}
	last, _ := gateway.Last()
	if last.Template != "login-tpl" || last.Code != second {
		t.Fatalf("unexpected last sms: %+v", last)
	}
	if gateway.Sent()[0].Template != "auth-register" {
		t.Fatalf("missing template should fall back to auth-<purpose>, got %q", gateway.Sent()[0].Template)
	}

	if first != second {
		ok, err := engine.Verify(ctx, testPhone, first)
		if err != nil || ok {
			t.Fatalf("superseded code must not verify: ok=%v err=%v", ok, err)
		}
	}
	ok, err := engine.Verify(ctx, testPhone, second)
	if err != nil || !ok {
		t.Fatalf("latest code must verify: ok=%v err=%v", ok, err)
	}
	ok, _ = engine.Verify(ctx, testPhone, second)
	if ok {
		t.Fatalf("code must be single use")
	}
}

func TestOTPEngineVerifyRejectsExpired(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	base := time.Now()
	engine.now = func() time.Time { return base }

	code, err := engine.Issue(ctx, testPhone, constants.OTPPurposeLogin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	engine.now = func() time.Time { return base.Add(5*time.Minute + time.Second) }
	ok, err := engine.Verify(ctx, testPhone, code)
	if err != nil || ok {
		t.Fatalf("expired code must fail: ok=%v err=%v", ok, err)
	}
}

func TestOTPEngineDeliveryFailureKeepsRecord(t *testing.T) {
	engine, gateway, repo := newTestEngine(t)
	gateway.SetErr(errors.New("gateway down"))

	_, err := engine.Issue(context.Background(), testPhone, constants.OTPPurposeRegister)
	if !errors.Is(err, ErrDeliveryFailure) {
		t.Fatalf("expected delivery failure, got %v", err)
	}
	latest, err := repo.GetLatest(testPhone)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest == nil || latest.IsUsed {
		t.Fatalf("persisted code should remain active: %+v", latest)
	}
}

func TestOTPEngineIssueSendsSingleRequestOnGatewayError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"return":{"status":200,"message":"ok"}}`))
	}))
	defer srv.Close()

	db := setupServiceTestDB(t)
	gateway := sms.NewResilientGateway(sms.NewKavenegarGateway("key", srv.URL, time.Second), sms.ResilientOptions{
		MaxFailures:     5,
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
	})
	engine := NewOTPEngine(OTPSettings{TTL: 5 * time.Minute, Length: 6, DispatchTimeout: time.Second}, repository.NewOTPCodeRepository(db), gateway)

	if _, err := engine.Issue(context.Background(), testPhone, constants.OTPPurposeLogin); !errors.Is(err, ErrDeliveryFailure) {
		t.Fatalf("expected delivery failure, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("issue must reach the gateway exactly once, got %d", got)
	}
}
