package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

type flakySender struct {
	failures int
	calls    int
}

func (f *flakySender) Send(ctx context.Context, phone, code, template string) error {
	f.calls++
	if f.calls <= f.failures {
		return fmt.Errorf("%w: connection refused", ErrNotSent)
	}
	return nil
}

func TestResilientGatewayRetriesUnsentRequests(t *testing.T) {
	next := &flakySender{failures: 2}
	gw := NewResilientGateway(next, ResilientOptions{
		MaxFailures:     10,
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
	})
	if err := gw.Send(context.Background(), "09123456789", "123456", "auth-login"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if next.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", next.calls)
	}
}

func TestResilientGatewayOpensBreaker(t *testing.T) {
	mem := NewMemoryGateway()
	mem.SetErr(errors.New("down"))
	gw := NewResilientGateway(mem, ResilientOptions{
		MaxFailures:     2,
		OpenTimeout:     time.Minute,
		MaxRetries:      0,
		InitialInterval: time.Millisecond,
	})

	for i := 0; i < 2; i++ {
		if err := gw.Send(context.Background(), "09123456789", "1", "auth-login"); err == nil {
			t.Fatalf("expected failure on call %d", i)
		}
	}
	if gw.State() != gobreaker.StateOpen {
		t.Fatalf("expected breaker open, got %s", gw.State())
	}

	err := gw.Send(context.Background(), "09123456789", "1", "auth-login")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState, got %v", err)
	}
	if mem.Calls() != 2 {
		t.Fatalf("open breaker must not reach downstream, calls=%d", mem.Calls())
	}
}

func TestResilientGatewayHonorsContext(t *testing.T) {
	mem := NewMemoryGateway()
	mem.SetErr(ErrNotSent)
	gw := NewResilientGateway(mem, ResilientOptions{
		MaxFailures:     100,
		MaxRetries:      50,
		InitialInterval: 50 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := gw.Send(ctx, "09123456789", "1", "auth-login"); err == nil {
		t.Fatalf("expected error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("retry loop ignored context deadline")
	}
}

func TestResilientGatewayDoesNotResendAfterServerError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"return":{"status":200,"message":"ok"}}`))
	}))
	defer srv.Close()

	gw := NewResilientGateway(NewKavenegarGateway("key", srv.URL, time.Second), ResilientOptions{
		MaxFailures:     5,
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
	})
	if err := gw.Send(context.Background(), "09123456789", "123456", "auth-login"); err == nil {
		t.Fatalf("expected 502 to surface as failure")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("gateway may have delivered the sms, expected exactly 1 request, got %d", got)
	}
}

func TestResilientGatewayRetriesWhenConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	next := NewKavenegarGateway("key", addr, time.Second)
	calls := 0
	gw := NewResilientGateway(senderFunc(func(ctx context.Context, phone, code, template string) error {
		calls++
		return next.Send(ctx, phone, code, template)
	}), ResilientOptions{MaxFailures: 10, MaxRetries: 2, InitialInterval: time.Millisecond})

	err := gw.Send(context.Background(), "09123456789", "123456", "auth-login")
	if !errors.Is(err, ErrNotSent) {
		t.Fatalf("expected ErrNotSent, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("refused connections should be retried, calls=%d", calls)
	}
}

func TestResilientGatewayRejectionsKeepBreakerClosed(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"return":{"status":411,"message":"invalid receptor"}}`))
	}))
	defer srv.Close()

	gw := NewResilientGateway(NewKavenegarGateway("key", srv.URL, time.Second), ResilientOptions{
		MaxFailures:     2,
		OpenTimeout:     time.Minute,
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
	})
	for i := 0; i < 5; i++ {
		if err := gw.Send(context.Background(), "09000000000", "1", "auth-login"); !errors.Is(err, ErrGatewayRejected) {
			t.Fatalf("call %d: expected ErrGatewayRejected, got %v", i, err)
		}
	}
	if gw.State() != gobreaker.StateClosed {
		t.Fatalf("rejected recipients must not open the breaker, got %s", gw.State())
	}
	if got := atomic.LoadInt32(&hits); got != 5 {
		t.Fatalf("expected one request per send, got %d", got)
	}
}

type senderFunc func(ctx context.Context, phone, code, template string) error

func (f senderFunc) Send(ctx context.Context, phone, code, template string) error {
	return f(ctx, phone, code, template)
}
