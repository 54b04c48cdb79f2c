package sms

import (
	"context"
	"errors"
	"time"

	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Sender 短信发送能力
type Sender interface {
	Send(ctx context.Context, phone, code, template string) error
}

// ResilientOptions 熔断与重试参数
type ResilientOptions struct {
	Name            string
	MaxFailures     int
	Interval        time.Duration
	OpenTimeout     time.Duration
	MaxRetries      int
	InitialInterval time.Duration
}

// ResilientGateway 为下游网关增加熔断与有限重试，只有 ErrNotSent 会被重试
type ResilientGateway struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
	opts ResilientOptions
}

// NewResilientGateway 包装下游网关
func NewResilientGateway(next Sender, opts ResilientOptions) *ResilientGateway {
	if opts.Name == "" {
		opts.Name = "sms"
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 200 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	maxFailures := uint32(opts.MaxFailures)
	st := gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Interval:    opts.Interval,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// 单个号码被拒绝说明网关可用，不计入熔断
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrGatewayRejected)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnw("sms_breaker_state_changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &ResilientGateway{next: next, cb: gobreaker.NewCircuitBreaker(st), opts: opts}
}

// Send 通过熔断器发送，未送达网关的请求按指数退避重试，受 ctx 截止时间约束
func (g *ResilientGateway) Send(ctx context.Context, phone, code, template string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.opts.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.opts.MaxRetries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		_, err := g.cb.Execute(func() (interface{}, error) {
			return nil, g.next.Send(ctx, phone, code, template)
		})
		if err == nil || errors.Is(err, ErrNotSent) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if err != nil {
		metrics.SMSDispatch.WithLabelValues("failure").Inc()
		logger.Warnw("sms_dispatch_failed",
			"phone", logger.MaskPhone(phone),
			"template", template,
			"attempts", attempt,
			"error", err,
		)
		return err
	}
	metrics.SMSDispatch.WithLabelValues("success").Inc()
	return nil
}

// State 当前熔断状态
func (g *ResilientGateway) State() gobreaker.State {
	return g.cb.State()
}
