package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OTPIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_issued_total",
		Help: "OTP codes issued, by purpose",
	}, []string{"purpose"})

	OTPVerify = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_verify_total",
		Help: "OTP verification attempts, by result",
	}, []string{"result"})

	ThrottleDenied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "throttle_denied_total",
		Help: "Requests rejected by the failed-attempt guard, by category",
	}, []string{"category"})

	SMSDispatch = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sms_dispatch_total",
		Help: "SMS gateway dispatch outcomes",
	}, []string{"result"})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the per-route rate limiter",
	}, []string{"rule"})
)

var registerOnce sync.Once

// Init 注册全部指标，可重复调用
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(OTPIssued, OTPVerify, ThrottleDenied, SMSDispatch, RateLimited)
	})
}

// Handler 返回 Prometheus 抓取端点
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}
