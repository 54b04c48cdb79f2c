package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultKavenegarBaseURL = "https://api.kavenegar.com"

var (
	// ErrGatewayRejected 网关明确拒绝请求（不重试）
	ErrGatewayRejected = errors.New("sms gateway rejected request")
	// ErrNotSent 请求未到达网关，可以安全重试
	ErrNotSent = errors.New("sms request not sent")
)

// KavenegarGateway 基于 Kavenegar verify/lookup 接口发送模板验证码
type KavenegarGateway struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewKavenegarGateway 创建 Kavenegar 网关
func NewKavenegarGateway(apiKey, baseURL string, timeout time.Duration) *KavenegarGateway {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultKavenegarBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KavenegarGateway{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type kavenegarResponse struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
}

// Send 发送验证码短信
func (g *KavenegarGateway) Send(ctx context.Context, phone, code, template string) error {
	if g.apiKey == "" {
		return backoff.Permanent(fmt.Errorf("%w: api key is empty", ErrGatewayRejected))
	}

	form := url.Values{}
	form.Set("receptor", phone)
	form.Set("token", code)
	form.Set("template", template)
	endpoint := fmt.Sprintf("%s/v1/%s/verify/lookup.json", g.baseURL, url.PathEscape(g.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build kavenegar request failed: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if isDialError(err) {
			return fmt.Errorf("%w: %v", ErrNotSent, err)
		}
		// 请求可能已被网关受理，重发会导致用户收到重复短信
		return backoff.Permanent(fmt.Errorf("kavenegar request failed: %w", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 500 {
		return backoff.Permanent(fmt.Errorf("kavenegar returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		var parsed kavenegarResponse
		_ = json.Unmarshal(body, &parsed)
		return backoff.Permanent(fmt.Errorf("%w: status %d %s", ErrGatewayRejected, resp.StatusCode, parsed.Return.Message))
	}

	var parsed kavenegarResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return backoff.Permanent(fmt.Errorf("decode kavenegar response failed: %w", err))
	}
	if parsed.Return.Status != http.StatusOK {
		return backoff.Permanent(fmt.Errorf("%w: status %d %s", ErrGatewayRejected, parsed.Return.Status, parsed.Return.Message))
	}
	return nil
}

// isDialError 连接未建立时请求必然没有发出
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
