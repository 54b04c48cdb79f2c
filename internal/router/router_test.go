package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/models"
	"github.com/otp-auth/internal/provider"
	"github.com/otp-auth/internal/sms"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	flowPhone    = "09123456789"
	flowPassword = "StrongPass1!"
)

type routerEnv struct {
	db        *gorm.DB
	container *provider.Container
	gateway   *sms.MemoryGateway
	engine    *gin.Engine
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupRouterEnv(t *testing.T, mutate func(cfg *config.Config)) *routerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.JWT.SecretKey = "router-test-secret"
	cfg.JWT.RotateRefreshTokens = true
	if mutate != nil {
		mutate(cfg)
	}
	gateway := sms.NewMemoryGateway()
	c, err := provider.Build(cfg, db, gateway)
	if err != nil {
		t.Fatalf("build container failed: %v", err)
	}
	return &routerEnv{db: db, container: c, gateway: gateway, engine: SetupRouter(cfg, c)}
}

func (e *routerEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:40000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var resp envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal %s %s response failed: %v body=%s", method, path, err, w.Body.String())
		}
	}
	return w, resp
}

func (e *routerEnv) lastCode(t *testing.T) string {
	t.Helper()
	msg, ok := e.gateway.Last()
	if !ok {
		t.Fatalf("no sms sent")
	}
	return msg.Code
}

func TestRegisterVerifyAndAccountFlow(t *testing.T) {
	env := setupRouterEnv(t, nil)

	w, resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"phone": flowPhone, "password": flowPassword})
	if w.Code != http.StatusCreated || resp.StatusCode != 0 {
		t.Fatalf("register: status=%d body=%s", w.Code, w.Body.String())
	}

	w, resp = env.do(t, http.MethodPost, "/api/v1/auth/verify-otp", "", gin.H{"phone": flowPhone, "code": env.lastCode(t)})
	if w.Code != http.StatusOK {
		t.Fatalf("verify: status=%d body=%s", w.Code, w.Body.String())
	}
	var tokens struct {
		Access     string `json:"access"`
		Refresh    string `json:"refresh"`
		IsVerified bool   `json:"is_verified"`
	}
	if err := json.Unmarshal(resp.Data, &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	if tokens.Access == "" || tokens.Refresh == "" || !tokens.IsVerified {
		t.Fatalf("unexpected verify payload: %s", string(resp.Data))
	}

	w, resp = env.do(t, http.MethodGet, "/api/v1/users/me", tokens.Access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status=%d body=%s", w.Code, w.Body.String())
	}
	var me struct {
		ID    uint   `json:"id"`
		Phone string `json:"phone"`
	}
	if err := json.Unmarshal(resp.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Phone != flowPhone {
		t.Fatalf("unexpected profile: %s", string(resp.Data))
	}

	w, resp = env.do(t, http.MethodGet, "/api/v1/users/me/login-logs", tokens.Access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login logs: status=%d body=%s", w.Code, w.Body.String())
	}
	var logs []struct {
		Stage  string `json:"stage"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Data, &logs); err != nil {
		t.Fatalf("decode login logs: %v", err)
	}
	if len(logs) == 0 || logs[0].Stage != "otp" || logs[0].Status != "success" {
		t.Fatalf("latest login log should be the otp success: %s", string(resp.Data))
	}

	// 普通用户无权查看他人
	w, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", me.ID), tokens.Access, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-staff lookup: status want 403 got %d", w.Code)
	}

	w, _ = env.do(t, http.MethodPost, "/api/v1/auth/jwt/verify", "", gin.H{"token": tokens.Access})
	if w.Code != http.StatusOK {
		t.Fatalf("jwt verify: status=%d body=%s", w.Code, w.Body.String())
	}

	w, resp = env.do(t, http.MethodPost, "/api/v1/auth/jwt/refresh", "", gin.H{"refresh": tokens.Refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: status=%d body=%s", w.Code, w.Body.String())
	}
	// 轮换后旧刷新令牌失效
	w, _ = env.do(t, http.MethodPost, "/api/v1/auth/jwt/refresh", "", gin.H{"refresh": tokens.Refresh})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh: status want 401 got %d", w.Code)
	}

	w, _ = env.do(t, http.MethodPut, "/api/v1/users/me/change-password", tokens.Access, gin.H{
		"old_password": flowPassword,
		"new_password": "EvenStronger2@",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("change password: status=%d body=%s", w.Code, w.Body.String())
	}
	w, _ = env.do(t, http.MethodGet, "/api/v1/users/me", tokens.Access, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("token after password change: status want 401 got %d", w.Code)
	}
}

func TestLoginLockoutReturns429(t *testing.T) {
	env := setupRouterEnv(t, nil)
	if w, _ := env.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"phone": flowPhone, "password": flowPassword}); w.Code != http.StatusCreated {
		t.Fatalf("register: status=%d", w.Code)
	}

	for i := 0; i < 4; i++ {
		w, resp := env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"phone": flowPhone, "password": "WrongPass1!"})
		if w.Code != http.StatusBadRequest || resp.StatusCode != 400 {
			t.Fatalf("attempt %d: status=%d body=%s", i+1, w.Code, w.Body.String())
		}
	}
	w, resp := env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"phone": flowPhone, "password": flowPassword})
	if w.Code != http.StatusTooManyRequests || resp.StatusCode != 429 {
		t.Fatalf("locked login: status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("429 should carry Retry-After")
	}
}

func TestAuthValidationErrors(t *testing.T) {
	env := setupRouterEnv(t, nil)

	w, resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"phone": "12345", "password": flowPassword})
	if w.Code != http.StatusBadRequest || resp.StatusCode != 400 {
		t.Fatalf("bad phone: status=%d body=%s", w.Code, w.Body.String())
	}
	var fields struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(resp.Data, &fields); err != nil {
		t.Fatalf("decode field errors: %v", err)
	}
	if _, ok := fields.Errors["phone"]; !ok {
		t.Fatalf("expected phone field error: %s", string(resp.Data))
	}

	w, _ = env.do(t, http.MethodPost, "/api/v1/auth/verify-otp", "", gin.H{"phone": flowPhone, "code": "12ab56"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad code format: status want 400 got %d", w.Code)
	}

	w, _ = env.do(t, http.MethodPost, "/api/v1/auth/verify-otp", "", gin.H{"phone": flowPhone, "code": "123456"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown phone verify: status want 404 got %d", w.Code)
	}
}

func TestLoginUnknownPhoneAsksToRegister(t *testing.T) {
	env := setupRouterEnv(t, nil)
	w, resp := env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"phone": "09350000000", "password": flowPassword})
	if w.Code != http.StatusBadRequest || resp.Msg != "User does not exist. Please register." {
		t.Fatalf("unknown phone login: status=%d body=%s", w.Code, w.Body.String())
	}

	hidden := setupRouterEnv(t, func(cfg *config.Config) { cfg.Security.HideAccountExistence = true })
	w, resp = hidden.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"phone": "09350000000", "password": flowPassword})
	if w.Code != http.StatusBadRequest || resp.Msg != "invalid phone or password" {
		t.Fatalf("hidden account existence: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterDeliveryFailureReturns502(t *testing.T) {
	env := setupRouterEnv(t, nil)
	env.gateway.SetErr(fmt.Errorf("gateway down"))

	w, resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"phone": flowPhone, "password": flowPassword})
	if w.Code != http.StatusBadGateway || resp.StatusCode != 502 {
		t.Fatalf("delivery failure: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestScopedRateLimitOnRegister(t *testing.T) {
	env := setupRouterEnv(t, func(cfg *config.Config) {
		cfg.Security.RateLimit.Register = config.RateRuleConfig{WindowSeconds: 60, MaxRequests: 1}
	})

	if w, _ := env.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"phone": flowPhone, "password": flowPassword}); w.Code != http.StatusCreated {
		t.Fatalf("first register: status=%d", w.Code)
	}
	w, _ := env.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"phone": "09120000000", "password": flowPassword})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second register: status want 429 got %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupRouterEnv(t, func(cfg *config.Config) {
		cfg.Metrics.Enabled = true
	})
	if w, _ := env.do(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health: status=%d", w.Code)
	}

	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: status=%d", w.Code)
	}
}

func TestStaffCanReadOtherUsers(t *testing.T) {
	env := setupRouterEnv(t, nil)

	if w, _ := env.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"phone": flowPhone, "password": flowPassword}); w.Code != http.StatusCreated {
		t.Fatalf("register: status=%d", w.Code)
	}
	member, err := env.container.UserRepo.GetByPhone(flowPhone)
	if err != nil || member == nil {
		t.Fatalf("load member: %v", err)
	}

	staffPhone := "09350000000"
	staff, err := models.EnsureStaffUser(env.db, staffPhone, flowPassword)
	if err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	if err := env.container.RoleManager.AssignUserRoles(staff.ID, true); err != nil {
		t.Fatalf("assign staff roles: %v", err)
	}

	if w, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"phone": staffPhone, "password": flowPassword}); w.Code != http.StatusOK {
		t.Fatalf("staff login: status=%d body=%s", w.Code, w.Body.String())
	}
	w, resp := env.do(t, http.MethodPost, "/api/v1/auth/verify-otp", "", gin.H{"phone": staffPhone, "code": env.lastCode(t)})
	if w.Code != http.StatusOK {
		t.Fatalf("staff verify: status=%d body=%s", w.Code, w.Body.String())
	}
	var tokens struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(resp.Data, &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}

	w, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", member.ID), tokens.Access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("staff lookup: status=%d body=%s", w.Code, w.Body.String())
	}
	w, _ = env.do(t, http.MethodGet, "/api/v1/users/999999", tokens.Access, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing user: status want 404 got %d", w.Code)
	}

	var grants int64
	if err := env.db.Model(&models.AuthzAuditLog{}).Where("target_user_id = ? AND action = ?", member.ID, "role_assign").Count(&grants).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if grants != 1 {
		t.Fatalf("expected registration role grant in audit trail, got %d", grants)
	}
}
