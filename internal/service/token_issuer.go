package service

import (
	"strings"
	"time"

	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/models"
	"github.com/otp-auth/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenPair 访问令牌与刷新令牌
type TokenPair struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// TokenClaims 用户 JWT 声明
type TokenClaims struct {
	UserID       uint   `json:"user_id"`
	Phone        string `json:"phone"`
	TokenVersion uint64 `json:"token_version"`
	TokenType    string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenIssuer 会话令牌能力
type TokenIssuer interface {
	Issue(user *models.User) (*TokenPair, error)
	Refresh(refresh string) (*TokenPair, error)
	Verify(token string) error
	ParseAccess(token string) (*TokenClaims, error)
	RevokeUser(userID uint) error
}

// TokenSettings 令牌参数
type TokenSettings struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Rotate     bool
}

// TokenSettingsFromConfig 从配置解析令牌参数
func TokenSettingsFromConfig(cfg config.JWTConfig) TokenSettings {
	settings := TokenSettings{
		Secret:     []byte(cfg.SecretKey),
		AccessTTL:  time.Duration(cfg.AccessExpireMinutes) * time.Minute,
		RefreshTTL: time.Duration(cfg.RefreshExpireHours) * time.Hour,
		Rotate:     cfg.RotateRefreshTokens,
	}
	if settings.AccessTTL <= 0 {
		settings.AccessTTL = time.Hour
	}
	if settings.RefreshTTL <= 0 {
		settings.RefreshTTL = 24 * time.Hour
	}
	return settings
}

// JWTTokenIssuer HS256 令牌实现，刷新令牌 jti 登记在数据库中
type JWTTokenIssuer struct {
	settings  TokenSettings
	userRepo  repository.UserRepository
	tokenRepo repository.RefreshTokenRepository
	now       func() time.Time
}

// NewJWTTokenIssuer 创建令牌签发器
func NewJWTTokenIssuer(settings TokenSettings, userRepo repository.UserRepository, tokenRepo repository.RefreshTokenRepository) *JWTTokenIssuer {
	return &JWTTokenIssuer{settings: settings, userRepo: userRepo, tokenRepo: tokenRepo, now: time.Now}
}

// Issue 签发新的令牌对
func (s *JWTTokenIssuer) Issue(user *models.User) (*TokenPair, error) {
	if user == nil || user.ID == 0 {
		return nil, ErrNotFound
	}
	return s.issueWithJTI(user, uuid.NewString())
}

func (s *JWTTokenIssuer) issueWithJTI(user *models.User, jti string) (*TokenPair, error) {
	now := s.now()
	access, accessExp, err := s.sign(user, tokenTypeAccess, uuid.NewString(), now, s.settings.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.sign(user, tokenTypeRefresh, jti, now, s.settings.RefreshTTL)
	if err != nil {
		return nil, err
	}
	if err := s.tokenRepo.Create(&models.RefreshToken{
		ID:        jti,
		UserID:    user.ID,
		ExpiresAt: refreshExp,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh, AccessExpiresAt: accessExp, RefreshExpiresAt: refreshExp}, nil
}

// Refresh 使用刷新令牌换取新令牌；开启轮换时旧刷新令牌被条件吊销，重复使用失败
func (s *JWTTokenIssuer) Refresh(refresh string) (*TokenPair, error) {
	claims, err := s.parse(refresh, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	now := s.now()
	record, err := s.tokenRepo.GetActive(claims.ID, now)
	if err != nil {
		return nil, err
	}
	if record == nil || record.UserID != claims.UserID {
		return nil, ErrTokenInvalid
	}
	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || user.TokenVersion != claims.TokenVersion {
		return nil, ErrTokenInvalid
	}

	if !s.settings.Rotate {
		access, accessExp, err := s.sign(user, tokenTypeAccess, uuid.NewString(), now, s.settings.AccessTTL)
		if err != nil {
			return nil, err
		}
		return &TokenPair{Access: access, Refresh: refresh, AccessExpiresAt: accessExp, RefreshExpiresAt: record.ExpiresAt}, nil
	}

	newJTI := uuid.NewString()
	revoked, err := s.tokenRepo.Revoke(claims.ID, newJTI, now)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, ErrTokenInvalid
	}
	return s.issueWithJTI(user, newJTI)
}

// Verify 校验任意类型令牌的签名、有效期与吊销状态
func (s *JWTTokenIssuer) Verify(token string) error {
	claims, err := s.parse(token, "")
	if err != nil {
		return err
	}
	if claims.TokenType == tokenTypeRefresh {
		record, err := s.tokenRepo.GetActive(claims.ID, s.now())
		if err != nil {
			return err
		}
		if record == nil {
			return ErrTokenInvalid
		}
	}
	return nil
}

// ParseAccess 解析访问令牌
func (s *JWTTokenIssuer) ParseAccess(token string) (*TokenClaims, error) {
	return s.parse(token, tokenTypeAccess)
}

// RevokeUser 吊销用户全部刷新令牌
func (s *JWTTokenIssuer) RevokeUser(userID uint) error {
	return s.tokenRepo.RevokeAllForUser(userID, s.now())
}

func (s *JWTTokenIssuer) sign(user *models.User, tokenType, jti string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := TokenClaims{
		UserID:       user.ID,
		Phone:        user.Phone,
		TokenVersion: user.TokenVersion,
		TokenType:    tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.settings.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *JWTTokenIssuer) parse(token, wantType string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	claims := &TokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.settings.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if wantType != "" && claims.TokenType != wantType {
		return nil, ErrTokenInvalid
	}
	if claims.UserID == 0 || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
