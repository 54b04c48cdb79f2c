package service

import (
	"errors"
	"sync"
	"time"

	"github.com/otp-auth/internal/models"
	"github.com/otp-auth/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore 用户凭据存取能力
type CredentialStore interface {
	CreateUser(phone, password string) (*models.User, error)
	Authenticate(phone, password string) (*models.User, error)
	GetByPhone(phone string) (*models.User, error)
	Exists(phone string) (bool, error)
}

// UserCredentialStore 基于用户仓库与 bcrypt 的凭据存储
type UserCredentialStore struct {
	repo repository.UserRepository
	cost int
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// NewUserCredentialStore 创建凭据存储
func NewUserCredentialStore(repo repository.UserRepository) *UserCredentialStore {
	return &UserCredentialStore{repo: repo, cost: bcrypt.DefaultCost}
}

// CreateUser 创建未验证用户，手机号已存在时返回 ErrDuplicatePhone
func (s *UserCredentialStore) CreateUser(phone, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	user := &models.User{
		Phone:        phone,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicatePhone
		}
		return nil, err
	}
	return user, nil
}

// Authenticate 校验手机号与密码，不匹配、不存在或已停用时返回 nil
func (s *UserCredentialStore) Authenticate(phone, password string) (*models.User, error) {
	user, err := s.repo.GetByPhone(phone)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// 未知手机号也执行一次哈希比较，保持耗时一致
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}
	if !user.IsActive {
		return nil, nil
	}
	return user, nil
}

// GetByPhone 按手机号获取用户，不存在返回 ErrNotFound
func (s *UserCredentialStore) GetByPhone(phone string) (*models.User, error) {
	user, err := s.repo.GetByPhone(phone)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// Exists 手机号是否已注册
func (s *UserCredentialStore) Exists(phone string) (bool, error) {
	user, err := s.repo.GetByPhone(phone)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

func (s *UserCredentialStore) dummy() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("otp-auth-timing-equalizer"), s.cost)
	})
	return dummyHash
}
