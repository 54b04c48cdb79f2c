package repository

import (
	"errors"
	"time"

	"github.com/otp-auth/internal/models"

	"gorm.io/gorm"
)

// RefreshTokenRepository 刷新令牌数据访问接口
type RefreshTokenRepository interface {
	Create(token *models.RefreshToken) error
	GetActive(id string, now time.Time) (*models.RefreshToken, error)
	Revoke(id, replacedBy string, at time.Time) (bool, error)
	RevokeAllForUser(userID uint, at time.Time) error
	DeleteExpired(before time.Time) (int64, error)
}

// GormRefreshTokenRepository GORM 实现
type GormRefreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository 创建刷新令牌仓库
func NewRefreshTokenRepository(db *gorm.DB) *GormRefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

// Create 登记刷新令牌
func (r *GormRefreshTokenRepository) Create(token *models.RefreshToken) error {
	return r.db.Create(token).Error
}

// GetActive 获取未吊销且未过期的刷新令牌
func (r *GormRefreshTokenRepository) GetActive(id string, now time.Time) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.db.Where("id = ? AND revoked_at IS NULL AND expires_at > ?", id, now).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// Revoke 条件吊销，仅当令牌仍有效时成功
func (r *GormRefreshTokenRepository) Revoke(id, replacedBy string, at time.Time) (bool, error) {
	result := r.db.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]interface{}{
			"revoked_at":  at,
			"replaced_by": replacedBy,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RevokeAllForUser 吊销用户全部刷新令牌
func (r *GormRefreshTokenRepository) RevokeAllForUser(userID uint, at time.Time) error {
	return r.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at).Error
}

// DeleteExpired 清理 before 之前过期的刷新令牌
func (r *GormRefreshTokenRepository) DeleteExpired(before time.Time) (int64, error) {
	result := r.db.Where("expires_at < ?", before).Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}
