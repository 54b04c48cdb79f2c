package repository

import (
	"time"

	"github.com/otp-auth/internal/models"

	"gorm.io/gorm"
)

// FailedAttemptRepository 失败尝试数据访问接口
type FailedAttemptRepository interface {
	Create(attempt *models.FailedAttempt) error
	CountByPhoneSince(phone, attemptType string, since time.Time) (int64, error)
	CountByIPSince(ip, attemptType string, since time.Time) (int64, error)
	DeleteBefore(before time.Time) (int64, error)
}

// GormFailedAttemptRepository GORM 实现
type GormFailedAttemptRepository struct {
	db *gorm.DB
}

// NewFailedAttemptRepository 创建失败尝试仓库
func NewFailedAttemptRepository(db *gorm.DB) *GormFailedAttemptRepository {
	return &GormFailedAttemptRepository{db: db}
}

// Create 追加一条失败记录
func (r *GormFailedAttemptRepository) Create(attempt *models.FailedAttempt) error {
	return r.db.Create(attempt).Error
}

// CountByPhoneSince 统计手机号在 since 之后（含）的失败次数
func (r *GormFailedAttemptRepository) CountByPhoneSince(phone, attemptType string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.FailedAttempt{}).
		Where("phone = ? AND attempt_type = ? AND created_at >= ?", phone, attemptType, since).
		Count(&count).Error
	return count, err
}

// CountByIPSince 统计 IP 在 since 之后（含）的失败次数
func (r *GormFailedAttemptRepository) CountByIPSince(ip, attemptType string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.FailedAttempt{}).
		Where("ip_address = ? AND attempt_type = ? AND created_at >= ?", ip, attemptType, since).
		Count(&count).Error
	return count, err
}

// DeleteBefore 清理 before 之前的失败记录
func (r *GormFailedAttemptRepository) DeleteBefore(before time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", before).Delete(&models.FailedAttempt{})
	return result.RowsAffected, result.Error
}
