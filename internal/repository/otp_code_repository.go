package repository

import (
	"errors"
	"time"

	"github.com/otp-auth/internal/models"

	"gorm.io/gorm"
)

// OTPCodeRepository 短信验证码数据访问接口
type OTPCodeRepository interface {
	Replace(code *models.OTPCode) error
	Consume(phone, code string, now time.Time) (bool, error)
	GetLatest(phone string) (*models.OTPCode, error)
	CountByPhone(phone string) (int64, error)
	DeleteStale(before time.Time) (int64, error)
}

// GormOTPCodeRepository GORM 实现
type GormOTPCodeRepository struct {
	db *gorm.DB
}

// NewOTPCodeRepository 创建验证码仓库
func NewOTPCodeRepository(db *gorm.DB) *GormOTPCodeRepository {
	return &GormOTPCodeRepository{db: db}
}

// Replace 在同一事务内删除手机号的全部旧验证码并写入新记录
func (r *GormOTPCodeRepository) Replace(code *models.OTPCode) error {
	if code == nil {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := lockPhone(tx, code.Phone); err != nil {
			return err
		}
		if err := tx.Where("phone = ?", code.Phone).Delete(&models.OTPCode{}).Error; err != nil {
			return err
		}
		return tx.Create(code).Error
	})
}

// Consume 原子地将匹配且有效的验证码标记为已使用，返回是否成功
func (r *GormOTPCodeRepository) Consume(phone, code string, now time.Time) (bool, error) {
	result := r.db.Model(&models.OTPCode{}).
		Where("phone = ? AND code = ? AND is_used = ? AND expires_at > ?", phone, code, false, now).
		Updates(map[string]interface{}{
			"is_used": true,
			"used_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GetLatest 获取手机号最新的验证码记录
func (r *GormOTPCodeRepository) GetLatest(phone string) (*models.OTPCode, error) {
	var record models.OTPCode
	if err := r.db.Where("phone = ?", phone).Order("id desc").First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// CountByPhone 统计手机号的验证码记录数
func (r *GormOTPCodeRepository) CountByPhone(phone string) (int64, error) {
	var count int64
	err := r.db.Model(&models.OTPCode{}).Where("phone = ?", phone).Count(&count).Error
	return count, err
}

// DeleteStale 删除已使用或在 before 之前过期的验证码
func (r *GormOTPCodeRepository) DeleteStale(before time.Time) (int64, error) {
	result := r.db.Where("is_used = ? OR expires_at < ?", true, before).Delete(&models.OTPCode{})
	return result.RowsAffected, result.Error
}
