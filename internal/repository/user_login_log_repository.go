package repository

import (
	"github.com/otp-auth/internal/models"

	"gorm.io/gorm"
)

// UserLoginLogRepository 用户登录日志数据访问接口
type UserLoginLogRepository interface {
	Create(log *models.UserLoginLog) error
	ListRecentByUser(userID uint, limit int) ([]models.UserLoginLog, error)
	DeleteByUser(userID uint) error
}

// GormUserLoginLogRepository GORM 实现
type GormUserLoginLogRepository struct {
	db *gorm.DB
}

// NewUserLoginLogRepository 创建用户登录日志仓库
func NewUserLoginLogRepository(db *gorm.DB) *GormUserLoginLogRepository {
	return &GormUserLoginLogRepository{db: db}
}

// Create 创建登录日志
func (r *GormUserLoginLogRepository) Create(log *models.UserLoginLog) error {
	if log == nil {
		return nil
	}
	return r.db.Create(log).Error
}

// ListRecentByUser 按时间倒序取用户最近的登录日志
func (r *GormUserLoginLogRepository) ListRecentByUser(userID uint, limit int) ([]models.UserLoginLog, error) {
	var logs []models.UserLoginLog
	err := r.db.Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// DeleteByUser 删除用户的全部登录日志
func (r *GormUserLoginLogRepository) DeleteByUser(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.UserLoginLog{}).Error
}
