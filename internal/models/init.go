package models

import (
	"errors"
	"strings"

	"github.com/otp-auth/internal/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// EnsureStaffUser 创建或提升工作人员账号，返回最终用户记录
func EnsureStaffUser(db *gorm.DB, phone, password string) (*User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, errors.New("staff phone is required")
	}

	var user User
	err := db.Where("phone = ?", phone).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{"is_staff": true, "is_verified": true, "is_active": true}
		if password != "" {
			hash, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if hashErr != nil {
				return nil, hashErr
			}
			updates["password_hash"] = string(hash)
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
		logger.Infow("staff_user_promoted", "user_id", user.ID, "phone", logger.MaskPhone(phone))
		return &user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if password == "" {
		return nil, errors.New("staff password is required for new account")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user = User{
		Phone:        phone,
		PasswordHash: string(hash),
		IsVerified:   true,
		IsActive:     true,
		IsStaff:      true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	logger.Warnw("staff_user_created", "user_id", user.ID, "phone", logger.MaskPhone(phone))
	return &user, nil
}
