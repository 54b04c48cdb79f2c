package service

import (
	"strings"
	"time"

	"github.com/otp-auth/internal/constants"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/models"
	"github.com/otp-auth/internal/repository"
)

// UserLoginLogService 用户登录日志服务
type UserLoginLogService struct {
	repo repository.UserLoginLogRepository
}

// NewUserLoginLogService 创建用户登录日志服务
func NewUserLoginLogService(repo repository.UserLoginLogRepository) *UserLoginLogService {
	return &UserLoginLogService{repo: repo}
}

// RecordUserLoginInput 登录日志记录输入
type RecordUserLoginInput struct {
	UserID     uint
	Phone      string
	Stage      string
	Status     string
	FailReason string
	Meta       RequestMeta
}

// Record 记录登录行为，写入失败只记日志不影响主流程
func (s *UserLoginLogService) Record(input RecordUserLoginInput) {
	if s == nil || s.repo == nil {
		return
	}

	status := strings.ToLower(strings.TrimSpace(input.Status))
	if status != constants.LoginLogStatusSuccess {
		status = constants.LoginLogStatusFailed
	}
	failReason := strings.ToLower(strings.TrimSpace(input.FailReason))
	if status == constants.LoginLogStatusSuccess {
		failReason = ""
	} else if failReason == "" {
		failReason = constants.LoginLogFailReasonInternalError
	}

	err := s.repo.Create(&models.UserLoginLog{
		UserID:     input.UserID,
		Phone:      strings.TrimSpace(input.Phone),
		Stage:      input.Stage,
		Status:     status,
		FailReason: failReason,
		ClientIP:   strings.TrimSpace(input.Meta.ClientIP),
		UserAgent:  strings.TrimSpace(input.Meta.UserAgent),
		RequestID:  strings.TrimSpace(input.Meta.RequestID),
		CreatedAt:  time.Now(),
	})
	if err != nil {
		logger.Warnw("user_login_log_record_failed", "user_id", input.UserID, "error", err)
	}
}

// RecentLoginLogLimit 用户侧可见的登录日志条数
const RecentLoginLogLimit = 20

// ListRecent 用户侧查询自己最近的登录日志
func (s *UserLoginLogService) ListRecent(userID uint) ([]models.UserLoginLog, error) {
	if s == nil || s.repo == nil || userID == 0 {
		return []models.UserLoginLog{}, nil
	}
	return s.repo.ListRecentByUser(userID, RecentLoginLogLimit)
}
