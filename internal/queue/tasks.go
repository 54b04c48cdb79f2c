package queue

import (
	"encoding/json"
	"time"

	"github.com/otp-auth/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskRetentionPrune 失败记录与验证码清理任务
	TaskRetentionPrune = constants.TaskRetentionPrune
)

// RetentionPrunePayload 清理任务载荷
type RetentionPrunePayload struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

// NewRetentionPruneTask 创建清理任务
func NewRetentionPruneTask(payload RetentionPrunePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRetentionPrune, body), nil
}
