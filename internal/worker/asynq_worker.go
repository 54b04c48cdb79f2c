package worker

import (
	"context"
	"encoding/json"

	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/provider"
	"github.com/otp-auth/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskRetentionPrune, c.handleRetentionPrune)
}

func (c *Consumer) handleRetentionPrune(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_retention_prune_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.RetentionPrunePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_retention_prune_unmarshal_failed", "error", err)
			return err
		}
	}
	if c.Container == nil || c.RetentionService == nil {
		logger.Warnw("worker_retention_prune_skip_service_nil")
		return nil
	}
	result, err := c.RetentionService.Prune(ctx)
	if err != nil {
		logger.Warnw("worker_retention_prune_failed", "scheduled_at", payload.ScheduledAt, "error", err)
		return err
	}
	logger.Debugw("worker_retention_prune_done",
		"scheduled_at", payload.ScheduledAt,
		"failed_attempts", result.FailedAttempts,
		"otp_codes", result.OTPCodes,
		"refresh_tokens", result.RefreshTokens,
	)
	return nil
}
