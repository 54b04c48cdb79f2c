package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务，同时按周期投递清理任务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.Container != nil && s.consumer.QueueClient != nil && s.consumer.RetentionService != nil {
		go s.runRetentionEnqueueLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runRetentionEnqueueLoop(ctx context.Context) {
	interval := s.consumer.RetentionService.Settings().PruneInterval
	runOnce := func() {
		payload := queue.RetentionPrunePayload{ScheduledAt: time.Now()}
		if err := s.consumer.QueueClient.EnqueueRetentionPrune(payload, interval); err != nil {
			logger.Warnw("worker_retention_enqueue_failed", "error", err)
		}
	}
	runEvery(ctx, interval, runOnce)
}

// RetentionLoop 队列未启用时在进程内周期执行清理
type RetentionLoop struct {
	consumer *Consumer
	mu       sync.Mutex
	cancel   context.CancelFunc
}

// NewRetentionLoop 创建进程内清理服务
func NewRetentionLoop(consumer *Consumer) (*RetentionLoop, error) {
	if consumer == nil || consumer.Container == nil || consumer.RetentionService == nil {
		return nil, errors.New("retention service is nil")
	}
	return &RetentionLoop{consumer: consumer}, nil
}

// Name 服务名称
func (l *RetentionLoop) Name() string {
	return "retention"
}

// Start 阻塞运行直到 ctx 结束或 Stop 被调用
func (l *RetentionLoop) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()
	defer cancel()
	svc := l.consumer.RetentionService
	runEvery(ctx, svc.Settings().PruneInterval, func() {
		if _, err := svc.Prune(ctx); err != nil {
			logger.Warnw("worker_retention_loop_prune_failed", "error", err)
		}
	})
	return nil
}

// Stop 停止服务
func (l *RetentionLoop) Stop(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	return nil
}

func runEvery(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = time.Hour
	}
	fn()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
