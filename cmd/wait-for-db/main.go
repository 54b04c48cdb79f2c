package main

import (
	"context"
	"os"
	"time"

	"github.com/otp-auth/internal/config"
	"github.com/otp-auth/internal/logger"
	"github.com/otp-auth/internal/models"

	"github.com/cenkalti/backoff/v4"
	gormlogger "gorm.io/gorm/logger"
)

// 容器启动时先于 server 运行，数据库可连接后退出码为 0
func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()

	timeout := time.Duration(cfg.Database.WaitTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = timeout

	attempt := 0
	op := func() error {
		attempt++
		db, err := models.Open(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}, gormlogger.Silent)
		if err != nil {
			return err
		}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		defer pingCancel()
		return models.Ping(pingCtx, db)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warnw("wait_for_db_retry", "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		logger.Errorw("wait_for_db_gave_up", "driver", cfg.Database.Driver, "attempts", attempt, "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Infow("wait_for_db_ready", "driver", cfg.Database.Driver, "attempts", attempt)
}
