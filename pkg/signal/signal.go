package signal

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout 优雅关闭的最长等待时间
const DefaultShutdownTimeout = 5 * time.Second

// ErrShutdownTimeout 关闭函数未在超时时间内返回
var ErrShutdownTimeout = errors.New("shutdown timed out")

// WaitForShutdown 监听退出信号（SIGINT/SIGTERM），执行优雅关闭
func WaitForShutdown(logger *zap.Logger, shutdownFunc func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Wait(ctx, logger, DefaultShutdownTimeout, shutdownFunc)
}

// Wait 阻塞直到 ctx 结束，然后在 timeout 内执行 shutdownFunc
func Wait(ctx context.Context, logger *zap.Logger, timeout time.Duration, shutdownFunc func(ctx context.Context) error) error {
	<-ctx.Done()
	logger.Info("received shutdown signal", zap.NamedError("cause", context.Cause(ctx)))

	// 超时控制关闭逻辑
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- shutdownFunc(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown failed", zap.Error(err))
			return err
		}
		logger.Info("shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded", zap.Duration("timeout", timeout))
		return ErrShutdownTimeout
	}
}
