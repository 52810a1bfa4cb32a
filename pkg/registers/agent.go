package registers

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// AgentImpl 按固定间隔驱动 Runner，同一时刻只有一个周期在执行
type AgentImpl struct {
	runner     Runner
	interval   time.Duration
	startEvent bool
	clock      clockwork.Clock
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewAgent 创建调度器
func NewAgent(runner Runner, interval time.Duration, startEvent bool, clock clockwork.Clock, logger *zap.Logger) *AgentImpl {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AgentImpl{
		runner:     runner,
		interval:   interval,
		startEvent: startEvent,
		clock:      clock,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start 立即执行首个周期，之后每个 interval 执行一次
func (a *AgentImpl) Start(ctx context.Context) {
	a.once.Do(func() {
		a.logger.Debug("collector scheduler started", zap.Duration("interval", a.interval))
		go a.loop(ctx)
	})
}

func (a *AgentImpl) loop(ctx context.Context) {
	defer close(a.done)

	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	a.runner.Run(ctx, a.startEvent)
	for {
		select {
		case <-ticker.Chan():
			a.runner.Run(ctx, a.startEvent)
		case <-ctx.Done(): // 外部关闭信号
			a.logger.Info("collector scheduler stopped by external context", zap.Error(ctx.Err()))
			return
		case <-a.ctx.Done(): // 主动调用 Shutdown
			a.logger.Info("collector scheduler stopped by internal shutdown")
			return
		}
	}
}

// Shutdown 先请求采集器协作停止，再等待调度协程退出
func (a *AgentImpl) Shutdown(ctx context.Context) error {
	a.logger.Info("starting to shutdown collector scheduler", zap.String("state", a.runner.State()))
	a.runner.Stop()
	a.cancel()

	// 从未启动时 done 在此关闭
	a.once.Do(func() { close(a.done) })

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
