package registers

import "context"

// Agent 顶层调度接口（封装采集器的生命周期管理）
type Agent interface {
	Start(ctx context.Context)          // 启动采集（定时器循环）
	Shutdown(ctx context.Context) error // 优雅停止
}

// Runner 单周期采集器（collector.Collector 实现）
type Runner interface {
	Run(ctx context.Context, startEvent bool) // 执行一个完整周期
	Stop()                                    // 协作式停止
	State() string
}
