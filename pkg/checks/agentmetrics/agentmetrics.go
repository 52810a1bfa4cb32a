// Package agentmetrics Agent 自身开销指标：采集耗时、上报耗时、CPU 与内存占用
package agentmetrics

import (
	"context"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/host-collector/pkg/metrics"
	"github.com/host-collector/pkg/payload"
)

const (
	CollectionTime = "agent.collector.collection.time"
	EmitTime       = "agent.emitter.emit.time"
	CPUUsed        = "agent.collector.cpu.used"
	MemoryRSS      = "agent.collector.memory.rss"
	PayloadMetrics = "agent.payload.metrics"
)

// Collector 自身指标生成器，同时更新 Prometheus 指标（prom 可为 nil）
type Collector struct {
	rss   func() (uint64, error)
	prom  *metrics.CollectorMetrics
	clock clockwork.Clock
}

// New rss may be nil to read the current process.
func New(rss func() (uint64, error), prom *metrics.CollectorMetrics, clock clockwork.Clock) *Collector {
	if rss == nil {
		rss = SelfRSS
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{rss: rss, prom: prom, clock: clock}
}

// Check prevEmit 首个周期为 nil；cpuDelta 在 Windows 上为 nil
func (c *Collector) Check(p *payload.Payload, collect time.Duration, prevEmit, cpuDelta *time.Duration) []payload.Metric {
	ts := float64(c.clock.Now().Unix())
	out := []payload.Metric{payload.NewMetric(CollectionTime, ts, collect.Seconds(), nil)}

	if prevEmit != nil {
		out = append(out, payload.NewMetric(EmitTime, ts, prevEmit.Seconds(), nil))
	}
	if cpuDelta != nil && collect > 0 {
		// 采集阶段 CPU 时间占墙钟时间的百分比
		out = append(out, payload.NewMetric(CPUUsed, ts, 100*cpuDelta.Seconds()/collect.Seconds(), nil))
	}
	if rss, err := c.rss(); err == nil {
		out = append(out, payload.NewMetric(MemoryRSS, ts, float64(rss)/(1024*1024), nil))
	}
	count := len(p.Metrics) + len(out) + 1
	out = append(out, payload.NewMetric(PayloadMetrics, ts, float64(count), nil))

	if c.prom != nil {
		c.prom.CollectionDuration.Observe(collect.Seconds())
		c.prom.PayloadMetrics.Set(float64(count))
	}
	return out
}

// SelfRSS 当前进程常驻内存（字节）
func SelfRSS() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	mi, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mi.RSS, nil
}

// SelfCPUTime 当前进程累计 CPU 时间（user + system）
func SelfCPUTime() (time.Duration, error) {
	proc, err := process.NewProcessWithContext(context.Background(), int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	t, err := proc.Times()
	if err != nil {
		return 0, err
	}
	return time.Duration((t.User + t.System) * float64(time.Second)), nil
}
