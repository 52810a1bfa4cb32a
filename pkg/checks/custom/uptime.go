// Package custom 内置的自定义指标检查
package custom

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"

	"github.com/host-collector/pkg/checks"
	"github.com/host-collector/pkg/payload"
)

// Uptime 上报系统运行时长（秒）
type Uptime struct {
	uptime func(ctx context.Context) (uint64, error)
	clock  clockwork.Clock
}

func NewUptime(uptime func(ctx context.Context) (uint64, error), clock clockwork.Clock) *Uptime {
	if uptime == nil {
		uptime = host.UptimeWithContext
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Uptime{uptime: uptime, clock: clock}
}

func (u *Uptime) Name() string { return "uptime" }

func (u *Uptime) Check(ctx context.Context) ([]payload.Metric, error) {
	secs, err := u.uptime(ctx)
	if err != nil {
		return nil, fmt.Errorf("read uptime: %w", err)
	}
	ts := float64(u.clock.Now().Unix())
	return []payload.Metric{payload.NewMetric("system.uptime", ts, float64(secs), nil)}, nil
}

// RegisterBuiltins 注册内置检查
func RegisterBuiltins(reg *checks.Registry) {
	reg.Register("uptime", func(*zap.Logger) (checks.MetricsCheck, error) {
		return NewUptime(nil, nil), nil
	})
}
