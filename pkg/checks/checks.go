// Package checks 定义采集周期内各检查分组的调用契约
//
// 分组按固定顺序执行：system → legacy → event → resource → metrics，
// 之后才是 checksd 包中的可插拔检查。每个检查都有独立的失败边界。
package checks

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/host-collector/pkg/payload"
)

// Reserved keys shared between legacy bridges and the execution engine.
const (
	DogstreamEventsKey = "dogstreamEvents"
	DogstreamSource    = "dogstream"
)

// SystemResult 系统检查结果：Fields 平铺到载荷顶层，Metrics 追加到 metrics
type SystemResult struct {
	Fields  map[string]any
	Metrics []payload.Metric
}

// Empty reports whether the probe had no data this cycle.
func (r SystemResult) Empty() bool { return len(r.Fields) == 0 && len(r.Metrics) == 0 }

// SystemCheck is one OS specific probe.
type SystemCheck interface {
	Name() string
	Check(ctx context.Context) (SystemResult, error)
}

// LegacyCheck 旧版桥接检查，返回平铺到顶层的字段，nil 表示本周期无数据
type LegacyCheck interface {
	Name() string
	Check(ctx context.Context) (map[string]any, error)
}

// EventCheck produces events stored under events[Key()].
type EventCheck interface {
	Key() string
	Check(ctx context.Context) ([]payload.Event, error)
}

// ResourceCheck samples into an internal buffer that PopSnapshots drains.
type ResourceCheck interface {
	Key() string
	Check(ctx context.Context) error
	PopSnapshots() []any
	FormatVersion() int
	// DescribeFormatIfNeeded returns the format description once, nil afterwards.
	DescribeFormatIfNeeded() any
}

// MetricsCheck 仅产出指标的自定义检查
type MetricsCheck interface {
	Name() string
	Check(ctx context.Context) ([]payload.Metric, error)
}

// PanicError 检查执行过程中发生的 panic
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Safe runs fn and converts a panic into a *PanicError.
func Safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
