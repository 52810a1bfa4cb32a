// Package checksd 可插拔的多实例检查（checks.d 风格）
package checksd

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/host-collector/pkg/checks"
	"github.com/host-collector/pkg/payload"
	"github.com/host-collector/pkg/status"
)

// Check 可插拔检查契约。Stop 可在任意时刻调用，包括 Run 之前或之后。
type Check interface {
	Name() string
	Run(ctx context.Context) ([]status.InstanceStatus, error)
	// Metrics and Events drain what the last Run produced.
	Metrics() []payload.Metric
	Events() []payload.Event
	Stop()
}

// InstanceFunc checks one configured instance, reporting through the AgentCheck helpers.
type InstanceFunc func(ctx context.Context, c *AgentCheck, instance map[string]any) error

// AgentCheck 检查基类：指标/事件缓冲、实例状态、停止标记
type AgentCheck struct {
	name       string
	initConfig map[string]any
	instances  []map[string]any
	check      InstanceFunc
	clock      clockwork.Clock

	stopped atomic.Bool

	mu       sync.Mutex
	metrics  []payload.Metric
	counters map[string]*payload.Metric
	events   []payload.Event
	warnings []string
}

func NewAgentCheck(name string, initConfig map[string]any, instances []map[string]any, clock clockwork.Clock, fn InstanceFunc) *AgentCheck {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AgentCheck{
		name:       name,
		initConfig: initConfig,
		instances:  instances,
		check:      fn,
		clock:      clock,
		counters:   map[string]*payload.Metric{},
	}
}

func (c *AgentCheck) Name() string               { return c.name }
func (c *AgentCheck) InitConfig() map[string]any { return c.initConfig }
func (c *AgentCheck) Stop()                      { c.stopped.Store(true) }
func (c *AgentCheck) Stopped() bool              { return c.stopped.Load() }

// Run 依次检查每个实例；单个实例失败（包括 panic）只影响它自己的状态
func (c *AgentCheck) Run(ctx context.Context) ([]status.InstanceStatus, error) {
	statuses := make([]status.InstanceStatus, 0, len(c.instances))
	for i, inst := range c.instances {
		if c.Stopped() {
			break
		}
		c.mu.Lock()
		c.warnings = nil
		c.mu.Unlock()

		err := checks.Safe(func() error { return c.check(ctx, c, inst) })

		c.mu.Lock()
		st := status.InstanceStatus{InstanceID: i, Status: status.InstanceOK, Warnings: c.warnings}
		c.mu.Unlock()
		switch {
		case err != nil:
			st.Status = status.InstanceError
			st.Error = err.Error()
		case len(st.Warnings) > 0:
			st.Status = status.InstanceWarning
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (c *AgentCheck) now() float64 { return float64(c.clock.Now().Unix()) }

func tagAttrs(tags []string) map[string]any {
	if len(tags) == 0 {
		return nil
	}
	return map[string]any{"tags": tags}
}

// Gauge 记录瞬时值
func (c *AgentCheck) Gauge(name string, value float64, tags []string) {
	m := payload.NewMetric(name, c.now(), value, tagAttrs(tags))
	c.mu.Lock()
	c.metrics = append(c.metrics, m)
	c.mu.Unlock()
}

// Increment 累加计数，Metrics() 时以一条指标输出
func (c *AgentCheck) Increment(name string, delta float64, tags []string) {
	key := name
	for _, t := range tags {
		key += "|" + t
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.counters[key]; ok {
		m.Value += delta
		m.Timestamp = c.now()
		return
	}
	m := payload.NewMetric(name, c.now(), delta, tagAttrs(tags))
	c.counters[key] = &m
}

// Event 记录一条事件
func (c *AgentCheck) Event(ev payload.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

// Warning 为当前实例记录告警，实例状态变为 WARNING
func (c *AgentCheck) Warning(msg string) {
	c.mu.Lock()
	c.warnings = append(c.warnings, msg)
	c.mu.Unlock()
}

func (c *AgentCheck) Metrics() []payload.Metric {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.metrics
	keys := make([]string, 0, len(c.counters))
	for k := range c.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, *c.counters[k])
	}
	c.metrics = nil
	c.counters = map[string]*payload.Metric{}
	return out
}

func (c *AgentCheck) Events() []payload.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}
