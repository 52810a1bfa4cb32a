// Package collector 采集周期编排：构建载荷 → 执行各组检查 → 自身指标 → 上报 → 持久化状态
package collector

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/host-collector/pkg/checks"
	"github.com/host-collector/pkg/checks/system"
	"github.com/host-collector/pkg/checksd"
	"github.com/host-collector/pkg/config"
	"github.com/host-collector/pkg/emitter"
	"github.com/host-collector/pkg/metrics"
	"github.com/host-collector/pkg/payload"
	"github.com/host-collector/pkg/status"
)

// 生命周期状态
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateStopped  = "stopped"

	evStart  = "start"
	evFinish = "finish"
	evStop   = "stop"
	evHalt   = "halt"
)

// 前 5 个周期以及之后每 10 个周期输出一次 info 级别汇总
const (
	flushLoggingInitial = 5
	flushLoggingPeriod  = 10
)

// HostInfo 主机身份与元数据来源
type HostInfo interface {
	Hostname(ctx context.Context) string
	Metadata(ctx context.Context) map[string]any
	SystemStats(ctx context.Context) map[string]any
}

// SelfMetrics produces the agent's own overhead metrics. prevEmit is the emit
// duration of the previous cycle, cpuDelta is nil where it cannot be measured.
type SelfMetrics interface {
	Check(p *payload.Payload, collect time.Duration, prevEmit, cpuDelta *time.Duration) []payload.Metric
}

// Options 采集器依赖，除 Host 外均可为空
type Options struct {
	Agent        config.AgentConfig
	StartupStats map[string]any
	Host         HostInfo

	System  system.HostCheckSet
	Legacy  []checks.LegacyCheck
	Events  []checks.EventCheck
	Res     []checks.ResourceCheck
	Custom  []checks.MetricsCheck
	ChecksD checksd.LoadResult

	Emitters    []emitter.Emitter
	SelfMetrics SelfMetrics
	Persister   status.Persister
	Metrics     *metrics.CollectorMetrics

	// CPUTime 进程累计 CPU 时间，为空时不产出 cpu 指标
	CPUTime func() (time.Duration, error)
	OS      string
	Clock   clockwork.Clock
	Logger  *zap.Logger
}

// Collector runs one collection cycle at a time. Run is not reentrant; Stop may
// be called from any goroutine.
type Collector struct {
	opts   Options
	clock  clockwork.Clock
	logger *zap.Logger
	state  *fsm.FSM

	mu          sync.Mutex
	initialized []checksd.Check
	initFailed  map[string]checksd.InitFailure

	continueRunning atomic.Bool
	runCount        int
	emitDuration    *time.Duration
	metadataStart   time.Time
	metadataCache   map[string]any
	flushLog        rate.Sometimes
}

// New 创建采集器
func New(opts Options) *Collector {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OS == "" {
		opts.OS = runtime.GOOS
	}
	c := &Collector{
		opts:          opts,
		clock:         opts.Clock,
		logger:        opts.Logger,
		initialized:   opts.ChecksD.Initialized,
		initFailed:    opts.ChecksD.InitFailed,
		metadataStart: opts.Clock.Now(),
		flushLog:      rate.Sometimes{First: flushLoggingInitial, Every: flushLoggingPeriod},
	}
	c.continueRunning.Store(true)
	c.state = fsm.NewFSM(StateIdle,
		fsm.Events{
			{Name: evStart, Src: []string{StateIdle}, Dst: StateRunning},
			{Name: evFinish, Src: []string{StateRunning}, Dst: StateIdle},
			{Name: evStop, Src: []string{StateIdle}, Dst: StateStopped},
			{Name: evStop, Src: []string{StateRunning}, Dst: StateStopping},
			{Name: evHalt, Src: []string{StateStopping}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.logger.Debug("collector state changed", zap.String("from", e.Src), zap.String("to", e.Dst))
			},
		},
	)
	return c
}

// State 当前生命周期状态
func (c *Collector) State() string { return c.state.Current() }

// RunCount 已开始的周期数
func (c *Collector) RunCount() int { return c.runCount }

// SetChecksD replaces the checks.d sets used from the next cycle on.
func (c *Collector) SetChecksD(res checksd.LoadResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = res.Initialized
	c.initFailed = res.InitFailed
}

func (c *Collector) checksD() ([]checksd.Check, map[string]checksd.InitFailure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]checksd.Check(nil), c.initialized...), c.initFailed
}

// Stop 协作式停止：当前周期在下一个检查点返回，不再上报或持久化
func (c *Collector) Stop() {
	c.continueRunning.Store(false)
	if err := c.state.Event(context.Background(), evStop); err != nil {
		c.logger.Debug("collector already stopping", zap.String("state", c.state.Current()))
	}
	initialized, _ := c.checksD()
	for _, chk := range initialized {
		if err := checks.Safe(func() error { chk.Stop(); return nil }); err != nil {
			c.logger.Warn("failed to stop check", zap.String("check", chk.Name()), zap.Error(err))
		}
	}
}

func (c *Collector) running() bool { return c.continueRunning.Load() }

// Run executes one full cycle. startEvent attaches the startup event and the
// startup system stats on the first cycle.
func (c *Collector) Run(ctx context.Context, startEvent bool) {
	if !c.running() {
		return
	}
	if err := c.state.Event(ctx, evStart); err != nil {
		c.logger.Warn("collector not runnable", zap.String("state", c.state.Current()), zap.Error(err))
		return
	}
	defer c.finish()

	timer := c.clock.Now()
	cpuStart, cpuOK := c.cpuTime()
	c.runCount++
	if c.opts.Metrics != nil {
		c.opts.Metrics.Runs.Inc()
	}

	p := c.buildPayload(ctx, startEvent)

	checkStatuses, ok := c.runChecks(ctx, p)
	if !ok {
		c.logger.Info("collector stopped during checks, cycle aborted", zap.Int("run", c.runCount))
		return
	}
	collectDuration := c.clock.Since(timer)

	var cpuDelta *time.Duration
	if cpuOK && c.opts.System.Kind != system.HostWindows {
		if cpuEnd, ok := c.cpuTime(); ok {
			d := cpuEnd - cpuStart
			cpuDelta = &d
		}
	}
	if c.opts.SelfMetrics != nil {
		var self []payload.Metric
		err := checks.Safe(func() error {
			self = c.opts.SelfMetrics.Check(p, collectDuration, c.emitDuration, cpuDelta)
			return nil
		})
		if err != nil {
			c.logger.Error("error computing agent metrics", zap.Error(err))
		} else {
			p.AppendMetrics(self...)
		}
	}

	emitStart := c.clock.Now()
	emitterStatuses := c.emit(ctx, p)
	emitDuration := c.clock.Since(emitStart)
	c.emitDuration = &emitDuration

	c.persist(checkStatuses, emitterStatuses)

	loud := false
	c.flushLog.Do(func() { loud = true })
	fields := []zap.Field{
		zap.Int("run", c.runCount),
		zap.Int("metrics", len(p.Metrics)),
		zap.Int("events", p.Events.Count()),
		zap.Duration("collection_time", collectDuration),
		zap.Duration("emit_time", emitDuration),
	}
	if loud {
		c.logger.Info("finished run", fields...)
		if c.runCount == flushLoggingInitial {
			c.logger.Info("first flushes done, next summaries will be logged periodically",
				zap.Int("every", flushLoggingPeriod))
		}
	} else {
		c.logger.Debug("finished run", fields...)
	}
}

func (c *Collector) finish() {
	ctx := context.Background()
	if err := c.state.Event(ctx, evFinish); err != nil {
		// Stop 在周期中到达
		_ = c.state.Event(ctx, evHalt)
	}
}

func (c *Collector) cpuTime() (time.Duration, bool) {
	if c.opts.CPUTime == nil {
		return 0, false
	}
	d, err := c.opts.CPUTime()
	if err != nil {
		c.logger.Debug("unable to read process cpu time", zap.Error(err))
		return 0, false
	}
	return d, true
}

// buildPayload 载荷骨架：身份字段、首周期启动事件、按间隔附带的元数据
func (c *Collector) buildPayload(ctx context.Context, startEvent bool) *payload.Payload {
	now := c.clock.Now()
	agent := c.opts.Agent

	p := payload.New()
	p.CollectionTimestamp = float64(now.Unix())
	p.OS = c.opts.OS
	p.RuntimeVersion = runtime.Version()
	p.AgentVersion = agent.Version
	p.APIKey = agent.APIKey
	c.hostCall("hostname", func() { p.InternalHostname = c.opts.Host.Hostname(ctx) })
	p.UUID = uuid.NewString()

	first := c.runCount <= 1
	if startEvent && first {
		p.SystemStats = c.opts.StartupStats
		if p.SystemStats == nil {
			p.SystemStats = map[string]any{}
		}
		p.Events.Merge("System", []payload.Event{{
			"api_key":    agent.APIKey,
			"host":       p.InternalHostname,
			"timestamp":  now.Unix(),
			"event_type": "Agent Startup",
			"msg_text":   "Version " + agent.Version,
		}})
	}

	if first || c.shouldSendMetadata(now) {
		c.logger.Debug("attaching host metadata", zap.Int("run", c.runCount))
		c.metadataStart = now
		stats, meta := map[string]any{}, map[string]any{}
		c.hostCall("system_stats", func() { stats = c.opts.Host.SystemStats(ctx) })
		c.hostCall("metadata", func() { meta = c.opts.Host.Metadata(ctx) })
		p.SystemStats, p.Meta = stats, meta
		c.metadataCache = p.Meta
		if agent.Tags != nil {
			p.Tags = append([]string(nil), agent.Tags...)
		}
		if first {
			c.logger.Info("hostnames resolved", zap.Any("meta", p.Meta), zap.String("internal_hostname", p.InternalHostname))
		}
	}
	return p
}

// hostCall 主机信息读取出错时保留调用方的默认值
func (c *Collector) hostCall(what string, fn func()) {
	if err := checks.Safe(func() error { fn(); return nil }); err != nil {
		c.logger.Error("unable to read host info", zap.String("field", what), zap.Error(err))
	}
}

func (c *Collector) shouldSendMetadata(now time.Time) bool {
	return now.Sub(c.metadataStart) >= c.opts.Agent.MetadataInterval
}
