package registers

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/host-collector/pkg/checks"
	"github.com/host-collector/pkg/checks/agentmetrics"
	"github.com/host-collector/pkg/checks/custom"
	"github.com/host-collector/pkg/checks/events"
	"github.com/host-collector/pkg/checks/legacy"
	"github.com/host-collector/pkg/checks/resources"
	"github.com/host-collector/pkg/checks/system"
	"github.com/host-collector/pkg/checksd"
	"github.com/host-collector/pkg/collector"
	"github.com/host-collector/pkg/config"
	"github.com/host-collector/pkg/emitter"
	"github.com/host-collector/pkg/metadata"
	"github.com/host-collector/pkg/metrics"
	"github.com/host-collector/pkg/status"
)

// Module 可按配置开关的检查模块
type Module struct {
	Enabled bool
	Name    string
	Add     func(opts *collector.Options)
}

// Runtime InitAgent 的产物，供 HTTP 服务与关闭流程使用
type Runtime struct {
	Registry  *prometheus.Registry
	Collector *collector.Collector
	Agent     Agent
	Status    *status.FileStore
}

// InitAgent 组装采集器并启动调度
//
//	Registry   Prometheus 指标注册器，用于 /metrics
//	Collector  单周期编排器
//	Agent      定时驱动 Collector 的调度器（已启动）
//	Status     最近一次周期状态，用于 /status
func InitAgent(ctx context.Context, enableProcess bool, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	// 1. 初始化Prometheus指标注册器（禁用Go指标）
	promReg := metrics.NewRegistry(enableProcess)
	prom := metrics.NewCollectorMetrics(metrics.NewMetricFactory(metrics.NewPromRegistry(promReg)))

	// 2. 主机身份与元数据
	host := NewHostInfo(cfg.Agent, logger.Named("metadata"))

	// 3. 上报通道
	emitters, err := emitter.FromConfig(cfg.Agent)
	if err != nil {
		return nil, fmt.Errorf("build emitters: %w", err)
	}

	store := status.NewFileStore(cfg.Status.Path)
	opts := collector.Options{
		Agent:        cfg.Agent,
		StartupStats: host.SystemStats(ctx),
		Host:         host,
		System:       system.NewLocalCheckSet(),
		Emitters:     emitters,
		SelfMetrics:  agentmetrics.New(nil, prom, nil),
		Persister:    store,
		Metrics:      prom,
		CPUTime:      agentmetrics.SelfCPUTime,
		Logger:       logger.Named("collector"),
	}

	// 4. 注册检查（统一入口，扩展仅需添加注册代码）
	names := RegisterChecks(&opts, cfg, logger)
	logger.Debug("all enabled checks registered",
		zap.Strings("enabled_checks", names),
		zap.String("host_kind", opts.System.Kind.String()),
		zap.Int("checks_d", len(opts.ChecksD.Initialized)),
		zap.Strings("checks_d_init_failed", opts.ChecksD.FailedNames()),
		zap.Int("emitters", len(emitters)),
	)

	// 5. 启动调度
	c := collector.New(opts)
	agent := NewAgent(c, cfg.Monitor.Interval, cfg.Monitor.StartEvent, nil, logger.Named("scheduler"))
	agent.Start(ctx)
	logger.Info("collector started", zap.Duration("interval", cfg.Monitor.Interval))

	return &Runtime{Registry: promReg, Collector: c, Agent: agent, Status: store}, nil
}

// NewHostInfo 配置启用 EC2 时使用元数据服务，否则仅依赖本机信息
func NewHostInfo(cfg config.AgentConfig, logger *zap.Logger) *metadata.Host {
	var provider metadata.Provider = metadata.NopProvider{}
	if cfg.EC2.Enable {
		provider = metadata.NewEC2(cfg.EC2.Endpoint, cfg.EC2.Timeout, logger)
	}
	resolver := metadata.NewSystemResolver(metadata.InstanceIDFrom(provider))
	return metadata.NewHost(provider, resolver, metadata.HostStats, cfg.Hostname)
}

// RegisterChecks 按配置填充各检查分组，返回已启用模块名
// 新增检查只需在 modules 列表添加一条
func RegisterChecks(opts *collector.Options, cfg *config.Config, logger *zap.Logger) []string {
	mon := cfg.Monitor
	modules := []Module{
		{
			Enabled: mon.Ganglia.Enable,
			Name:    "ganglia",
			Add: func(o *collector.Options) {
				o.Legacy = append(o.Legacy, legacy.NewGanglia(mon.Ganglia.Addr, cfg.Agent.NetworkTimeout))
			},
		},
		{
			Enabled: len(mon.Dogstreams) > 0,
			Name:    "dogstream",
			Add: func(o *collector.Options) {
				o.Legacy = append(o.Legacy, legacy.NewDogstream(mon.Dogstreams, logger.Named("dogstream")))
			},
		},
		{
			Enabled: cfg.Agent.Forwarder.StatusURL != "",
			Name:    "forwarder-probe",
			Add: func(o *collector.Options) {
				o.Legacy = append(o.Legacy, legacy.NewForwarderProbe(cfg.Agent.Forwarder.StatusURL, nil, o.Clock))
			},
		},
		{
			Enabled: mon.Nagios.Enable,
			Name:    "nagios",
			Add: func(o *collector.Options) {
				o.Events = append(o.Events, events.NewNagios(mon.Nagios.LogPath, logger.Named("nagios")))
			},
		},
		{
			Enabled: mon.Resources.Enable,
			Name:    "resources",
			Add: func(o *collector.Options) {
				o.Res = append(o.Res, resources.NewProcesses(resources.HostProcesses, o.Clock))
			},
		},
		{
			Enabled: len(cfg.Agent.CustomChecks) > 0,
			Name:    "custom",
			Add: func(o *collector.Options) {
				reg := checks.NewRegistry()
				custom.RegisterBuiltins(reg)
				o.Custom = append(o.Custom, reg.LoadAll(cfg.Agent.CustomChecks, logger)...)
			},
		},
		{
			Enabled: len(mon.ChecksD) > 0,
			Name:    "checks.d",
			Add: func(o *collector.Options) {
				reg := checksd.NewRegistry()
				checksd.RegisterBuiltins(reg)
				o.ChecksD = reg.Load(mon.ChecksD, logger.Named("checksd"))
			},
		},
	}

	var registered []string
	for _, m := range modules {
		if !m.Enabled {
			logger.Debug("check module disabled", zap.String("name", m.Name))
			continue
		}
		m.Add(opts)
		registered = append(registered, m.Name)
		logger.Debug("registered check module", zap.String("name", m.Name))
	}
	return registered
}
