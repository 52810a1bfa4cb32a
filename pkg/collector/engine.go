package collector

import (
	"context"
	"errors"
	"sort"

	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/host-collector/pkg/checks"
	"github.com/host-collector/pkg/checks/system"
	"github.com/host-collector/pkg/payload"
	"github.com/host-collector/pkg/status"
)

// 检查分组名，用于日志与错误计数
const (
	groupSystem   = "system"
	groupLegacy   = "legacy"
	groupEvent    = "event"
	groupResource = "resource"
	groupMetrics  = "metrics"
	groupChecksD  = "checks_d"
)

func (c *Collector) checkFailed(group, name string, err error) {
	fields := []zap.Field{zap.String("group", group), zap.String("check", name), zap.Error(err)}
	var pe *checks.PanicError
	if errors.As(err, &pe) {
		fields = append(fields, zap.ByteString("stack", pe.Stack))
	}
	c.logger.Error("check failed", fields...)
	if c.opts.Metrics != nil {
		c.opts.Metrics.CheckErrors.WithLabelValues(group, name).Inc()
	}
}

// runChecks 按固定分组顺序执行所有检查；返回 false 表示周期被 Stop 中断
func (c *Collector) runChecks(ctx context.Context, p *payload.Payload) ([]status.CheckStatus, bool) {
	c.runSystem(ctx, p)
	c.runLegacy(ctx, p)
	c.runEvents(ctx, p)
	if c.opts.System.Kind != system.HostWindows {
		c.runResources(ctx, p)
	}
	c.runCustom(ctx, p)
	return c.runChecksD(ctx, p)
}

func (c *Collector) runSystem(ctx context.Context, p *payload.Payload) {
	for _, chk := range c.opts.System.Checks {
		var res checks.SystemResult
		err := checks.Safe(func() (err error) {
			res, err = chk.Check(ctx)
			return err
		})
		if err != nil {
			c.checkFailed(groupSystem, chk.Name(), err)
			continue
		}
		if res.Empty() {
			continue
		}
		p.Update(res.Fields)
		p.AppendMetrics(res.Metrics...)
	}
}

func (c *Collector) runLegacy(ctx context.Context, p *payload.Payload) {
	for _, chk := range c.opts.Legacy {
		var data map[string]any
		err := checks.Safe(func() (err error) {
			data, err = chk.Check(ctx)
			return err
		})
		if err != nil {
			c.checkFailed(groupLegacy, chk.Name(), err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		fields := make(map[string]any, len(data))
		for k, v := range data {
			fields[k] = v
		}
		// dogstream 事件单独归入 events
		if raw, ok := fields[checks.DogstreamEventsKey]; ok {
			delete(fields, checks.DogstreamEventsKey)
			if evs := toEvents(raw); len(evs) > 0 {
				p.Events.Merge(checks.DogstreamSource, evs)
			}
		}
		p.Update(fields)
	}
}

func toEvents(raw any) []payload.Event {
	switch v := raw.(type) {
	case []payload.Event:
		return v
	case []map[string]any:
		out := make([]payload.Event, 0, len(v))
		for _, e := range v {
			out = append(out, payload.Event(e))
		}
		return out
	case []any:
		out := make([]payload.Event, 0, len(v))
		for _, e := range v {
			switch ev := e.(type) {
			case payload.Event:
				out = append(out, ev)
			case map[string]any:
				out = append(out, payload.Event(ev))
			}
		}
		return out
	}
	return nil
}

func (c *Collector) runEvents(ctx context.Context, p *payload.Payload) {
	for _, chk := range c.opts.Events {
		var evs []payload.Event
		err := checks.Safe(func() (err error) {
			evs, err = chk.Check(ctx)
			return err
		})
		if err != nil {
			c.checkFailed(groupEvent, chk.Key(), err)
			continue
		}
		if len(evs) > 0 {
			p.Events.Merge(chk.Key(), evs)
		}
	}
}

func (c *Collector) runResources(ctx context.Context, p *payload.Payload) {
	produced := false
	for _, chk := range c.opts.Res {
		var entry payload.ResourceEntry
		err := checks.Safe(func() error {
			if err := chk.Check(ctx); err != nil {
				return err
			}
			entry.Snapshots = chk.PopSnapshots()
			if len(entry.Snapshots) == 0 {
				return nil
			}
			entry.FormatVersion = chk.FormatVersion()
			entry.FormatDescription = chk.DescribeFormatIfNeeded()
			return nil
		})
		if err != nil {
			c.checkFailed(groupResource, chk.Key(), err)
			continue
		}
		if len(entry.Snapshots) == 0 {
			continue
		}
		if err := p.Resources.Put(chk.Key(), entry); err != nil {
			c.checkFailed(groupResource, chk.Key(), err)
			continue
		}
		produced = true
	}
	if produced {
		p.Resources.Meta = &payload.ResourceMeta{APIKey: c.opts.Agent.APIKey, Host: p.InternalHostname}
	}
}

func (c *Collector) runCustom(ctx context.Context, p *payload.Payload) {
	for _, chk := range c.opts.Custom {
		var ms []payload.Metric
		err := checks.Safe(func() (err error) {
			ms, err = chk.Check(ctx)
			return err
		})
		if err != nil {
			c.checkFailed(groupMetrics, chk.Name(), err)
			continue
		}
		p.AppendMetrics(ms...)
	}
}

func (c *Collector) runChecksD(ctx context.Context, p *payload.Payload) ([]status.CheckStatus, bool) {
	initialized, initFailed := c.checksD()
	statuses := make([]status.CheckStatus, 0, len(initialized)+len(initFailed))

	for _, chk := range initialized {
		if !c.running() {
			return nil, false
		}
		name := chk.Name()
		c.logger.Info("running check", zap.String("check", name))

		var (
			instances []status.InstanceStatus
			ms        []payload.Metric
			evs       []payload.Event
		)
		err := checks.Safe(func() (err error) {
			if instances, err = chk.Run(ctx); err != nil {
				return err
			}
			ms = chk.Metrics()
			evs = chk.Events()
			return nil
		})
		if err != nil {
			c.checkFailed(groupChecksD, name, err)
			statuses = append(statuses, status.NewCheckStatus(name, nil, 0, 0))
			continue
		}
		p.AppendMetrics(ms...)
		if len(evs) > 0 {
			p.Events.Merge(name, evs)
		}
		statuses = append(statuses, status.NewCheckStatus(name, instances, len(ms), len(evs)))
	}

	names := make([]string, 0, len(initFailed))
	for name := range initFailed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !c.running() {
			return nil, false
		}
		f := initFailed[name]
		statuses = append(statuses, status.NewInitFailedStatus(name, f.Error, f.Traceback))
	}
	return statuses, true
}

// emit 按配置顺序调用各 emitter，单个失败不影响其余
func (c *Collector) emit(ctx context.Context, p *payload.Payload) []status.EmitterStatus {
	statuses := make([]status.EmitterStatus, 0, len(c.opts.Emitters))
	for _, e := range c.opts.Emitters {
		if !c.running() {
			c.logger.Info("collector stopped, skipping remaining emitters")
			return statuses
		}
		name := e.Name()
		start := c.clock.Now()
		err := checks.Safe(func() error { return e.Emit(ctx, p, c.logger.Named(name)) })
		if c.opts.Metrics != nil {
			c.opts.Metrics.EmitDuration.WithLabelValues(name).Observe(c.clock.Since(start).Seconds())
		}
		if err != nil {
			c.logger.Error("error running emitter", zap.String("emitter", name), zap.Error(err))
			if c.opts.Metrics != nil {
				c.opts.Metrics.EmitterErrors.WithLabelValues(name).Inc()
			}
		}
		statuses = append(statuses, status.NewEmitterStatus(name, err))
	}
	return statuses
}

// persist 持久化失败只记录日志
func (c *Collector) persist(checkStatuses []status.CheckStatus, emitterStatuses []status.EmitterStatus) {
	if c.opts.Persister == nil {
		return
	}
	st := status.CollectorStatus{
		CreatedAt:       c.clock.Now(),
		RunCount:        c.runCount,
		CheckStatuses:   checkStatuses,
		EmitterStatuses: emitterStatuses,
	}
	if c.metadataCache != nil {
		if err := deepcopy.Copy(&st.Metadata, c.metadataCache); err != nil {
			c.logger.Warn("unable to copy metadata for status", zap.Error(err))
		}
	}
	if err := checks.Safe(func() error { return c.opts.Persister.Persist(st) }); err != nil {
		c.logger.Error("error persisting collector status", zap.Error(err))
	}
}
