package system

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/host-collector/pkg/checks"
	"github.com/host-collector/pkg/payload"
)

// Windows 探针直接产出指标元组，追加到载荷的 metrics

type winDisk struct {
	src   Source
	clock clockwork.Clock
}

func (d *winDisk) Name() string { return "disk" }

func (d *winDisk) Check(ctx context.Context) (checks.SystemResult, error) {
	parts, err := d.src.Partitions(ctx, false)
	if err != nil {
		return checks.SystemResult{}, fmt.Errorf("list partitions: %w", err)
	}
	ts := unixSeconds(d.clock.Now())
	var out []payload.Metric
	for _, p := range parts {
		u, err := d.src.Usage(ctx, p.Mountpoint)
		if err != nil || u.Total == 0 {
			continue
		}
		attrs := map[string]any{"device_name": p.Device}
		out = append(out,
			payload.NewMetric("system.disk.free", ts, float64(u.Free)/1024, attrs),
			payload.NewMetric("system.disk.total", ts, float64(u.Total)/1024, attrs),
			payload.NewMetric("system.disk.used", ts, float64(u.Used)/1024, attrs),
			payload.NewMetric("system.disk.in_use", ts, u.UsedPercent/100, attrs),
		)
	}
	return checks.SystemResult{Metrics: out}, nil
}

type winMemory struct {
	src   Source
	clock clockwork.Clock
}

func (m *winMemory) Name() string { return "memory" }

func (m *winMemory) Check(ctx context.Context) (checks.SystemResult, error) {
	vm, err := m.src.VirtualMemory(ctx)
	if err != nil {
		return checks.SystemResult{}, fmt.Errorf("virtual memory: %w", err)
	}
	ts := unixSeconds(m.clock.Now())
	out := []payload.Metric{
		payload.NewMetric("system.mem.free", ts, float64(vm.Free/mb), nil),
		payload.NewMetric("system.mem.used", ts, float64(vm.Used/mb), nil),
		payload.NewMetric("system.mem.total", ts, float64(vm.Total/mb), nil),
		payload.NewMetric("system.mem.usable", ts, float64(vm.Available/mb), nil),
	}
	if vm.Total > 0 {
		out = append(out, payload.NewMetric("system.mem.pct_usable", ts, round2(float64(vm.Available)/float64(vm.Total)), nil))
	}
	return checks.SystemResult{Metrics: out}, nil
}

type winCPU struct {
	src   Source
	clock clockwork.Clock

	mu   sync.Mutex
	last *cpu.TimesStat
}

func (c *winCPU) Name() string { return "cpu" }

func (c *winCPU) Check(ctx context.Context) (checks.SystemResult, error) {
	times, err := c.src.CPUTimes(ctx, false)
	if err != nil {
		return checks.SystemResult{}, fmt.Errorf("cpu times: %w", err)
	}
	if len(times) == 0 {
		return checks.SystemResult{}, nil
	}
	cur := times[0]

	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.last
	c.last = &cur
	if prev == nil {
		return checks.SystemResult{}, nil
	}
	deltaTotal := totalTime(cur) - totalTime(*prev)
	if deltaTotal <= 0 {
		return checks.SystemResult{}, nil
	}
	ts := unixSeconds(c.clock.Now())
	pct := func(now, before float64) float64 { return round2((now - before) / deltaTotal * 100) }
	return checks.SystemResult{Metrics: []payload.Metric{
		payload.NewMetric("system.cpu.user", ts, pct(cur.User, prev.User), nil),
		payload.NewMetric("system.cpu.system", ts, pct(cur.System, prev.System), nil),
		payload.NewMetric("system.cpu.idle", ts, pct(cur.Idle, prev.Idle), nil),
		payload.NewMetric("system.cpu.interrupt", ts, pct(cur.Irq, prev.Irq), nil),
	}}, nil
}

type winNetwork struct {
	src   Source
	clock clockwork.Clock
}

func (n *winNetwork) Name() string { return "network" }

func (n *winNetwork) Check(ctx context.Context) (checks.SystemResult, error) {
	nics, err := n.src.NetIO(ctx, true)
	if err != nil {
		return checks.SystemResult{}, fmt.Errorf("network counters: %w", err)
	}
	ts := unixSeconds(n.clock.Now())
	var out []payload.Metric
	for _, nic := range nics {
		attrs := map[string]any{"device_name": nic.Name}
		out = append(out,
			payload.NewMetric("system.net.bytes_rcvd", ts, float64(nic.BytesRecv), attrs),
			payload.NewMetric("system.net.bytes_sent", ts, float64(nic.BytesSent), attrs),
			payload.NewMetric("system.net.packets_in.error", ts, float64(nic.Errin), attrs),
			payload.NewMetric("system.net.packets_out.error", ts, float64(nic.Errout), attrs),
		)
	}
	return checks.SystemResult{Metrics: out}, nil
}

type winIO struct {
	src   Source
	clock clockwork.Clock
}

func (i *winIO) Name() string { return "io" }

func (i *winIO) Check(ctx context.Context) (checks.SystemResult, error) {
	counters, err := i.src.DiskIO(ctx)
	if err != nil {
		return checks.SystemResult{}, fmt.Errorf("disk io counters: %w", err)
	}
	ts := unixSeconds(i.clock.Now())
	var out []payload.Metric
	for name, c := range counters {
		attrs := map[string]any{"device_name": name}
		out = append(out,
			payload.NewMetric("system.io.rkb", ts, float64(c.ReadBytes)/1024, attrs),
			payload.NewMetric("system.io.wkb", ts, float64(c.WriteBytes)/1024, attrs),
			payload.NewMetric("system.io.r", ts, float64(c.ReadCount), attrs),
			payload.NewMetric("system.io.w", ts, float64(c.WriteCount), attrs),
		)
	}
	return checks.SystemResult{Metrics: out}, nil
}

type winProc struct {
	src   Source
	clock clockwork.Clock
}

func (p *winProc) Name() string { return "proc" }

func (p *winProc) Check(ctx context.Context) (checks.SystemResult, error) {
	pids, err := p.src.Pids(ctx)
	if err != nil {
		return checks.SystemResult{}, fmt.Errorf("list pids: %w", err)
	}
	ts := unixSeconds(p.clock.Now())
	return checks.SystemResult{Metrics: []payload.Metric{
		payload.NewMetric("system.proc.count", ts, float64(len(pids)), nil),
	}}, nil
}
