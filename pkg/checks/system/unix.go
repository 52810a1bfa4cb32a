package system

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/host-collector/pkg/checks"
)

const mb = 1024 * 1024

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Disk 磁盘空间与 inode 使用情况（df 风格的行）
type Disk struct {
	src Source
}

func (d *Disk) Name() string { return "disk" }

func (d *Disk) Check(ctx context.Context) (checks.SystemResult, error) {
	parts, err := d.src.Partitions(ctx, false)
	if err != nil {
		return checks.SystemResult{}, fmt.Errorf("list partitions: %w", err)
	}

	usage := make([][]any, 0, len(parts))
	inodes := make([][]any, 0, len(parts))
	for _, p := range parts {
		u, err := d.src.Usage(ctx, p.Mountpoint)
		if err != nil || u.Total == 0 {
			continue
		}
		usage = append(usage, []any{
			p.Device, u.Total / 1024, u.Used / 1024, u.Free / 1024,
			fmt.Sprintf("%.0f%%", u.UsedPercent), p.Mountpoint,
		})
		if u.InodesTotal > 0 {
			inodes = append(inodes, []any{
				p.Device, u.InodesTotal, u.InodesUsed, u.InodesFree,
				fmt.Sprintf("%.0f%%", u.InodesUsedPercent), p.Mountpoint,
			})
		}
	}
	if len(usage) == 0 {
		return checks.SystemResult{}, nil
	}
	return checks.SystemResult{Fields: map[string]any{"diskUsage": usage, "inodes": inodes}}, nil
}

// Load 系统负载
type Load struct {
	src Source
}

func (l *Load) Name() string { return "load" }

func (l *Load) Check(ctx context.Context) (checks.SystemResult, error) {
	avg, err := l.src.LoadAvg(ctx)
	if err != nil {
		return checks.SystemResult{}, fmt.Errorf("load average: %w", err)
	}
	return checks.SystemResult{Fields: map[string]any{
		"loadAvrg1":  avg.Load1,
		"loadAvrg5":  avg.Load5,
		"loadAvrg15": avg.Load15,
	}}, nil
}

// Memory 物理内存与交换分区（单位 MB）
type Memory struct {
	src Source
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Check(ctx context.Context) (checks.SystemResult, error) {
	vm, err := m.src.VirtualMemory(ctx)
	if err != nil {
		return checks.SystemResult{}, fmt.Errorf("virtual memory: %w", err)
	}
	fields := map[string]any{
		"memPhysTotal":  vm.Total / mb,
		"memPhysUsed":   vm.Used / mb,
		"memPhysFree":   vm.Free / mb,
		"memPhysUsable": vm.Available / mb,
		"memCached":     vm.Cached / mb,
		"memBuffers":    vm.Buffers / mb,
		"memShared":     vm.Shared / mb,
	}
	if vm.Total > 0 {
		fields["memPhysPctUsable"] = round2(float64(vm.Available) / float64(vm.Total))
	}

	// 没有交换分区不算错误
	if sw, err := m.src.SwapMemory(ctx); err == nil {
		fields["memSwapTotal"] = sw.Total / mb
		fields["memSwapUsed"] = sw.Used / mb
		fields["memSwapFree"] = sw.Free / mb
		if sw.Total > 0 {
			fields["memSwapPctFree"] = round2(float64(sw.Free) / float64(sw.Total))
		}
	}
	return checks.SystemResult{Fields: fields}, nil
}

// IO 磁盘 IO 速率，需要两次采样，首次无数据
type IO struct {
	src   Source
	clock clockwork.Clock

	mu       sync.Mutex
	last     map[string]disk.IOCountersStat
	lastTime time.Time
}

func (i *IO) Name() string { return "io" }

func (i *IO) Check(ctx context.Context) (checks.SystemResult, error) {
	counters, err := i.src.DiskIO(ctx)
	if err != nil {
		return checks.SystemResult{}, fmt.Errorf("disk io counters: %w", err)
	}
	now := i.clock.Now()

	i.mu.Lock()
	defer i.mu.Unlock()
	prev, prevTime := i.last, i.lastTime
	i.last, i.lastTime = counters, now
	if prev == nil {
		return checks.SystemResult{}, nil
	}
	elapsed := now.Sub(prevTime).Seconds()
	if elapsed <= 0 {
		return checks.SystemResult{}, nil
	}

	stats := make(map[string]any, len(counters))
	for name, cur := range counters {
		old, ok := prev[name]
		if !ok || counterReset(cur, old) {
			continue
		}
		stats[name] = map[string]any{
			"r/s":    round2(float64(cur.ReadCount-old.ReadCount) / elapsed),
			"w/s":    round2(float64(cur.WriteCount-old.WriteCount) / elapsed),
			"rkB/s":  round2(float64(cur.ReadBytes-old.ReadBytes) / 1024 / elapsed),
			"wkB/s":  round2(float64(cur.WriteBytes-old.WriteBytes) / 1024 / elapsed),
			"%util":  round2(math.Min(100, float64(cur.IoTime-old.IoTime)/10/elapsed)),
			"device": name,
		}
	}
	if len(stats) == 0 {
		return checks.SystemResult{}, nil
	}
	return checks.SystemResult{Fields: map[string]any{"ioStats": stats}}, nil
}

// counterReset 设备重新挂载或计数器回绕时本周期跳过该设备
func counterReset(cur, old disk.IOCountersStat) bool {
	return cur.ReadCount < old.ReadCount || cur.WriteCount < old.WriteCount ||
		cur.ReadBytes < old.ReadBytes || cur.WriteBytes < old.WriteBytes ||
		cur.IoTime < old.IoTime
}

// Processes 进程数量统计
type Processes struct {
	src Source
}

func (p *Processes) Name() string { return "processes" }

func (p *Processes) Check(ctx context.Context) (checks.SystemResult, error) {
	misc, err := p.src.LoadMisc(ctx)
	if err != nil {
		return checks.SystemResult{}, fmt.Errorf("process counts: %w", err)
	}
	return checks.SystemResult{Fields: map[string]any{"processes": map[string]any{
		"total":   misc.ProcsTotal,
		"running": misc.ProcsRunning,
		"blocked": misc.ProcsBlocked,
	}}}, nil
}

// CPU 各模式 CPU 使用率（百分比），基于两次采样的差值，首次采集无数据
type CPU struct {
	src Source

	mu   sync.Mutex
	last *cpu.TimesStat
}

func (c *CPU) Name() string { return "cpu" }

func (c *CPU) Check(ctx context.Context) (checks.SystemResult, error) {
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
		// 首次采集：仅存储当前时间，不计算使用率
		return checks.SystemResult{}, nil
	}

	deltaTotal := totalTime(cur) - totalTime(*prev)
	if deltaTotal <= 0 {
		return checks.SystemResult{}, nil
	}
	pct := func(now, before float64) float64 { return round2((now - before) / deltaTotal * 100) }
	return checks.SystemResult{Fields: map[string]any{
		"cpuUser":   pct(cur.User+cur.Nice, prev.User+prev.Nice),
		"cpuSystem": pct(cur.System+cur.Irq+cur.Softirq, prev.System+prev.Irq+prev.Softirq),
		"cpuWait":   pct(cur.Iowait, prev.Iowait),
		"cpuIdle":   pct(cur.Idle, prev.Idle),
		"cpuStolen": pct(cur.Steal, prev.Steal),
	}}, nil
}

func totalTime(t cpu.TimesStat) float64 {
	return t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
}
