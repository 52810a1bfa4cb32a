// Package resources 资源快照检查：Check 采样写入缓冲，PopSnapshots 取出并清空
package resources

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	ProcessesKey           = "processes"
	ProcessesFormatVersion = 1
)

// ProcSample 单个进程的一次采样
type ProcSample struct {
	User   string
	CPU    float64
	Memory float64
	RSS    uint64
}

// Lister 返回当前所有进程的采样
type Lister func(ctx context.Context) ([]ProcSample, error)

// Processes 按用户聚合进程 CPU/内存占用
type Processes struct {
	list  Lister
	clock clockwork.Clock

	mu        sync.Mutex
	snaps     []any
	described bool
}

func NewProcesses(list Lister, clock clockwork.Clock) *Processes {
	if list == nil {
		list = HostProcesses
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Processes{list: list, clock: clock}
}

func (p *Processes) Key() string        { return ProcessesKey }
func (p *Processes) FormatVersion() int { return ProcessesFormatVersion }

// Check 采样一次并追加到缓冲区
func (p *Processes) Check(ctx context.Context) error {
	samples, err := p.list(ctx)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}
	snap := []any{float64(p.clock.Now().Unix()), aggregate(samples)}

	p.mu.Lock()
	p.snaps = append(p.snaps, snap)
	p.mu.Unlock()
	return nil
}

// PopSnapshots 取出并清空缓冲；未调用 Check 时返回空
func (p *Processes) PopSnapshots() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.snaps
	p.snaps = nil
	return out
}

// DescribeFormatIfNeeded 格式描述只返回一次
func (p *Processes) DescribeFormatIfNeeded() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.described {
		return nil
	}
	p.described = true
	return []string{"user", "pct_cpu", "pct_mem", "rss_kb", "procs"}
}

func aggregate(samples []ProcSample) [][]any {
	type agg struct {
		cpu, mem float64
		rss      uint64
		n        int
	}
	byUser := map[string]*agg{}
	for _, s := range samples {
		a, ok := byUser[s.User]
		if !ok {
			a = &agg{}
			byUser[s.User] = a
		}
		a.cpu += s.CPU
		a.mem += s.Memory
		a.rss += s.RSS
		a.n++
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	rows := make([][]any, 0, len(users))
	for _, u := range users {
		a := byUser[u]
		rows = append(rows, []any{u, a.cpu, a.mem, a.rss / 1024, a.n})
	}
	return rows
}

// HostProcesses 通过 gopsutil 读取本机进程；单个进程读取失败时跳过
func HostProcesses(ctx context.Context) ([]ProcSample, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProcSample, 0, len(procs))
	for _, p := range procs {
		user, err := p.UsernameWithContext(ctx)
		if err != nil {
			continue
		}
		s := ProcSample{User: user}
		if c, err := p.CPUPercentWithContext(ctx); err == nil {
			s.CPU = c
		}
		if m, err := p.MemoryPercentWithContext(ctx); err == nil {
			s.Memory = float64(m)
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			s.RSS = mi.RSS
		}
		out = append(out, s)
	}
	return out, nil
}
