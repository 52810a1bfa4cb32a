// Package system 主机系统指标探针（基于 gopsutil），按操作系统选择固定的探针序列
package system

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Source 探针的数据来源，测试时可替换为固定值
type Source struct {
	Partitions    func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	Usage         func(ctx context.Context, path string) (*disk.UsageStat, error)
	DiskIO        func(ctx context.Context, names ...string) (map[string]disk.IOCountersStat, error)
	LoadAvg       func(ctx context.Context) (*load.AvgStat, error)
	LoadMisc      func(ctx context.Context) (*load.MiscStat, error)
	VirtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	SwapMemory    func(ctx context.Context) (*mem.SwapMemoryStat, error)
	CPUTimes      func(ctx context.Context, percpu bool) ([]cpu.TimesStat, error)
	NetIO         func(ctx context.Context, pernic bool) ([]net.IOCountersStat, error)
	Pids          func(ctx context.Context) ([]int32, error)
}

// HostSource 读取本机数据
func HostSource() Source {
	return Source{
		Partitions:    disk.PartitionsWithContext,
		Usage:         disk.UsageWithContext,
		DiskIO:        disk.IOCountersWithContext,
		LoadAvg:       load.AvgWithContext,
		LoadMisc:      load.MiscWithContext,
		VirtualMemory: mem.VirtualMemoryWithContext,
		SwapMemory:    mem.SwapMemoryWithContext,
		CPUTimes:      cpu.TimesWithContext,
		NetIO:         net.IOCountersWithContext,
		Pids:          process.PidsWithContext,
	}
}
