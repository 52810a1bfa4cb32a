package metadata

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
)

// StatsFunc 计算系统信息（systemStats）
type StatsFunc func(ctx context.Context) map[string]any

// HostStats 通过 gopsutil 实时读取系统信息，单项失败时省略该项
func HostStats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"goV":     runtime.Version(),
		"machine": runtime.GOARCH,
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		stats["cpuCores"] = n
	}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		stats["processor"] = infos[0].ModelName
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		stats["platform"] = info.OS
		stats["platformVersion"] = info.PlatformVersion
		stats["kernel"] = info.KernelVersion
		if info.KernelArch != "" {
			stats["machine"] = info.KernelArch
		}
	}
	return stats
}
