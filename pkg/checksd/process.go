package checksd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/host-collector/pkg/config"
)

// NameLister 返回当前所有进程名
type NameLister func(ctx context.Context) ([]string, error)

// HostProcessNames 通过 gopsutil 读取进程名，读取失败的进程跳过
func HostProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		if n, err := p.NameWithContext(ctx); err == nil {
			names = append(names, n)
		}
	}
	return names, nil
}

// NewProcessFactory 内置 process 检查：统计每个实例匹配的进程数
//
//	instances:
//	  - name: nginx
//	    search: nginx
//	    exact_match: true
func NewProcessFactory(list NameLister, clock clockwork.Clock) Factory {
	if list == nil {
		list = HostProcessNames
	}
	return func(cfg config.CheckConfig, _ *zap.Logger) (Check, error) {
		for i, inst := range cfg.Instances {
			if s, _ := inst["search"].(string); s == "" {
				return nil, fmt.Errorf("instance %d: search is required", i)
			}
		}
		return NewAgentCheck(cfg.Name, cfg.InitConfig, cfg.Instances, clock, processInstance(list)), nil
	}
}

func processInstance(list NameLister) InstanceFunc {
	return func(ctx context.Context, c *AgentCheck, inst map[string]any) error {
		search, _ := inst["search"].(string)
		name, _ := inst["name"].(string)
		if name == "" {
			name = search
		}
		exact := true
		if v, ok := inst["exact_match"].(bool); ok {
			exact = v
		}

		names, err := list(ctx)
		if err != nil {
			return fmt.Errorf("list processes: %w", err)
		}
		if len(names) == 0 {
			return errors.New("no processes visible")
		}

		count := 0
		for _, n := range names {
			if (exact && n == search) || (!exact && strings.Contains(n, search)) {
				count++
			}
		}
		c.Gauge("system.processes.number", float64(count), []string{"process_name:" + name})
		if count == 0 {
			c.Warning(fmt.Sprintf("no process matching %q", search))
		}
		return nil
	}
}

// RegisterBuiltins 注册内置 checks.d 检查
func RegisterBuiltins(reg *Registry) {
	reg.Register("process", NewProcessFactory(nil, nil))
}
