package agent

import (
	"github.com/spf13/cobra"
)

func initMonitorFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Duration("monitor.interval", defaultCfg.Monitor.Interval, "采集间隔")
	f.Bool("monitor.start_event", defaultCfg.Monitor.StartEvent, "首次采集发送 Agent Startup 事件")
	f.Bool("monitor.resources.enable", defaultCfg.Monitor.Resources.Enable, "启用进程资源快照")
	f.Bool("monitor.ganglia.enable", defaultCfg.Monitor.Ganglia.Enable, "启用 ganglia")
	f.Bool("monitor.nagios.enable", defaultCfg.Monitor.Nagios.Enable, "启用 Nagios 事件")
	f.StringSlice("monitor.dogstreams", defaultCfg.Monitor.Dogstreams, "需要解析的日志文件")
}
