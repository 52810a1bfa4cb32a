package agent

import (
	"github.com/spf13/cobra"

	"github.com/host-collector/pkg/config"
)

var defaultCfg = config.NewDefaultConfig()

func initServerFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("server.addr", defaultCfg.Server.Addr, "-> HTTP listening address (HTTP监听地址)")
	f.Duration("server.read_timeout", defaultCfg.Server.ReadTimeout, "-> Read timeout duration (读取超时时间)")
	f.Duration("server.write_timeout", defaultCfg.Server.WriteTimeout, "-> Write timeout duration (写入超时时间)")
	f.Duration("server.idle_timeout", defaultCfg.Server.IdleTimeout, "-> Idle connection timeout duration (空闲连接超时时间)")
}

func initAgentFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("agent.hostname", defaultCfg.Agent.Hostname, "-> Hostname override (主机名覆盖)")
	f.StringSlice("agent.tags", defaultCfg.Agent.Tags, "-> Static host tags (静态标签)")
	f.StringSlice("agent.emitters", defaultCfg.Agent.Emitters, "-> Emitters in order [forwarder,log] | 上报通道")
	f.Duration("agent.metadata_interval", defaultCfg.Agent.MetadataInterval, "-> Host metadata refresh interval (元数据刷新间隔)")
	f.String("agent.forwarder.url", defaultCfg.Agent.Forwarder.URL, "-> Forwarder base URL (forwarder 地址)")
}
