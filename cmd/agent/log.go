package agent

import (
	"github.com/spf13/cobra"
)

func initLogFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	const p = "log."

	f.String(p+"level", defaultCfg.Log.Level, "-> Log level [debug,info,warn,error] | 日志级别")
	f.String(p+"format", defaultCfg.Log.Format, "-> Log format [console,json] | 标准输出日志格式，文件始终为 json")
	f.String(p+"path", defaultCfg.Log.Path, "-> Log file storage path | 日志路径")
	f.Int(p+"max_size", defaultCfg.Log.MaxSize, "-> Rotate when a daily file exceeds this size (MB) | 单文件最大MB")
	// max_backup > 0 时优先生效，max_age 被忽略
	f.Int(p+"max_backup", defaultCfg.Log.MaxBackup, "-> Number of rotated files to keep | 备份数量")
	f.Int(p+"max_age", defaultCfg.Log.MaxAge, "-> Maximum retention days of log files | 保存天数")
}
