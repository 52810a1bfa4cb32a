package agent

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/host-collector/cmd/server"
	"github.com/host-collector/pkg/config"
	"github.com/host-collector/pkg/logger"
	"github.com/host-collector/pkg/registers"
	"github.com/host-collector/pkg/signal"
	"github.com/host-collector/pkg/util"
)

// Version 构建时注入：-ldflags "-X github.com/host-collector/cmd/agent.Version=5.0.0"
var Version = "dev"

var (
	cfgFile   string
	GlobalCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "host-collector",
	Short: "Host monitoring agent: runs system checks on an interval and forwards the payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		GlobalCfg, err = config.LoadConfigWithCli(cmd)
		if err != nil {
			// 统一输出错误到 stderr，不返回给 cobra
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			os.Exit(1)
		}
		if GlobalCfg.Agent.Version == "" || GlobalCfg.Agent.Version == "dev" {
			GlobalCfg.Agent.Version = Version
		}
		if err := runServer(cmd.Context(), GlobalCfg); err != nil {
			fmt.Fprintf(os.Stderr, "服务启动失败: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "配置文件路径")
	// 注册分组 flag
	initServerFlags(rootCmd)
	initAgentFlags(rootCmd)
	initMonitorFlags(rootCmd)
	initLogFlags(rootCmd)
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1，初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// 2，初始化banner
	util.PrintBanner("host-collector", cfg.Agent.Version, "ColorBlue")

	// 3. 设置全局默认 collector（主程序相关日志自动使用）
	logger.SetDefaultCollector("main")
	logger.Info("log initialization successful",
		zap.String("path", cfg.Log.Path), zap.String("level", cfg.Log.Level), zap.String("format", cfg.Log.Format))
	logger.Debug("configuration initialization successful", zap.String("path", cfgFile))

	// 4. 组装采集器并启动调度
	const enableProcess = true
	rt, err := registers.InitAgent(ctx, enableProcess, cfg, logger.Named("agent"))
	if err != nil {
		return fmt.Errorf("init agent failed: %w", err)
	}

	// 5. 初始化HTTP服务（注入自定义注册器）
	httpServer := server.NewHTTPServer(cfg, logger.Named("http"), rt.Registry, rt.Status, rt.Collector.State)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("start HTTP server failed: %w", err)
	}

	// 6. 阻塞直到 SIGINT/SIGTERM，关闭顺序：采集调度 → HTTP服务
	return signal.WaitForShutdown(logger.GetLogger(), func(ctx context.Context) error {
		errAgent := rt.Agent.Shutdown(ctx)
		errHTTP := httpServer.Shutdown(ctx)
		if err := errors.Join(errAgent, errHTTP); err != nil {
			return fmt.Errorf("shutdown errors: %w", err)
		}
		logger.Info("all services shutdown successfully")
		return nil
	})
}
