package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// EnvPrefix 环境变量前缀（HOST_COLLECTOR_AGENT_API_KEY -> agent.api_key）
const EnvPrefix = "HOST_COLLECTOR"

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server" comment:"HTTP服务配置（/metrics /health /status）"`
	Agent   AgentConfig   `yaml:"agent" mapstructure:"agent" comment:"Agent身份与上报配置"`
	Monitor MonitorConfig `yaml:"monitor" mapstructure:"monitor" comment:"监控采集配置"`
	Status  StatusConfig  `yaml:"status" mapstructure:"status" comment:"运行状态持久化"`
	Log     ZapLogConfig  `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// ServerConfig HTTP服务配置（超时统一为time.Duration，支持"30s"解析）
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"required,gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"required,gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"required,gt=0"`
}

// AgentConfig identity, metadata scheduling and delivery settings.
type AgentConfig struct {
	APIKey           string          `yaml:"api_key" mapstructure:"api_key" validate:"required" comment:"上报 API Key"`
	Version          string          `yaml:"version" mapstructure:"version" comment:"Agent版本（构建时注入）"`
	Hostname         string          `yaml:"hostname" mapstructure:"hostname" comment:"主机名覆盖，为空时自动解析"`
	Tags             []string        `yaml:"tags" mapstructure:"tags" comment:"静态标签"`
	MetadataInterval time.Duration   `yaml:"metadata_interval" mapstructure:"metadata_interval" validate:"gt=0" comment:"主机元数据重新计算间隔" default:"10m"`
	NetworkTimeout   time.Duration   `yaml:"network_timeout" mapstructure:"network_timeout" validate:"gt=0" comment:"网络操作默认超时" default:"15s"`
	CustomChecks     []string        `yaml:"custom_checks" mapstructure:"custom_checks" comment:"自定义指标检查（按名称加载）"`
	Emitters         []string        `yaml:"emitters" mapstructure:"emitters" validate:"dive,oneof=forwarder log" comment:"上报通道，按顺序执行"`
	Forwarder        ForwarderConfig `yaml:"forwarder" mapstructure:"forwarder"`
	EC2              EC2Config       `yaml:"ec2" mapstructure:"ec2"`
}

// ForwarderConfig 本地 forwarder 进程地址
type ForwarderConfig struct {
	URL        string        `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
	StatusURL  string        `yaml:"status_url" mapstructure:"status_url" validate:"omitempty,url"`
	MaxElapsed time.Duration `yaml:"max_elapsed" mapstructure:"max_elapsed" validate:"gte=0" comment:"单次上报最长重试时间"`
}

// EC2Config 云主机元数据服务
type EC2Config struct {
	Enable   bool          `yaml:"enable" mapstructure:"enable"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
}

// MonitorConfig 监控采集全局配置
type MonitorConfig struct {
	Interval   time.Duration   `yaml:"interval" mapstructure:"interval" validate:"required,gt=0" comment:"监控采集间隔（如15s）" default:"15s"`
	StartEvent bool            `yaml:"start_event" mapstructure:"start_event" comment:"首次采集时发送 Agent Startup 事件"`
	ChecksD    []CheckConfig   `yaml:"checks_d" mapstructure:"checks_d" validate:"dive"`
	Resources  ResourcesConfig `yaml:"resources" mapstructure:"resources"`
	Ganglia    GangliaConfig   `yaml:"ganglia" mapstructure:"ganglia"`
	Dogstreams []string        `yaml:"dogstreams" mapstructure:"dogstreams" comment:"需要解析的日志文件"`
	Nagios     NagiosConfig    `yaml:"nagios" mapstructure:"nagios"`
}

// CheckConfig one checks.d style check and its instances.
type CheckConfig struct {
	Name       string           `yaml:"name" mapstructure:"name" validate:"required"`
	InitConfig map[string]any   `yaml:"init_config" mapstructure:"init_config"`
	Instances  []map[string]any `yaml:"instances" mapstructure:"instances" validate:"min=1"`
}

// ResourcesConfig 资源快照检查
type ResourcesConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable"`
}

// GangliaConfig gmond XML 端点
type GangliaConfig struct {
	Enable bool   `yaml:"enable" mapstructure:"enable"`
	Addr   string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// NagiosConfig Nagios 事件日志
type NagiosConfig struct {
	Enable  bool   `yaml:"enable" mapstructure:"enable"`
	LogPath string `yaml:"log_path" mapstructure:"log_path"`
}

// StatusConfig 运行状态持久化文件
type StatusConfig struct {
	Path string `yaml:"path" mapstructure:"path" comment:"为空时只保存在内存中"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error dpanic panic fatal" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" validate:"required,oneof=json console" comment:"日志格式（json/console）" default:"json"`
	Path      string `yaml:"path" mapstructure:"path" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" validate:"required,gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" validate:"gte=0" comment:"日志文件最大备份数" default:"30"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:17125",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Agent: AgentConfig{
			Version:          "dev",
			MetadataInterval: 10 * time.Minute,
			NetworkTimeout:   15 * time.Second,
			Tags:             []string{},
			CustomChecks:     []string{},
			Emitters:         []string{"forwarder"},
			Forwarder: ForwarderConfig{
				URL:        "http://127.0.0.1:17123",
				MaxElapsed: 30 * time.Second,
			},
			EC2: EC2Config{
				Enable:   false,
				Endpoint: "http://169.254.169.254/latest/meta-data",
				Timeout:  time.Second,
			},
		},
		Monitor: MonitorConfig{
			Interval:   15 * time.Second,
			StartEvent: true,
			Resources:  ResourcesConfig{Enable: true},
			Ganglia:    GangliaConfig{Enable: false, Addr: "127.0.0.1:8651"},
			Dogstreams: []string{},
			Nagios:     NagiosConfig{Enable: false, LogPath: "/var/log/nagios3/nagios.log"},
		},
		Status: StatusConfig{
			Path: "./run/collector-status.yaml",
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "json",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 30,
			MaxAge:    7,
		},
	}
}

// LoadConfigWithCli 支持 time.Duration，(Flags + YAML + ENV)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	return load(v, configFile)
}

// Load 从文件加载配置（无命令行参数时使用，如测试）
func Load(configFile string) (*Config, error) {
	return load(viper.New(), configFile)
}

func load(v *viper.Viper, configFile string) (*Config, error) {
	cfg := NewDefaultConfig()

	// 2. 解析配置文件 (--config)
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// 3. 绑定环境变量 ENV -> Viper （HOST_COLLECTOR_AGENT_API_KEY -> agent.api_key）
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("agent.api_key")

	// 4. 解码反序列化到结构体（支持 time.Duration）
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	// 	1，校验Server服务配置
	if err := c.Server.Validate(); err != nil {
		return err
	}
	// 	2，校验Agent配置
	if err := c.Agent.Validate(); err != nil {
		return err
	}
	// 	3，校验采集配置
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	// 	4，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
