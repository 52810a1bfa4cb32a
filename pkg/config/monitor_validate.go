package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	// 	校验Addr格式(必须是 ":port" 或 "ip:port")
	if h.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	// 	用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

// Validate 采集配置校验
func (m *MonitorConfig) Validate() error {
	if err := valid.Struct(m); err != nil {
		return err
	}
	if m.Interval < time.Second || m.Interval > 3600*time.Second {
		return fmt.Errorf("monitor.interval must be between 1 and 3600 seconds, got %s", m.Interval)
	}

	// checks.d 名称不能重复，否则状态记录无法区分
	seen := map[string]bool{}
	for _, c := range m.ChecksD {
		name := strings.TrimSpace(c.Name)
		if seen[name] {
			return fmt.Errorf("monitor.checks_d duplicated check name: %q", name)
		}
		seen[name] = true
	}

	for _, path := range m.Dogstreams {
		if strings.TrimSpace(path) == "" {
			return errors.New("monitor.dogstreams cannot contain empty string")
		}
	}
	if m.Ganglia.Enable && m.Ganglia.Addr == "" {
		return errors.New("monitor.ganglia.addr is required when ganglia is enabled")
	}
	if m.Nagios.Enable && strings.TrimSpace(m.Nagios.LogPath) == "" {
		return errors.New("monitor.nagios.log_path is required when nagios is enabled")
	}
	return nil
}
