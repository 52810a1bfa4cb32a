package metadata

import (
	"context"
	"sync"

	"github.com/tiendc/go-deepcopy"
)

// Host 组合元数据来源、主机名解析与系统信息
type Host struct {
	provider Provider
	resolver Resolver
	stats    StatsFunc
	override string

	once      sync.Once
	canonical string
}

func NewHost(provider Provider, resolver Resolver, stats StatsFunc, hostnameOverride string) *Host {
	if provider == nil {
		provider = NopProvider{}
	}
	if stats == nil {
		stats = HostStats
	}
	return &Host{provider: provider, resolver: resolver, stats: stats, override: hostnameOverride}
}

// Hostname 规范主机名，首次解析后缓存
func (h *Host) Hostname(ctx context.Context) string {
	h.once.Do(func() {
		h.canonical = h.resolver.Canonical(ctx, h.override)
	})
	return h.canonical
}

// SystemStats 实时重新计算
func (h *Host) SystemStats(ctx context.Context) map[string]any {
	return h.stats(ctx)
}

// Metadata 构建主机元数据
//
//  1. provider 返回的 hostname 重命名为 ec2-hostname
//  2. 配置了主机名时写入 agent-hostname，否则写入 socket-hostname
//  3. 可解析时写入 socket-fqdn
//  4. hostname 设为规范主机名
func (h *Host) Metadata(ctx context.Context) map[string]any {
	var md map[string]any
	if err := deepcopy.Copy(&md, h.provider.Metadata(ctx)); err != nil || md == nil {
		md = map[string]any{}
	}

	if v, ok := md["hostname"]; ok {
		if s, _ := v.(string); s != "" {
			md["ec2-hostname"] = v
		}
		delete(md, "hostname")
	}

	if h.override != "" {
		md["agent-hostname"] = h.override
	} else if name, err := h.resolver.Hostname(); err == nil {
		md["socket-hostname"] = name
	}
	if fqdn, err := h.resolver.FQDN(ctx); err == nil && fqdn != "" {
		md["socket-fqdn"] = fqdn
	}

	md["hostname"] = h.Hostname(ctx)
	return md
}
