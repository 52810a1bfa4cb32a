package metadata

import (
	"context"
	"net"
	"os"
	"regexp"
	"strings"
)

// Resolver 主机名解析策略
type Resolver interface {
	Hostname() (string, error)
	FQDN(ctx context.Context) (string, error)
	// Canonical picks the hostname reported as the payload identity.
	Canonical(ctx context.Context, override string) string
}

var validHostname = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9\-]{0,61}[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9\-]{0,61}[A-Za-z0-9])?)*$`)

// IsValidHostname 校验主机名；localhost 类名称视为无效
func IsValidHostname(h string) bool {
	if h == "" || len(h) > 255 {
		return false
	}
	switch strings.ToLower(h) {
	case "localhost", "localhost.localdomain", "localhost6.localdomain6", "ip6-localhost":
		return false
	}
	return validHostname.MatchString(h)
}

// SystemResolver 使用操作系统主机名，必要时回退到实例 ID
type SystemResolver struct {
	hostname   func() (string, error)
	lookupHost func(ctx context.Context, host string) ([]string, error)
	lookupAddr func(ctx context.Context, addr string) ([]string, error)
	instanceID func(ctx context.Context) string
}

// NewSystemResolver instanceID may be nil when no cloud provider is configured.
func NewSystemResolver(instanceID func(ctx context.Context) string) *SystemResolver {
	return &SystemResolver{
		hostname:   os.Hostname,
		lookupHost: net.DefaultResolver.LookupHost,
		lookupAddr: net.DefaultResolver.LookupAddr,
		instanceID: instanceID,
	}
}

func (r *SystemResolver) Hostname() (string, error) { return r.hostname() }

// FQDN 正向解析主机名后再反向解析第一个地址，失败时返回短主机名
func (r *SystemResolver) FQDN(ctx context.Context) (string, error) {
	h, err := r.hostname()
	if err != nil {
		return "", err
	}
	addrs, err := r.lookupHost(ctx, h)
	if err != nil || len(addrs) == 0 {
		return h, nil
	}
	names, err := r.lookupAddr(ctx, addrs[0])
	if err != nil || len(names) == 0 {
		return h, nil
	}
	return strings.TrimSuffix(names[0], "."), nil
}

// Canonical 优先级：配置覆盖 → 操作系统主机名 → 实例 ID
func (r *SystemResolver) Canonical(ctx context.Context, override string) string {
	if IsValidHostname(override) {
		return override
	}
	h, err := r.hostname()
	if err == nil && IsValidHostname(h) {
		return h
	}
	if r.instanceID != nil {
		if id := r.instanceID(ctx); id != "" {
			return id
		}
	}
	return h
}

// InstanceIDFrom adapts a provider into an instance id lookup.
func InstanceIDFrom(p Provider) func(ctx context.Context) string {
	return func(ctx context.Context) string {
		id, _ := p.Metadata(ctx)["instance-id"].(string)
		return id
	}
}
