// Package emitter 上报通道：把一次采集周期的载荷发送到目标端
package emitter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/host-collector/pkg/config"
	"github.com/host-collector/pkg/payload"
)

// Emitter 上报通道契约，失败时返回错误；Name 用于状态记录
type Emitter interface {
	Name() string
	Emit(ctx context.Context, p *payload.Payload, logger *zap.Logger) error
}

// Func adapts a plain function into a named Emitter.
type Func struct {
	N string
	F func(ctx context.Context, p *payload.Payload, logger *zap.Logger) error
}

func (f Func) Name() string { return f.N }

func (f Func) Emit(ctx context.Context, p *payload.Payload, logger *zap.Logger) error {
	return f.F(ctx, p, logger)
}

// FromConfig 按配置顺序创建上报通道
func FromConfig(cfg config.AgentConfig) ([]Emitter, error) {
	out := make([]Emitter, 0, len(cfg.Emitters))
	for _, name := range cfg.Emitters {
		switch name {
		case ForwarderName:
			out = append(out, NewForwarder(cfg.Forwarder.URL, cfg.APIKey, cfg.NetworkTimeout, cfg.Forwarder.MaxElapsed))
		case LogName:
			out = append(out, NewLog())
		default:
			return nil, fmt.Errorf("unknown emitter %q", name)
		}
	}
	return out, nil
}
