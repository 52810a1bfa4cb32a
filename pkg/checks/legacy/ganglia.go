// Package legacy 旧版桥接检查：ganglia、dogstream 日志流、本地 forwarder 健康探测
package legacy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// maxGangliaDump gmond XML 转储的读取上限
const maxGangliaDump = 16 << 20

// Ganglia 从 gmond 的 TCP 端口读取完整 XML 转储，原样放入 ganglia 字段
type Ganglia struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

func NewGanglia(addr string, timeout time.Duration) *Ganglia {
	return &Ganglia{addr: addr, timeout: timeout}
}

func (g *Ganglia) Name() string { return "ganglia" }

func (g *Ganglia) Check(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	conn, err := g.dialer.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		return nil, fmt.Errorf("dial gmond %s: %w", g.addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	data, err := io.ReadAll(io.LimitReader(conn, maxGangliaDump))
	if err != nil {
		return nil, fmt.Errorf("read gmond dump: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	return map[string]any{"ganglia": string(data)}, nil
}
