package legacy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
)

// ForwarderProbe 探测本地 forwarder 的状态页
type ForwarderProbe struct {
	url    string
	client *http.Client
	clock  clockwork.Clock
}

func NewForwarderProbe(url string, client *http.Client, clock clockwork.Clock) *ForwarderProbe {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ForwarderProbe{url: url, client: client, clock: clock}
}

func (p *ForwarderProbe) Name() string { return "forwarder" }

// Check 连接失败时返回 up=false 而不是错误，不可达本身就是要上报的状态
func (p *ForwarderProbe) Check(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build forwarder probe request: %w", err)
	}

	start := p.clock.Now()
	resp, err := p.client.Do(req)
	latency := p.clock.Since(start)
	if err != nil {
		return map[string]any{"forwarder": map[string]any{"up": false, "error": err.Error()}}, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return map[string]any{"forwarder": map[string]any{
		"up":          resp.StatusCode < http.StatusInternalServerError,
		"status_code": resp.StatusCode,
		"latency_ms":  latency.Milliseconds(),
	}}, nil
}
