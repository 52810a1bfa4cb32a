package emitter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap"

	"github.com/host-collector/pkg/payload"
)

const (
	ForwarderName  = "forwarder"
	intakePath     = "/intake"
	defaultTimeout = 15 * time.Second
)

// Forwarder 把载荷 JSON 编码、zlib 压缩后 POST 到本地 forwarder，失败按指数退避重试
type Forwarder struct {
	endpoint   string
	apiKey     string
	client     *http.Client
	maxElapsed time.Duration
}

func NewForwarder(baseURL, apiKey string, timeout, maxElapsed time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Forwarder{
		endpoint:   strings.TrimRight(baseURL, "/") + intakePath,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
		maxElapsed: maxElapsed,
	}
}

func (f *Forwarder) Name() string { return ForwarderName }

// Client exposes the HTTP client used for delivery.
func (f *Forwarder) Client() *http.Client { return f.client }

func (f *Forwarder) Emit(ctx context.Context, p *payload.Payload, logger *zap.Logger) error {
	body, err := encode(p)
	if err != nil {
		return err
	}
	target := f.endpoint + "?api_key=" + url.QueryEscape(f.apiKey)

	var b backoff.BackOff = &backoff.StopBackOff{}
	if f.maxElapsed > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = f.maxElapsed
		b = eb
	}
	attempt := 0
	op := func() error {
		attempt++
		return f.post(ctx, target, body)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("forwarder post failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("post payload to %s: %w", f.endpoint, err)
	}
	logger.Debug("payload forwarded", zap.Int("bytes", len(body)), zap.Int("attempts", attempt))
	return nil
}

func (f *Forwarder) post(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "deflate")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("forwarder returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return backoff.Permanent(fmt.Errorf("forwarder rejected payload: %d", resp.StatusCode))
	}
	return nil
}

// encode JSON 编码后 zlib 压缩
func encode(p *payload.Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	return buf.Bytes(), nil
}
