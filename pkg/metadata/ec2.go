// Package metadata 主机元数据：云主机元数据、主机名解析与系统信息
package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Provider 返回主机元数据映射，可能包含 hostname 键；失败时返回空映射
type Provider interface {
	Metadata(ctx context.Context) map[string]any
}

// NopProvider 未启用云元数据时使用
type NopProvider struct{}

func (NopProvider) Metadata(context.Context) map[string]any { return map[string]any{} }

// ec2Keys 从实例元数据服务读取的键
var ec2Keys = []string{
	"instance-id",
	"hostname",
	"local-hostname",
	"public-hostname",
	"local-ipv4",
	"public-ipv4",
	"ami-id",
	"instance-type",
}

// EC2 通过实例元数据服务读取元数据。instance-id 不可达时视为非云主机，返回空映射。
type EC2 struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewEC2(endpoint string, timeout time.Duration, logger *zap.Logger) *EC2 {
	return &EC2{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Client exposes the HTTP client used for requests.
func (e *EC2) Client() *http.Client { return e.client }

func (e *EC2) Metadata(ctx context.Context) map[string]any {
	md := map[string]any{}
	for _, key := range ec2Keys {
		v, err := e.fetch(ctx, key)
		if err != nil {
			e.logger.Debug("ec2 metadata unavailable", zap.String("key", key), zap.Error(err))
			if key == "instance-id" {
				return map[string]any{}
			}
			continue
		}
		md[key] = v
	}
	return md
}

func (e *EC2) fetch(ctx context.Context, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/"+key, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
