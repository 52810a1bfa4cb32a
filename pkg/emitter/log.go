package emitter

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/host-collector/pkg/payload"
)

const LogName = "log"

// Log 把载荷写入日志（debug 级别），用于本地调试
type Log struct{}

func NewLog() *Log { return &Log{} }

func (*Log) Name() string { return LogName }

func (*Log) Emit(_ context.Context, p *payload.Payload, logger *zap.Logger) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	logger.Debug("payload",
		zap.String("uuid", p.UUID),
		zap.Int("metrics", len(p.Metrics)),
		zap.Int("events", p.Events.Count()),
		zap.ByteString("body", raw))
	return nil
}
