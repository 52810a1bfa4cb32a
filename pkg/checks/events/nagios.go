// Package events 产出事件的检查，结果写入 events[key]
package events

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/host-collector/pkg/payload"
	"github.com/host-collector/pkg/tail"
)

// NagiosKey events 中 nagios 事件的来源名称
const NagiosKey = "nagios"

// Nagios 跟踪 nagios.log，把 SERVICE ALERT / HOST ALERT 行转换为事件
type Nagios struct {
	follower *tail.Follower
	logger   *zap.Logger
}

func NewNagios(logPath string, logger *zap.Logger) *Nagios {
	return &Nagios{follower: tail.NewFollower(logPath), logger: logger}
}

func (n *Nagios) Key() string { return NagiosKey }

func (n *Nagios) Check(_ context.Context) ([]payload.Event, error) {
	lines, err := n.follower.ReadLines()
	if err != nil {
		return nil, err
	}
	var out []payload.Event
	for _, line := range lines {
		ev, err := parseAlert(line)
		if err != nil {
			n.logger.Debug("nagios line skipped", zap.Error(err))
			continue
		}
		if ev != nil {
			out = append(out, ev)
		}
	}
	return out, nil
}

// parseAlert returns nil for lines that are not alerts.
//
//	[1700000000] SERVICE ALERT: host;service;CRITICAL;HARD;3;output
//	[1700000000] HOST ALERT: host;DOWN;HARD;1;output
func parseAlert(line string) (payload.Event, error) {
	if !strings.HasPrefix(line, "[") {
		return nil, nil
	}
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return nil, fmt.Errorf("unterminated timestamp in %q", line)
	}
	ts, err := strconv.ParseInt(line[1:end], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp in %q: %w", line, err)
	}

	kind, rest, ok := strings.Cut(strings.TrimSpace(line[end+1:]), ": ")
	if !ok {
		return nil, nil
	}
	parts := strings.Split(rest, ";")

	switch kind {
	case "SERVICE ALERT":
		if len(parts) < 6 {
			return nil, fmt.Errorf("short service alert %q", line)
		}
		return payload.Event{
			"timestamp":  ts,
			"event_type": "SERVICE ALERT",
			"host":       parts[0],
			"service":    parts[1],
			"state":      parts[2],
			"state_type": parts[3],
			"attempt":    parts[4],
			"output":     strings.Join(parts[5:], ";"),
		}, nil
	case "HOST ALERT":
		if len(parts) < 5 {
			return nil, fmt.Errorf("short host alert %q", line)
		}
		return payload.Event{
			"timestamp":  ts,
			"event_type": "HOST ALERT",
			"host":       parts[0],
			"state":      parts[1],
			"state_type": parts[2],
			"attempt":    parts[3],
			"output":     strings.Join(parts[4:], ";"),
		}, nil
	}
	return nil, nil
}
