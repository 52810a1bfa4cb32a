package legacy

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/host-collector/pkg/checks"
	"github.com/host-collector/pkg/payload"
	"github.com/host-collector/pkg/tail"
)

const eventPrefix = "event:"

// Dogstream 跟踪日志文件，把新行解析为指标或事件
//
//	metric line: <metric> <timestamp> <value> [key=value ...]
//	event line:  event: {"msg_title": "...", ...}
type Dogstream struct {
	followers []*tail.Follower
	logger    *zap.Logger
}

func NewDogstream(paths []string, logger *zap.Logger) *Dogstream {
	d := &Dogstream{logger: logger}
	for _, p := range paths {
		d.followers = append(d.followers, tail.NewFollower(p))
	}
	return d
}

func (d *Dogstream) Name() string { return "dogstream" }

// Check 单个文件读取失败只记录日志，不影响其余文件
func (d *Dogstream) Check(_ context.Context) (map[string]any, error) {
	var metrics []payload.Metric
	var events []payload.Event
	for _, f := range d.followers {
		lines, err := f.ReadLines()
		if err != nil {
			d.logger.Warn("dogstream read failed", zap.String("path", f.Path()), zap.Error(err))
			continue
		}
		for _, line := range lines {
			m, ev, err := parseLine(line)
			if err != nil {
				d.logger.Debug("dogstream skipped line", zap.String("path", f.Path()), zap.Error(err))
				continue
			}
			if ev != nil {
				events = append(events, ev)
			} else if m != nil {
				metrics = append(metrics, *m)
			}
		}
	}

	if len(metrics) == 0 && len(events) == 0 {
		return nil, nil
	}
	out := map[string]any{}
	if len(metrics) > 0 {
		out["dogstream"] = metrics
	}
	if len(events) > 0 {
		out[checks.DogstreamEventsKey] = events
	}
	return out, nil
}

func parseLine(line string) (*payload.Metric, payload.Event, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil, nil
	}
	if rest, ok := strings.CutPrefix(line, eventPrefix); ok {
		ev := payload.Event{}
		rest = strings.TrimSpace(rest)
		if err := json.Unmarshal([]byte(rest), &ev); err != nil {
			ev = payload.Event{"msg_text": rest}
		}
		return nil, ev, nil
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, nil, fmt.Errorf("malformed metric line %q", line)
	}
	ts, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, nil, fmt.Errorf("bad timestamp %q: %w", fields[1], err)
	}
	value, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, nil, fmt.Errorf("bad value %q: %w", fields[2], err)
	}
	attrs := map[string]any{}
	for _, kv := range fields[3:] {
		if k, v, ok := strings.Cut(kv, "="); ok {
			attrs[k] = v
		}
	}
	m := payload.NewMetric(fields[0], ts, value, attrs)
	return &m, nil, nil
}
