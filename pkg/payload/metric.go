package payload

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Metric is one sample. It is encoded as the historical tuple [name, timestamp, value, attributes].
type Metric struct {
	Name       string
	Timestamp  float64
	Value      float64
	Attributes map[string]any
}

// NewMetric 创建指标元组
func NewMetric(name string, ts float64, value float64, attrs map[string]any) Metric {
	return Metric{Name: name, Timestamp: ts, Value: value, Attributes: attrs}
}

// MarshalJSON encodes the tuple form.
func (m Metric) MarshalJSON() ([]byte, error) {
	attrs := m.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return json.Marshal([]any{m.Name, m.Timestamp, m.Value, attrs})
}

// UnmarshalJSON decodes the tuple form.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode metric tuple: %w", err)
	}
	if len(raw) < 3 {
		return fmt.Errorf("metric tuple needs at least 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &m.Name); err != nil {
		return fmt.Errorf("decode metric name: %w", err)
	}
	if err := json.Unmarshal(raw[1], &m.Timestamp); err != nil {
		return fmt.Errorf("decode metric timestamp: %w", err)
	}
	if err := json.Unmarshal(raw[2], &m.Value); err != nil {
		return fmt.Errorf("decode metric value: %w", err)
	}
	if len(raw) > 3 {
		if err := json.Unmarshal(raw[3], &m.Attributes); err != nil {
			return fmt.Errorf("decode metric attributes: %w", err)
		}
	}
	return nil
}

// Event is one free-form event record.
type Event map[string]any

// Events groups event records by source name.
type Events map[string][]Event

// Merge appends to an existing source or creates it. Empty input is a no-op.
func (e Events) Merge(source string, events []Event) {
	if len(events) == 0 {
		return
	}
	if existing, ok := e[source]; ok {
		e[source] = append(existing, events...)
		return
	}
	e[source] = append([]Event(nil), events...)
}

// Count returns the total number of events across sources.
func (e Events) Count() int {
	n := 0
	for _, list := range e {
		n += len(list)
	}
	return n
}
