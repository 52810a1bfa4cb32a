// Package payload 定义一次采集周期产出的上报载荷（metrics/events/resources 等）。
package payload

import (
	"sort"

	json "github.com/goccy/go-json"
)

// Payload is the aggregate built once per collection cycle and handed to every emitter.
// Fixed sections are typed; OS specific and legacy results are flattened into Fields
// so that they end up at the top level of the encoded document.
type Payload struct {
	CollectionTimestamp float64
	OS                  string
	RuntimeVersion      string
	AgentVersion        string
	APIKey              string
	InternalHostname    string
	UUID                string

	Metrics   []Metric
	Events    Events
	Resources Resources

	// optional sections, nil when not attached this cycle
	SystemStats map[string]any
	Meta        map[string]any
	Tags        []string

	Fields map[string]any
}

// reservedKeys 顶层固定字段，Fields 中同名键在编码时会被覆盖
var reservedKeys = map[string]struct{}{
	"collection_timestamp": {},
	"os":                   {},
	"runtime":              {},
	"agentVersion":         {},
	"apiKey":               {},
	"internalHostname":     {},
	"uuid":                 {},
	"metrics":              {},
	"events":               {},
	"resources":            {},
	"systemStats":          {},
	"meta":                 {},
	"tags":                 {},
}

// New 创建空载荷，metrics/events/resources 容器始终存在
func New() *Payload {
	return &Payload{
		Metrics:   []Metric{},
		Events:    Events{},
		Resources: NewResources(),
		Fields:    map[string]any{},
	}
}

// Set stores a flattened top-level field. Reserved keys are ignored and reported false.
func (p *Payload) Set(key string, value any) bool {
	if _, ok := reservedKeys[key]; ok {
		return false
	}
	if p.Fields == nil {
		p.Fields = map[string]any{}
	}
	p.Fields[key] = value
	return true
}

// Update merges every entry of fields into the flattened top level.
func (p *Payload) Update(fields map[string]any) {
	for k, v := range fields {
		p.Set(k, v)
	}
}

// Field returns a flattened field.
func (p *Payload) Field(key string) (any, bool) {
	v, ok := p.Fields[key]
	return v, ok
}

// FieldKeys returns the flattened field names in sorted order.
func (p *Payload) FieldKeys() []string {
	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AppendMetrics appends in insertion order; duplicates are kept.
func (p *Payload) AppendMetrics(metrics ...Metric) {
	p.Metrics = append(p.Metrics, metrics...)
}

// HasEventSource reports whether events were recorded for source.
func (p *Payload) HasEventSource(source string) bool {
	_, ok := p.Events[source]
	return ok
}

// MarshalJSON flattens Fields to the top level and writes the fixed sections over them.
func (p *Payload) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(p.Fields)+len(reservedKeys))
	for k, v := range p.Fields {
		doc[k] = v
	}

	metrics := p.Metrics
	if metrics == nil {
		metrics = []Metric{}
	}
	events := p.Events
	if events == nil {
		events = Events{}
	}

	doc["collection_timestamp"] = p.CollectionTimestamp
	doc["os"] = p.OS
	doc["runtime"] = p.RuntimeVersion
	doc["agentVersion"] = p.AgentVersion
	doc["apiKey"] = p.APIKey
	doc["internalHostname"] = p.InternalHostname
	doc["uuid"] = p.UUID
	doc["metrics"] = metrics
	doc["events"] = events
	doc["resources"] = p.Resources

	if p.SystemStats != nil {
		doc["systemStats"] = p.SystemStats
	}
	if p.Meta != nil {
		doc["meta"] = p.Meta
	}
	if p.Tags != nil {
		doc["tags"] = p.Tags
	}
	return json.Marshal(doc)
}
