// Package status 采集周期的运行状态记录（check / emitter）及其持久化
package status

import (
	"time"
)

// Instance states reported by checks.d instances.
const (
	InstanceOK      = "OK"
	InstanceWarning = "WARNING"
	InstanceError   = "ERROR"
)

// InstanceStatus is the outcome of one configured instance of a checks.d check.
type InstanceStatus struct {
	InstanceID int      `yaml:"instance_id" json:"instance_id"`
	Status     string   `yaml:"status" json:"status"`
	Error      string   `yaml:"error,omitempty" json:"error,omitempty"`
	Warnings   []string `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}

// HasError 实例是否失败
func (s InstanceStatus) HasError() bool { return s.Status == InstanceError }

// CheckStatus is immutable once created. Counts are nil for checks that failed to initialize.
type CheckStatus struct {
	Name                string           `yaml:"name" json:"name"`
	InstanceStatuses    []InstanceStatus `yaml:"instance_statuses" json:"instance_statuses"`
	MetricCount         *int             `yaml:"metric_count,omitempty" json:"metric_count,omitempty"`
	EventCount          *int             `yaml:"event_count,omitempty" json:"event_count,omitempty"`
	InitFailedError     string           `yaml:"init_failed_error,omitempty" json:"init_failed_error,omitempty"`
	InitFailedTraceback string           `yaml:"init_failed_traceback,omitempty" json:"init_failed_traceback,omitempty"`
}

// NewCheckStatus records a check that ran this cycle (successfully or not).
func NewCheckStatus(name string, instances []InstanceStatus, metricCount, eventCount int) CheckStatus {
	if instances == nil {
		instances = []InstanceStatus{}
	}
	return CheckStatus{
		Name:             name,
		InstanceStatuses: instances,
		MetricCount:      &metricCount,
		EventCount:       &eventCount,
	}
}

// NewInitFailedStatus records a check that never got past initialization.
func NewInitFailedStatus(name, errText, traceback string) CheckStatus {
	return CheckStatus{
		Name:                name,
		InitFailedError:     errText,
		InitFailedTraceback: traceback,
	}
}

// InitFailed reports whether the check failed during initialization.
func (c CheckStatus) InitFailed() bool { return c.InitFailedError != "" }

// Metrics returns the metric count, zero when absent.
func (c CheckStatus) Metrics() int {
	if c.MetricCount == nil {
		return 0
	}
	return *c.MetricCount
}

// Events returns the event count, zero when absent.
func (c CheckStatus) Events() int {
	if c.EventCount == nil {
		return 0
	}
	return *c.EventCount
}

// EmitterStatus is the outcome of one emitter invocation.
type EmitterStatus struct {
	Name  string `yaml:"name" json:"name"`
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// NewEmitterStatus 创建 emitter 状态，err 为 nil 表示成功
func NewEmitterStatus(name string, err error) EmitterStatus {
	s := EmitterStatus{Name: name}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// HasError emitter 是否失败
func (e EmitterStatus) HasError() bool { return e.Error != "" }

// CollectorStatus is the record handed to persistence at the end of each complete cycle.
type CollectorStatus struct {
	CreatedAt       time.Time       `yaml:"created_at" json:"created_at"`
	RunCount        int             `yaml:"run_count" json:"run_count"`
	CheckStatuses   []CheckStatus   `yaml:"check_statuses" json:"check_statuses"`
	EmitterStatuses []EmitterStatus `yaml:"emitter_statuses" json:"emitter_statuses"`
	Metadata        map[string]any  `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Persister durably records a collector status.
type Persister interface {
	Persist(s CollectorStatus) error
}
