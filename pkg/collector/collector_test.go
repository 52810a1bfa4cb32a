package collector_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/host-collector/pkg/checks"
	"github.com/host-collector/pkg/checks/system"
	"github.com/host-collector/pkg/checksd"
	"github.com/host-collector/pkg/collector"
	"github.com/host-collector/pkg/config"
	"github.com/host-collector/pkg/emitter"
	"github.com/host-collector/pkg/payload"
	"github.com/host-collector/pkg/status"
)

// ---- fakes ----

type fakeHost struct {
	metaCalls  int
	statsCalls int
}

func (h *fakeHost) Hostname(context.Context) string { return "web-1" }
func (h *fakeHost) Metadata(context.Context) map[string]any {
	h.metaCalls++
	return map[string]any{"hostname": "web-1", "socket-fqdn": "web-1.local"}
}
func (h *fakeHost) SystemStats(context.Context) map[string]any {
	h.statsCalls++
	return map[string]any{"cpuCores": 4, "live": true}
}

type panickyHost struct{}

func (panickyHost) Hostname(context.Context) string            { return "web-1" }
func (panickyHost) Metadata(context.Context) map[string]any    { panic("metadata lookup crashed") }
func (panickyHost) SystemStats(context.Context) map[string]any { panic("stats lookup crashed") }

type recordingPersister struct {
	mu       sync.Mutex
	statuses []status.CollectorStatus
	err      error
}

func (r *recordingPersister) Persist(s status.CollectorStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
	return r.err
}

type capture struct {
	name     string
	payloads []*payload.Payload
	err      error
	onEmit   func()
}

func (c *capture) Name() string { return c.name }
func (c *capture) Emit(_ context.Context, p *payload.Payload, _ *zap.Logger) error {
	c.payloads = append(c.payloads, p)
	if c.onEmit != nil {
		c.onEmit()
	}
	return c.err
}

type sysCheck struct {
	name  string
	res   checks.SystemResult
	panic bool
}

func (s sysCheck) Name() string { return s.name }
func (s sysCheck) Check(context.Context) (checks.SystemResult, error) {
	if s.panic {
		panic("probe exploded")
	}
	return s.res, nil
}

type legacyCheck struct{ data map[string]any }

func (l legacyCheck) Name() string                                  { return "dogstream" }
func (l legacyCheck) Check(context.Context) (map[string]any, error) { return l.data, nil }

type eventCheck struct {
	key string
	evs []payload.Event
	err error
}

func (e eventCheck) Key() string                                    { return e.key }
func (e eventCheck) Check(context.Context) ([]payload.Event, error) { return e.evs, e.err }

type resourceCheck struct {
	key     string
	snaps   []any
	version int
	desc    any
}

func (r *resourceCheck) Key() string                 { return r.key }
func (r *resourceCheck) Check(context.Context) error { return nil }
func (r *resourceCheck) PopSnapshots() []any {
	s := r.snaps
	r.snaps = nil
	return s
}
func (r *resourceCheck) FormatVersion() int          { return r.version }
func (r *resourceCheck) DescribeFormatIfNeeded() any { return r.desc }

type checkD struct {
	name    string
	run     func() ([]status.InstanceStatus, error)
	metrics []payload.Metric
	events  []payload.Event
	stopped bool
}

func (c *checkD) Name() string { return c.name }
func (c *checkD) Run(context.Context) ([]status.InstanceStatus, error) {
	if c.run != nil {
		return c.run()
	}
	return []status.InstanceStatus{{InstanceID: 0, Status: status.InstanceOK}}, nil
}
func (c *checkD) Metrics() []payload.Metric { return c.metrics }
func (c *checkD) Events() []payload.Event   { return c.events }
func (c *checkD) Stop()                     { c.stopped = true }

type brokenSelfMetrics struct{}

func (brokenSelfMetrics) Check(*payload.Payload, time.Duration, *time.Duration, *time.Duration) []payload.Metric {
	panic("rss probe crashed")
}

type selfMetrics struct {
	prevEmit []*time.Duration
}

func (s *selfMetrics) Check(_ *payload.Payload, _ time.Duration, prevEmit, _ *time.Duration) []payload.Metric {
	s.prevEmit = append(s.prevEmit, prevEmit)
	return []payload.Metric{payload.NewMetric("agent.collector.collection.time", 0, 0, nil)}
}

func baseOptions(host *fakeHost, clock clockwork.Clock) collector.Options {
	return collector.Options{
		Agent: config.AgentConfig{
			APIKey:           "k-123",
			Version:          "5.0.0",
			MetadataInterval: 10 * time.Minute,
		},
		Host:   host,
		System: system.HostCheckSet{Kind: system.HostUnix},
		Clock:  clock,
		OS:     "linux",
	}
}

func encode(t *testing.T, p *payload.Payload) map[string]any {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

// ---- tests ----

func TestRun_ResourceSnapshots(t *testing.T) {
	host := &fakeHost{}
	persister := &recordingPersister{}
	opts := baseOptions(host, clockwork.NewFakeClock())
	opts.Res = []checks.ResourceCheck{&resourceCheck{key: "processes", snaps: []any{"s1", "s2"}, version: 3}}
	opts.Persister = persister
	collector.New(opts).Run(context.Background(), false)

	require.Len(t, persister.statuses, 1)
	st := persister.statuses[0]
	assert.Empty(t, st.CheckStatuses)
	assert.Empty(t, st.EmitterStatuses)

	// 再用 spy emitter 检查载荷内容
	capt := &capture{name: "spy"}
	opts.Res = []checks.ResourceCheck{&resourceCheck{key: "processes", snaps: []any{"s1", "s2"}, version: 3}}
	opts.Emitters = []emitter.Emitter{capt}
	opts.Persister = nil
	collector.New(opts).Run(context.Background(), false)

	require.Len(t, capt.payloads, 1)
	doc := encode(t, capt.payloads[0])
	res := doc["resources"].(map[string]any)
	assert.Len(t, res, 2)
	entry := res["processes"].(map[string]any)
	assert.Len(t, entry["snaps"], 2)
	assert.EqualValues(t, 3, entry["format_version"])
	assert.NotContains(t, entry, "format_description")
	assert.Equal(t, map[string]any{"api_key": "k-123", "host": "web-1"}, res["meta"])
}

func TestRun_ResourceMetaOnlyWithSnapshots(t *testing.T) {
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Res = []checks.ResourceCheck{&resourceCheck{key: "processes", version: 1}}
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}

	collector.New(opts).Run(context.Background(), false)

	p := capt.payloads[0]
	assert.Nil(t, p.Resources.Meta)
	assert.Empty(t, p.Resources.Keys())
}

func TestRun_ResourceKeyMetaRejected(t *testing.T) {
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Res = []checks.ResourceCheck{
		&resourceCheck{key: payload.ResourceMetaKey, snaps: []any{"s1", "s2"}, version: 1},
		&resourceCheck{key: "processes", snaps: []any{"s3"}, version: 3},
	}
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}

	collector.New(opts).Run(context.Background(), false)

	p := capt.payloads[0]
	assert.Equal(t, []string{"processes"}, p.Resources.Keys())
	require.NotNil(t, p.Resources.Meta)
	assert.Equal(t, "web-1", p.Resources.Meta.Host)
}

func TestRun_ResourcesSkippedOnWindows(t *testing.T) {
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.System.Kind = system.HostWindows
	opts.Res = []checks.ResourceCheck{&resourceCheck{key: "processes", snaps: []any{"s1"}, version: 1}}
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}

	collector.New(opts).Run(context.Background(), false)

	assert.Empty(t, capt.payloads[0].Resources.Keys())
	assert.Nil(t, capt.payloads[0].Resources.Meta)
}

func TestRun_ChecksDFailureAndInitFailed(t *testing.T) {
	persister := &recordingPersister{}
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Persister = persister
	opts.ChecksD = checksd.LoadResult{
		Initialized: []checksd.Check{
			&checkD{name: "disk_extra", run: func() ([]status.InstanceStatus, error) { panic("disk gone") }},
		},
		InitFailed: map[string]checksd.InitFailure{
			"bad_plugin": {Error: "ImportError: x", Traceback: "Traceback ..."},
		},
	}

	collector.New(opts).Run(context.Background(), false)

	require.Len(t, persister.statuses, 1)
	cs := persister.statuses[0].CheckStatuses
	require.Len(t, cs, 2)

	assert.Equal(t, "disk_extra", cs[0].Name)
	assert.Equal(t, 0, cs[0].Metrics())
	assert.Equal(t, 0, cs[0].Events())
	assert.Empty(t, cs[0].InstanceStatuses)
	assert.False(t, cs[0].InitFailed())

	assert.Equal(t, "bad_plugin", cs[1].Name)
	assert.Equal(t, "ImportError: x", cs[1].InitFailedError)
	assert.Nil(t, cs[1].MetricCount)
	assert.Nil(t, cs[1].EventCount)
}

func TestRun_ChecksDMergesMetricsAndEvents(t *testing.T) {
	persister := &recordingPersister{}
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Persister = persister
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}
	opts.ChecksD = checksd.LoadResult{Initialized: []checksd.Check{
		&checkD{name: "broken", run: func() ([]status.InstanceStatus, error) { return nil, errors.New("boom") }},
		&checkD{
			name:    "process",
			metrics: []payload.Metric{payload.NewMetric("system.processes.number", 1, 2, nil)},
			events:  []payload.Event{{"msg_text": "nginx restarted"}},
		},
	}}

	collector.New(opts).Run(context.Background(), false)

	p := capt.payloads[0]
	require.Len(t, p.Metrics, 1)
	assert.Equal(t, "system.processes.number", p.Metrics[0].Name)
	require.Len(t, p.Events["process"], 1)

	cs := persister.statuses[0].CheckStatuses
	require.Len(t, cs, 2)
	assert.Equal(t, 0, cs[0].Metrics())
	assert.Equal(t, 1, cs[1].Metrics())
	assert.Equal(t, 1, cs[1].Events())
	require.Len(t, cs[1].InstanceStatuses, 1)
}

func TestRun_EmptyCycleKeepsContainers(t *testing.T) {
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}

	collector.New(opts).Run(context.Background(), false)

	doc := encode(t, capt.payloads[0])
	assert.Equal(t, []any{}, doc["metrics"])
	assert.Equal(t, map[string]any{}, doc["events"])
	assert.Equal(t, "k-123", doc["apiKey"])
	assert.Equal(t, "web-1", doc["internalHostname"])
	assert.Equal(t, "linux", doc["os"])
	assert.NotEmpty(t, doc["uuid"])
}

func TestRun_EventMergeOrder(t *testing.T) {
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Legacy = []checks.LegacyCheck{legacyCheck{data: map[string]any{
		checks.DogstreamSource:    []payload.Metric{payload.NewMetric("app.requests", 1, 3, nil)},
		checks.DogstreamEventsKey: []payload.Event{{"msg_text": "from log"}},
	}}}
	opts.Events = []checks.EventCheck{
		eventCheck{key: checks.DogstreamSource, evs: []payload.Event{{"msg_text": "from event check"}}},
		eventCheck{key: "nagios", err: errors.New("log missing")},
	}
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}

	collector.New(opts).Run(context.Background(), false)

	p := capt.payloads[0]
	evs := p.Events[checks.DogstreamSource]
	require.Len(t, evs, 2)
	assert.Equal(t, "from log", evs[0]["msg_text"])
	assert.Equal(t, "from event check", evs[1]["msg_text"])
	assert.False(t, p.HasEventSource("nagios"))

	_, hasRaw := p.Field(checks.DogstreamEventsKey)
	assert.False(t, hasRaw)
	_, hasMetrics := p.Field(checks.DogstreamSource)
	assert.True(t, hasMetrics)
}

func TestRun_SystemProbeIsolation(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Logger = zap.New(core)
	opts.System.Checks = []checks.SystemCheck{
		sysCheck{name: "disk", panic: true},
		sysCheck{name: "load", res: checks.SystemResult{Fields: map[string]any{"loadAvrg1": 0.5}}},
		sysCheck{name: "cpu"},
	}
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}

	collector.New(opts).Run(context.Background(), false)

	v, ok := capt.payloads[0].Field("loadAvrg1")
	require.True(t, ok)
	assert.Equal(t, 0.5, v)
	assert.Equal(t, 1, logs.FilterMessage("check failed").Len())
}

func TestRun_StartupEventOnFirstCycle(t *testing.T) {
	host := &fakeHost{}
	opts := baseOptions(host, clockwork.NewFakeClock())
	opts.StartupStats = map[string]any{"cpuCores": 4, "live": false}
	opts.Agent.Tags = []string{"env:prod"}
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}

	c := collector.New(opts)
	c.Run(context.Background(), true)
	c.Run(context.Background(), true)

	first := capt.payloads[0]
	evs := first.Events["System"]
	require.Len(t, evs, 1)
	assert.Equal(t, "Agent Startup", evs[0]["event_type"])
	assert.Equal(t, "Version 5.0.0", evs[0]["msg_text"])
	assert.Equal(t, "web-1", evs[0]["host"])
	assert.Equal(t, "k-123", evs[0]["api_key"])
	// 首周期同时重新计算元数据，实时 systemStats 覆盖启动快照
	assert.Equal(t, true, first.SystemStats["live"])
	assert.NotNil(t, first.Meta)
	assert.Equal(t, []string{"env:prod"}, first.Tags)

	second := capt.payloads[1]
	assert.False(t, second.HasEventSource("System"))
	assert.Nil(t, second.Meta)
	assert.Nil(t, second.SystemStats)
	assert.Nil(t, second.Tags)
}

func TestRun_MetadataInterval(t *testing.T) {
	host := &fakeHost{}
	clock := clockwork.NewFakeClock()
	persister := &recordingPersister{}
	opts := baseOptions(host, clock)
	opts.Persister = persister
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}
	c := collector.New(opts)

	c.Run(context.Background(), false)
	clock.Advance(5 * time.Minute)
	c.Run(context.Background(), false)
	clock.Advance(5 * time.Minute)
	c.Run(context.Background(), false)

	assert.Equal(t, 2, host.metaCalls)
	assert.NotNil(t, capt.payloads[0].Meta)
	assert.Nil(t, capt.payloads[1].Meta)
	assert.NotNil(t, capt.payloads[2].Meta)

	// 未重新计算的周期仍持久化缓存的元数据
	require.Len(t, persister.statuses, 3)
	assert.Equal(t, "web-1", persister.statuses[1].Metadata["hostname"])
	assert.Equal(t, 3, persister.statuses[2].RunCount)
}

func TestRun_EmitterFailureIsolated(t *testing.T) {
	persister := &recordingPersister{}
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Persister = persister
	failing := &capture{name: "forwarder", err: errors.New("connection refused")}
	ok := &capture{name: "log"}
	opts.Emitters = []emitter.Emitter{failing, ok}

	collector.New(opts).Run(context.Background(), false)

	assert.Len(t, ok.payloads, 1)
	es := persister.statuses[0].EmitterStatuses
	require.Len(t, es, 2)
	assert.Equal(t, "forwarder", es[0].Name)
	assert.Equal(t, "connection refused", es[0].Error)
	assert.False(t, es[1].HasError())
}

func TestRun_PersistFailureOnlyLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Logger = zap.New(core)
	opts.Persister = &recordingPersister{err: errors.New("disk full")}

	c := collector.New(opts)
	assert.NotPanics(t, func() { c.Run(context.Background(), false) })
	assert.Equal(t, 1, logs.FilterMessage("error persisting collector status").Len())
	assert.Equal(t, collector.StateIdle, c.State())
}

func TestRun_StopDuringChecksD(t *testing.T) {
	persister := &recordingPersister{}
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Persister = persister
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}

	var c *collector.Collector
	second := &checkD{name: "second"}
	first := &checkD{name: "first", run: func() ([]status.InstanceStatus, error) {
		c.Stop()
		return nil, nil
	}}
	opts.ChecksD = checksd.LoadResult{Initialized: []checksd.Check{first, second}}
	c = collector.New(opts)

	c.Run(context.Background(), false)

	assert.Empty(t, capt.payloads)
	assert.Empty(t, persister.statuses)
	assert.True(t, first.stopped)
	assert.True(t, second.stopped)
	assert.Equal(t, collector.StateStopped, c.State())

	// 停止后不再执行新周期
	c.Run(context.Background(), false)
	assert.Empty(t, capt.payloads)
}

func TestRun_StopBeforeInitFailedEntries(t *testing.T) {
	persister := &recordingPersister{}
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Persister = persister
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}

	var c *collector.Collector
	last := &checkD{name: "last", run: func() ([]status.InstanceStatus, error) {
		c.Stop()
		return []status.InstanceStatus{{InstanceID: 0, Status: status.InstanceOK}}, nil
	}}
	opts.ChecksD = checksd.LoadResult{
		Initialized: []checksd.Check{last},
		InitFailed: map[string]checksd.InitFailure{
			"bad_plugin": {Error: "ImportError: x", Traceback: "Traceback ..."},
		},
	}
	c = collector.New(opts)

	c.Run(context.Background(), false)

	assert.Empty(t, capt.payloads)
	assert.Empty(t, persister.statuses)
	assert.Equal(t, collector.StateStopped, c.State())
}

func TestRun_HostInfoPanicKeepsCycle(t *testing.T) {
	persister := &recordingPersister{}
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Host = panickyHost{}
	opts.Persister = persister
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}
	c := collector.New(opts)

	require.NotPanics(t, func() { c.Run(context.Background(), false) })

	require.Len(t, capt.payloads, 1)
	p := capt.payloads[0]
	assert.Equal(t, "web-1", p.InternalHostname)
	assert.Empty(t, p.Meta)
	assert.Empty(t, p.SystemStats)
	assert.Len(t, persister.statuses, 1)
	assert.Equal(t, collector.StateIdle, c.State())
}

func TestRun_SelfMetricsPanicSkipsAgentMetrics(t *testing.T) {
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.SelfMetrics = brokenSelfMetrics{}
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}

	require.NotPanics(t, func() { collector.New(opts).Run(context.Background(), false) })

	require.Len(t, capt.payloads, 1)
	assert.Empty(t, capt.payloads[0].Metrics)
}

func TestRun_StopBetweenEmitters(t *testing.T) {
	persister := &recordingPersister{}
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Persister = persister
	var c *collector.Collector
	first := &capture{name: "forwarder", onEmit: func() { c.Stop() }}
	second := &capture{name: "log"}
	opts.Emitters = []emitter.Emitter{first, second}
	c = collector.New(opts)

	c.Run(context.Background(), false)

	assert.Len(t, first.payloads, 1)
	assert.Empty(t, second.payloads)
	require.Len(t, persister.statuses, 1)
	assert.Len(t, persister.statuses[0].EmitterStatuses, 1)
}

func TestStop_WhileIdle(t *testing.T) {
	c := collector.New(baseOptions(&fakeHost{}, clockwork.NewFakeClock()))
	assert.Equal(t, collector.StateIdle, c.State())

	c.Stop()
	assert.Equal(t, collector.StateStopped, c.State())
	assert.NotPanics(t, c.Stop)
}

func TestRun_SelfMetricsSeePreviousEmit(t *testing.T) {
	sm := &selfMetrics{}
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.SelfMetrics = sm
	capt := &capture{name: "spy"}
	opts.Emitters = []emitter.Emitter{capt}
	c := collector.New(opts)

	c.Run(context.Background(), false)
	c.Run(context.Background(), false)

	require.Len(t, sm.prevEmit, 2)
	assert.Nil(t, sm.prevEmit[0])
	assert.NotNil(t, sm.prevEmit[1])
	assert.Equal(t, "agent.collector.collection.time", capt.payloads[0].Metrics[0].Name)
}

func TestRun_SummaryLogThrottled(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	opts := baseOptions(&fakeHost{}, clockwork.NewFakeClock())
	opts.Logger = zap.New(core)
	c := collector.New(opts)

	for i := 0; i < 12; i++ {
		c.Run(context.Background(), false)
	}

	// 前 5 次 + 第 11 次
	assert.Equal(t, 6, logs.FilterMessage("finished run").Len())
	assert.Equal(t, 1, logs.FilterMessage("first flushes done, next summaries will be logged periodically").Len())
	assert.Equal(t, 12, c.RunCount())
}
