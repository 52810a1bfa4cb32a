package registers_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/host-collector/pkg/collector"
	"github.com/host-collector/pkg/config"
	"github.com/host-collector/pkg/registers"
)

type fakeRunner struct {
	mu      sync.Mutex
	starts  []bool
	ran     chan struct{}
	stopped bool
}

func newFakeRunner() *fakeRunner { return &fakeRunner{ran: make(chan struct{}, 16)} }

func (r *fakeRunner) Run(_ context.Context, startEvent bool) {
	r.mu.Lock()
	r.starts = append(r.starts, startEvent)
	r.mu.Unlock()
	r.ran <- struct{}{}
}

func (r *fakeRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
}

func (r *fakeRunner) State() string { return collector.StateIdle }

func waitRun(t *testing.T, r *fakeRunner) {
	t.Helper()
	select {
	case <-r.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("runner was not invoked")
	}
}

func TestAgent_RunsImmediatelyThenOnTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runner := newFakeRunner()
	agent := registers.NewAgent(runner, 15*time.Second, true, clock, zap.NewNop())

	agent.Start(context.Background())
	waitRun(t, runner)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(15 * time.Second)
	waitRun(t, runner)

	require.NoError(t, agent.Shutdown(ctx))
	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.True(t, runner.stopped)
	assert.Equal(t, []bool{true, true}, runner.starts)
}

func TestAgent_ShutdownWithoutStart(t *testing.T) {
	runner := newFakeRunner()
	agent := registers.NewAgent(runner, time.Second, false, clockwork.NewFakeClock(), nil)

	require.NoError(t, agent.Shutdown(context.Background()))
	assert.True(t, runner.stopped)
	assert.Empty(t, runner.starts)
}

func TestAgent_StopsWithExternalContext(t *testing.T) {
	runner := newFakeRunner()
	agent := registers.NewAgent(runner, time.Hour, false, clockwork.NewFakeClock(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	agent.Start(ctx)
	waitRun(t, runner)
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	assert.NoError(t, agent.Shutdown(shutdownCtx))
}

func TestRegisterChecks_Modules(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Monitor.Resources.Enable = true
	cfg.Monitor.Nagios.Enable = true
	cfg.Monitor.Dogstreams = []string{"/var/log/app.log"}
	cfg.Agent.CustomChecks = []string{"uptime", "missing"}
	cfg.Monitor.ChecksD = []config.CheckConfig{
		{Name: "process", Instances: []map[string]any{{"search": "nginx"}}},
		{Name: "bad_plugin", Instances: []map[string]any{{}}},
	}

	var opts collector.Options
	names := registers.RegisterChecks(&opts, cfg, zap.NewNop())

	assert.Equal(t, []string{"dogstream", "nagios", "resources", "custom", "checks.d"}, names)
	assert.Len(t, opts.Legacy, 1)
	assert.Len(t, opts.Events, 1)
	assert.Len(t, opts.Res, 1)
	require.Len(t, opts.Custom, 1)
	assert.Equal(t, "uptime", opts.Custom[0].Name())
	require.Len(t, opts.ChecksD.Initialized, 1)
	assert.Equal(t, "process", opts.ChecksD.Initialized[0].Name())
	assert.Equal(t, []string{"bad_plugin"}, opts.ChecksD.FailedNames())
}

func TestRegisterChecks_AllDisabled(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Monitor.Resources.Enable = false

	var opts collector.Options
	assert.Empty(t, registers.RegisterChecks(&opts, cfg, zap.NewNop()))
	assert.Empty(t, opts.Legacy)
	assert.Empty(t, opts.ChecksD.Initialized)
}

func TestNewHostInfo_Override(t *testing.T) {
	cfg := config.NewDefaultConfig().Agent
	cfg.Hostname = "web-override"

	host := registers.NewHostInfo(cfg, zap.NewNop())
	assert.Equal(t, "web-override", host.Hostname(context.Background()))
}
