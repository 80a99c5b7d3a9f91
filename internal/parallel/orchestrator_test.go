package parallel

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/rileyhilliard/idrac-power/internal/logger"
	"github.com/rileyhilliard/idrac-power/internal/monitor"
	"github.com/rileyhilliard/idrac-power/internal/power"
	"github.com/rileyhilliard/idrac-power/internal/redfish"
	"github.com/rileyhilliard/idrac-power/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConnector hands out connections that report a fixed wattage per
// controller address.
type fakeConnector struct {
	mu        sync.Mutex
	watts     map[string]int
	connErr   map[string]error
	fetchErr  map[string]error
	delay     time.Duration
	endpoints []redfish.Endpoint
	conns     []*fakeConn
	active    int
	maxActive int
}

func newFakeConnector(watts map[string]int) *fakeConnector {
	return &fakeConnector{
		watts:    watts,
		connErr:  map[string]error{},
		fetchErr: map[string]error{},
	}
}

func (c *fakeConnector) Connect(ctx context.Context, ep redfish.Endpoint) (Connection, error) {
	addr := ep.Host
	if ep.OriginalHost != "" {
		addr = ep.OriginalHost
	}

	c.mu.Lock()
	c.endpoints = append(c.endpoints, ep)
	c.active++
	if c.active > c.maxActive {
		c.maxActive = c.active
	}
	c.mu.Unlock()

	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connErr[addr]; err != nil {
		c.active--
		return nil, err
	}
	conn := &fakeConn{owner: c, watts: c.watts[addr], err: c.fetchErr[addr]}
	c.conns = append(c.conns, conn)
	return conn, nil
}

func (c *fakeConnector) Endpoints() []redfish.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]redfish.Endpoint(nil), c.endpoints...)
}

type fakeConn struct {
	owner  *fakeConnector
	watts  int
	err    error
	closed bool
}

func (c *fakeConn) FetchMetrics(ctx context.Context) (*power.Snapshot, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &power.Snapshot{
		ChassisID:    "System.Embedded.1",
		CurrentWatts: power.Int(c.watts),
		AverageWatts: power.Int(c.watts),
	}, nil
}

func (c *fakeConn) Close() error {
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	c.closed = true
	c.owner.active--
	return nil
}

// fakeTunnels opens tunnels that report a fixed local port, failing for
// the jumphosts listed in fail.
type fakeTunnels struct {
	mu     sync.Mutex
	fail   map[string]error
	opened []target.TunnelParams
	open   []*fakeTunnel
}

func (f *fakeTunnels) Open(ctx context.Context, t target.Target, params target.TunnelParams) (Tunnel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, params)
	if err := f.fail[params.Jumphost]; err != nil {
		return nil, err
	}
	tun := &fakeTunnel{port: 40000 + len(f.opened)}
	f.open = append(f.open, tun)
	return tun, nil
}

type fakeTunnel struct {
	port   int
	closed bool
}

func (t *fakeTunnel) LocalHost() string { return "127.0.0.1" }
func (t *fakeTunnel) LocalPort() int    { return t.port }
func (t *fakeTunnel) Close() error {
	t.closed = true
	return nil
}

type recordingEvents struct {
	mu        sync.Mutex
	started   []string
	completed []string
}

func (e *recordingEvents) TargetStarted(t target.Target) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, t.Name)
}

func (e *recordingEvents) TargetCompleted(o Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed = append(e.completed, o.Name)
}

func tgt(name, addr string) target.Target {
	return target.Target{Name: name, Address: addr, Port: 443, Username: "root", Password: "calvin"}
}

func outcomeByName(t *testing.T, r *Result, name string) Outcome {
	t.Helper()
	for _, o := range r.Outcomes {
		if o.Name == name {
			return o
		}
	}
	t.Fatalf("no outcome for %s", name)
	return Outcome{}
}

func TestRunOneTunnelFailureDoesNotAffectOthers(t *testing.T) {
	connector := newFakeConnector(map[string]int{"192.0.2.11": 245, "192.0.2.12": 230})
	tunnels := &fakeTunnels{fail: map[string]error{
		"unreachable.example.com": errors.New(errors.ErrTunnel, "Couldn't open tunnel to srv-a via unreachable.example.com", ""),
	}}

	a := tgt("srv-a", "192.0.2.10")
	a.Tunnel.Jumphost = "unreachable.example.com"
	targets := []target.Target{a, tgt("srv-b", "192.0.2.11"), tgt("srv-c", "192.0.2.12")}

	result := NewOrchestrator(DefaultConfig(), connector, tunnels).Run(context.Background(), targets)

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.Success())

	failed := outcomeByName(t, result, "srv-a")
	assert.False(t, failed.Success)
	assert.True(t, errors.IsCode(failed.Err, errors.ErrTunnel))
	assert.Contains(t, failed.Error, "unreachable.example.com")
	assert.Nil(t, failed.Reading)

	b := outcomeByName(t, result, "srv-b")
	require.True(t, b.Success)
	assert.Empty(t, b.Error)
	assert.Equal(t, 245, *b.Reading.PrimaryWatts())

	c := outcomeByName(t, result, "srv-c")
	require.True(t, c.Success)
	assert.Equal(t, 230, *c.Reading.PrimaryWatts())

	// No metrics were attempted for the target whose tunnel failed.
	for _, ep := range connector.Endpoints() {
		assert.NotEqual(t, "192.0.2.10", ep.Host)
		assert.NotEqual(t, "192.0.2.10", ep.OriginalHost)
	}

	assert.Len(t, result.Successful(), 2)
	assert.Len(t, result.FailedOutcomes(), 1)
}

func TestRunTargetConnectsThroughTunnel(t *testing.T) {
	connector := newFakeConnector(map[string]int{"192.0.2.10": 312})
	tunnels := &fakeTunnels{}

	a := tgt("srv-a", "192.0.2.10")
	a.Tunnel.Jumphost = "bastion"

	cfg := DefaultConfig()
	cfg.VerifySSL = false
	out := NewOrchestrator(cfg, connector, tunnels).RunTarget(context.Background(), a)

	require.True(t, out.Success, out.Error)
	assert.Equal(t, 312, *out.Reading.AverageWatts)

	eps := connector.Endpoints()
	require.Len(t, eps, 1)
	assert.Equal(t, "127.0.0.1", eps[0].Host)
	assert.Equal(t, tunnels.open[0].port, eps[0].Port)
	assert.Equal(t, "192.0.2.10", eps[0].OriginalHost)
	assert.Equal(t, "root", eps[0].Username)
	assert.False(t, eps[0].VerifySSL)

	assert.True(t, tunnels.open[0].closed, "tunnel released")
	assert.True(t, connector.conns[0].closed, "session closed")
}

func TestRunTargetDirectConnection(t *testing.T) {
	connector := newFakeConnector(map[string]int{"192.0.2.10": 100})
	out := NewOrchestrator(DefaultConfig(), connector, nil).RunTarget(context.Background(), tgt("srv-a", "192.0.2.10"))

	require.True(t, out.Success, out.Error)
	eps := connector.Endpoints()
	require.Len(t, eps, 1)
	assert.Equal(t, "192.0.2.10", eps[0].Host)
	assert.Equal(t, 443, eps[0].Port)
	assert.Empty(t, eps[0].OriginalHost)
	assert.True(t, eps[0].VerifySSL)
	assert.Positive(t, out.Duration)
}

func TestRunTargetReleasesTunnelOnFailure(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name  string
		setup func(c *fakeConnector)
	}{
		{"connect fails", func(c *fakeConnector) { c.connErr["192.0.2.10"] = cause }},
		{"fetch fails", func(c *fakeConnector) { c.fetchErr["192.0.2.10"] = cause }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connector := newFakeConnector(map[string]int{})
			tt.setup(connector)
			tunnels := &fakeTunnels{}

			a := tgt("srv-a", "192.0.2.10")
			a.Tunnel.Jumphost = "bastion"
			out := NewOrchestrator(DefaultConfig(), connector, tunnels).RunTarget(context.Background(), a)

			assert.False(t, out.Success)
			assert.ErrorIs(t, out.Err, cause)
			assert.Equal(t, "boom", out.Error)
			require.Len(t, tunnels.open, 1)
			assert.True(t, tunnels.open[0].closed)
			for _, c := range connector.conns {
				assert.True(t, c.closed)
			}
		})
	}
}

func TestTunnelParamsOverrideDefaultsFieldByField(t *testing.T) {
	connector := newFakeConnector(map[string]int{"192.0.2.10": 1, "192.0.2.11": 2})
	tunnels := &fakeTunnels{}

	cfg := DefaultConfig()
	cfg.MaxWorkers = 1
	cfg.TunnelDefaults = target.TunnelParams{Jumphost: "global-jump", User: "admin", KeyPath: "~/.ssh/id_global"}

	a := tgt("srv-a", "192.0.2.10")
	a.Tunnel = target.TunnelParams{Jumphost: "site-jump", Password: "s3cret"}
	b := tgt("srv-b", "192.0.2.11")

	result := NewOrchestrator(cfg, connector, tunnels).Run(context.Background(), []target.Target{a, b})
	require.True(t, result.Success())

	require.Len(t, tunnels.opened, 2)
	assert.Equal(t, target.TunnelParams{
		Jumphost: "site-jump", User: "admin", KeyPath: "~/.ssh/id_global", Password: "s3cret",
	}, tunnels.opened[0])
	assert.Equal(t, cfg.TunnelDefaults, tunnels.opened[1])
}

func TestNoTunnelIgnoresJumphosts(t *testing.T) {
	connector := newFakeConnector(map[string]int{"192.0.2.10": 1})
	tunnels := &fakeTunnels{}

	cfg := DefaultConfig()
	cfg.NoTunnel = true
	cfg.TunnelDefaults.Jumphost = "global-jump"
	a := tgt("srv-a", "192.0.2.10")
	a.Tunnel.Jumphost = "site-jump"

	out := NewOrchestrator(cfg, connector, tunnels).RunTarget(context.Background(), a)

	require.True(t, out.Success, out.Error)
	assert.Empty(t, tunnels.opened)
	assert.Equal(t, "192.0.2.10", connector.Endpoints()[0].Host)
}

func TestTunnelRequiredWithoutOpener(t *testing.T) {
	a := tgt("srv-a", "192.0.2.10")
	a.Tunnel.Jumphost = "bastion"

	out := NewOrchestrator(DefaultConfig(), newFakeConnector(nil), nil).RunTarget(context.Background(), a)

	assert.False(t, out.Success)
	assert.True(t, errors.IsCode(out.Err, errors.ErrTunnel))
}

func TestRunRespectsMaxWorkers(t *testing.T) {
	connector := newFakeConnector(map[string]int{})
	connector.delay = 30 * time.Millisecond

	targets := make([]target.Target, 6)
	for i := range targets {
		targets[i] = tgt(fmt.Sprintf("srv-%d", i), fmt.Sprintf("192.0.2.%d", 10+i))
	}

	cfg := DefaultConfig()
	cfg.MaxWorkers = 2
	result := NewOrchestrator(cfg, connector, nil).Run(context.Background(), targets)

	assert.Equal(t, 6, result.Passed)
	assert.LessOrEqual(t, connector.maxActive, 2)
}

func TestConfigWorkers(t *testing.T) {
	tests := []struct {
		max, n, want int
	}{
		{0, 10, DefaultMaxWorkers},
		{-1, 2, 2},
		{3, 10, 3},
		{8, 2, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Config{MaxWorkers: tt.max}.workers(tt.n), "max=%d n=%d", tt.max, tt.n)
	}
}

func TestRunEmpty(t *testing.T) {
	result := NewOrchestrator(DefaultConfig(), newFakeConnector(nil), nil).Run(context.Background(), nil)

	assert.NotEmpty(t, result.RunID)
	assert.Empty(t, result.Outcomes)
	assert.True(t, result.Success())
}

func TestRunAssignsRunID(t *testing.T) {
	orch := NewOrchestrator(DefaultConfig(), newFakeConnector(map[string]int{}), nil)
	orch.newRunID = func() string { return "run-1" }

	result := orch.Run(context.Background(), []target.Target{tgt("a", "192.0.2.10")})
	assert.Equal(t, "run-1", result.RunID)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	connector := newFakeConnector(map[string]int{})
	events := &recordingEvents{}
	cfg := DefaultConfig()
	cfg.Events = events

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	targets := []target.Target{tgt("a", "192.0.2.10"), tgt("b", "192.0.2.11"), tgt("c", "192.0.2.12")}
	result := NewOrchestrator(cfg, connector, nil).Run(ctx, targets)

	require.Len(t, result.Outcomes, 3, "one outcome per target")
	assert.Equal(t, 3, result.Failed)
	for _, o := range result.Outcomes {
		assert.True(t, errors.IsCode(o.Err, errors.ErrInterrupted))
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
	assert.Empty(t, connector.Endpoints())
	assert.Empty(t, events.started)
	assert.Len(t, events.completed, 3)
}

func TestRunEmitsEvents(t *testing.T) {
	events := &recordingEvents{}
	cfg := DefaultConfig()
	cfg.Events = events

	targets := []target.Target{tgt("a", "192.0.2.10"), tgt("b", "192.0.2.11")}
	NewOrchestrator(cfg, newFakeConnector(map[string]int{}), nil).Run(context.Background(), targets)

	assert.ElementsMatch(t, []string{"a", "b"}, events.started)
	assert.ElementsMatch(t, []string{"a", "b"}, events.completed)
}

type countingReporter struct {
	monitor.NopReporter
	mu      sync.Mutex
	samples int
}

func (r *countingReporter) SampleCollected(monitor.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples++
}

func TestRunMonitoring(t *testing.T) {
	connector := newFakeConnector(map[string]int{"192.0.2.10": 245, "192.0.2.11": 230})

	var mu sync.Mutex
	reporters := map[string]*countingReporter{}

	cfg := DefaultConfig()
	cfg.Monitor = &Monitoring{Duration: 150 * time.Millisecond, Interval: 100 * time.Millisecond}
	cfg.Reporter = func(t target.Target) monitor.Reporter {
		mu.Lock()
		defer mu.Unlock()
		r := &countingReporter{}
		reporters[t.Name] = r
		return r
	}
	cfg.Logger = logger.NewBufferLogger()

	targets := []target.Target{tgt("a", "192.0.2.10"), tgt("b", "192.0.2.11")}
	result := NewOrchestrator(cfg, connector, nil).Run(context.Background(), targets)

	require.True(t, result.Success())
	for name, watts := range map[string]int{"a": 245, "b": 230} {
		o := outcomeByName(t, result, name)
		require.NotNil(t, o.Report, name)
		assert.Nil(t, o.Reading)
		assert.Equal(t, 2, o.Report.SampleCount, name)
		assert.Equal(t, 1, o.Report.ExpectedSamples, name)
		assert.False(t, o.Report.Interrupted)
		assert.Equal(t, watts, *o.Report.SystemAverageWatts)
		assert.Equal(t, 2, reporters[name].samples)
	}
}

func TestRunMonitoringInterruptedKeepsPartialReports(t *testing.T) {
	connector := newFakeConnector(map[string]int{"192.0.2.10": 245})

	cfg := DefaultConfig()
	cfg.Monitor = &Monitoring{Duration: time.Hour, Interval: time.Minute}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := NewOrchestrator(cfg, connector, nil).Run(ctx, []target.Target{tgt("a", "192.0.2.10")})

	assert.Less(t, time.Since(start), 5*time.Second)
	require.True(t, result.Success())
	report := result.Outcomes[0].Report
	require.NotNil(t, report)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.SampleCount)
	assert.True(t, connector.conns[0].closed)
}

func TestRunMonitoringNoSamples(t *testing.T) {
	connector := newFakeConnector(map[string]int{})
	connector.fetchErr["192.0.2.10"] = stderrors.New("503 Service Unavailable")

	cfg := DefaultConfig()
	cfg.Monitor = &Monitoring{Duration: time.Hour, Interval: time.Minute}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result := NewOrchestrator(cfg, connector, nil).Run(ctx, []target.Target{tgt("a", "192.0.2.10")})

	require.Len(t, result.Outcomes, 1)
	assert.False(t, result.Success())
	assert.True(t, errors.IsCode(result.Outcomes[0].Err, errors.ErrNoSamples))
}
