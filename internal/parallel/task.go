package parallel

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/rileyhilliard/idrac-power/internal/monitor"
	"github.com/rileyhilliard/idrac-power/internal/redfish"
	"github.com/rileyhilliard/idrac-power/internal/target"
)

// RunTarget runs one target's task: tunnel, connect, collect. It never
// returns an error; failures are recorded in the Outcome. The tunnel and
// the connection are always released before it returns.
func (o *Orchestrator) RunTarget(ctx context.Context, t target.Target) (out Outcome) {
	start := time.Now()
	out = Outcome{Name: t.Name, Address: t.Address}
	defer func() { out.Duration = time.Since(start) }()

	ep := redfish.Endpoint{
		Host:      t.Address,
		Port:      t.Port,
		Username:  t.Username,
		Password:  t.Password,
		VerifySSL: o.config.VerifySSL,
		Timeout:   o.config.Timeout,
	}

	if params, ok := o.tunnelParams(t); ok {
		tun, err := o.openTunnel(ctx, t, params)
		if err != nil {
			return o.fail(out, err)
		}
		defer func() {
			if err := tun.Close(); err != nil {
				o.log.Warn("[%s] closing tunnel: %v", t.Name, err)
			}
		}()
		ep.Host = tun.LocalHost()
		ep.Port = tun.LocalPort()
		ep.OriginalHost = t.Address
		o.log.Debug("[%s] tunnel %s:%d -> %s -> %s", t.Name, ep.Host, ep.Port, params.Jumphost, t.HostPort())
	}

	conn, err := o.connector.Connect(ctx, ep)
	if err != nil {
		return o.fail(out, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			o.log.Debug("[%s] closing session: %v", t.Name, err)
		}
	}()

	if o.config.Monitor == nil {
		snap, err := conn.FetchMetrics(ctx)
		if err != nil {
			return o.fail(out, err)
		}
		out.Success = true
		out.Reading = snap
		return out
	}

	report, err := o.monitor(ctx, t, conn)
	if err != nil {
		return o.fail(out, err)
	}
	out.Success = true
	out.Report = report
	return out
}

// tunnelParams merges the target's overrides over the run defaults and
// reports whether a tunnel is needed.
func (o *Orchestrator) tunnelParams(t target.Target) (target.TunnelParams, bool) {
	params := t.Tunnel.Merge(o.config.TunnelDefaults)
	if o.config.NoTunnel || !params.Enabled() {
		return params, false
	}
	return params, true
}

func (o *Orchestrator) openTunnel(ctx context.Context, t target.Target, params target.TunnelParams) (Tunnel, error) {
	if o.tunnels == nil {
		return nil, errors.New(errors.ErrTunnel,
			fmt.Sprintf("Can't tunnel to %s: tunnelling is not available", t.Name),
			"Use --no-tunnel to connect directly")
	}
	return o.tunnels.Open(ctx, t, params)
}

func (o *Orchestrator) monitor(ctx context.Context, t target.Target, fetcher monitor.Fetcher) (*monitor.AggregateReport, error) {
	var reporter monitor.Reporter = monitor.NopReporter{}
	if o.config.Reporter != nil {
		if r := o.config.Reporter(t); r != nil {
			reporter = r
		}
	}

	m := o.config.Monitor
	collector := monitor.NewCollector(fetcher, reporter)
	loop := monitor.NewLoop(collector, m.Duration, m.Interval, reporter)

	series, err := loop.Run(ctx)
	if err != nil {
		return nil, err
	}
	return series.Report()
}

func (o *Orchestrator) fail(out Outcome, err error) Outcome {
	out.Success = false
	out.Err = err
	out.Error = errors.Message(err)
	return out
}
