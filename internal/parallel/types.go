package parallel

import (
	"context"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/logger"
	"github.com/rileyhilliard/idrac-power/internal/monitor"
	"github.com/rileyhilliard/idrac-power/internal/power"
	"github.com/rileyhilliard/idrac-power/internal/redfish"
	"github.com/rileyhilliard/idrac-power/internal/target"
)

// DefaultMaxWorkers caps concurrent targets when Config.MaxWorkers is unset.
const DefaultMaxWorkers = 5

// Connection is an authenticated session with one controller.
type Connection interface {
	monitor.Fetcher
	Close() error
}

// Connector opens Connections.
type Connector interface {
	Connect(ctx context.Context, ep redfish.Endpoint) (Connection, error)
}

// Tunnel is an open local forward to a controller.
type Tunnel interface {
	LocalHost() string
	LocalPort() int
	Close() error
}

// TunnelOpener opens a Tunnel to a target through the jumphost in params.
type TunnelOpener interface {
	Open(ctx context.Context, t target.Target, params target.TunnelParams) (Tunnel, error)
}

// Monitoring enables time-boxed sampling. A nil *Monitoring in Config means
// a single reading per target.
type Monitoring struct {
	Duration time.Duration
	Interval time.Duration
}

// Config holds configuration shared by every target in a run.
type Config struct {
	MaxWorkers     int                 // Max concurrent targets (0 = DefaultMaxWorkers)
	TunnelDefaults target.TunnelParams // Filled into each target's empty tunnel fields
	NoTunnel       bool                // Ignore every jumphost, run-wide and per target
	VerifySSL      bool
	Timeout        time.Duration // Per-request controller timeout (0 = redfish.DefaultTimeout)
	Monitor        *Monitoring

	// Reporter returns the progress sink for one target's monitoring loop.
	// Nil means quiet.
	Reporter func(t target.Target) monitor.Reporter

	// Events receives per-target start and completion notices. Nil means
	// quiet.
	Events Events

	Logger logger.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxWorkers: DefaultMaxWorkers,
		VerifySSL:  true,
		Timeout:    redfish.DefaultTimeout,
	}
}

// workers returns how many workers to start for n targets.
func (c Config) workers(n int) int {
	w := c.MaxWorkers
	if w <= 0 {
		w = DefaultMaxWorkers
	}
	if w > n {
		w = n
	}
	return w
}

// Events receives orchestration notices. Implementations must be safe for
// concurrent use.
type Events interface {
	TargetStarted(t target.Target)
	TargetCompleted(o Outcome)
}

// Outcome is the result of one target's task.
type Outcome struct {
	Name     string                   `json:"name" yaml:"name"`
	Address  string                   `json:"ip" yaml:"ip"`
	Success  bool                     `json:"success" yaml:"success"`
	Error    string                   `json:"error,omitempty" yaml:"error,omitempty"`
	Reading  *power.Snapshot          `json:"reading,omitempty" yaml:"reading,omitempty"`
	Report   *monitor.AggregateReport `json:"report,omitempty" yaml:"report,omitempty"`
	Duration time.Duration            `json:"-" yaml:"-"`

	// Err is the failure cause. It is not serialized; Error carries its
	// one-line message.
	Err error `json:"-" yaml:"-"`
}

// Result holds the outcomes of one run.
type Result struct {
	RunID    string        `json:"run_id" yaml:"run_id"`
	Total    int           `json:"total" yaml:"total"`
	Passed   int           `json:"success" yaml:"success"`
	Failed   int           `json:"failed" yaml:"failed"`
	Outcomes []Outcome     `json:"servers" yaml:"servers"` // completion order
	Duration time.Duration `json:"-" yaml:"-"`
}

// Success returns true if every target succeeded.
func (r *Result) Success() bool {
	return r.Failed == 0
}

// Successful returns the succeeded outcomes in completion order.
func (r *Result) Successful() []Outcome {
	return r.filter(true)
}

// FailedOutcomes returns the failed outcomes in completion order.
func (r *Result) FailedOutcomes() []Outcome {
	return r.filter(false)
}

func (r *Result) filter(success bool) []Outcome {
	out := make([]Outcome, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Success == success {
			out = append(out, o)
		}
	}
	return out
}
