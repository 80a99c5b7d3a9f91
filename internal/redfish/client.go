// Package redfish reads chassis power telemetry from a Redfish management
// controller such as a Dell iDRAC.
package redfish

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/rileyhilliard/idrac-power/internal/logger"
	"github.com/rileyhilliard/idrac-power/internal/power"
	"github.com/stmcginnis/gofish"
	"github.com/stmcginnis/gofish/redfish"
)

// DefaultTimeout bounds each HTTP request to the controller.
const DefaultTimeout = 30 * time.Second

// Endpoint is where and how to reach a controller. When the controller sits
// behind a tunnel, Host/Port point at the local forwarder and OriginalHost
// names the controller itself; it is sent as the Host header and used for TLS
// server name verification.
type Endpoint struct {
	Host         string
	Port         int
	Username     string
	Password     string
	VerifySSL    bool
	OriginalHost string
	Timeout      time.Duration
}

// URL returns the controller base URL.
func (e Endpoint) URL() string {
	return "https://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Connector opens authenticated Redfish sessions.
type Connector struct {
	log logger.Logger
}

// NewConnector creates a connector. A nil logger discards output.
func NewConnector(log logger.Logger) *Connector {
	if log == nil {
		log = logger.Noop()
	}
	return &Connector{log: log}
}

// Connect authenticates with HTTP basic auth and reads the service root.
// The returned Client stays bound to ctx; cancelling it aborts any request
// in flight.
func (c *Connector) Connect(ctx context.Context, ep Endpoint) (*Client, error) {
	cfg := gofish.ClientConfig{
		Endpoint:   ep.URL(),
		Username:   ep.Username,
		Password:   ep.Password,
		Insecure:   !ep.VerifySSL,
		BasicAuth:  true,
		HTTPClient: newHTTPClient(ep),
	}

	c.log.Debug("connecting to %s (host header %q)", cfg.Endpoint, ep.hostHeader())

	api, err := gofish.ConnectContext(ctx, cfg)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("Couldn't connect to %s", ep.displayHost()),
			"Check the address, port and credentials; use --no-verify-ssl for self-signed certificates.")
	}

	return &Client{api: api, endpoint: ep, log: c.log}, nil
}

// Client is a connected Redfish session.
type Client struct {
	api      *gofish.APIClient
	endpoint Endpoint
	log      logger.Logger
}

// FetchMetrics reads the power resource of the first chassis.
func (c *Client) FetchMetrics(ctx context.Context) (*power.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chassis, err := c.api.Service.Chassis()
	if err != nil {
		return nil, c.wrap(err, "Couldn't list chassis")
	}
	if len(chassis) == 0 {
		return nil, errors.New(errors.ErrConnection,
			fmt.Sprintf("No chassis found on %s", c.endpoint.displayHost()),
			"The controller did not report any chassis under /redfish/v1/Chassis")
	}

	first := chassis[0]
	pwr, err := first.Power()
	if err != nil {
		return nil, c.wrap(err, fmt.Sprintf("Couldn't read power for chassis %s", first.ID))
	}
	if pwr == nil {
		return nil, errors.New(errors.ErrConnection,
			fmt.Sprintf("Chassis %s has no power resource", first.ID),
			"This controller may only expose PowerSubsystem, which is not supported")
	}

	c.log.Debug("read power for chassis %s", first.ID)
	return snapshotFromPower(first.ID, pwr), nil
}

// Close ends the session.
func (c *Client) Close() error {
	if c.api != nil {
		c.api.Logout()
	}
	return nil
}

func (c *Client) wrap(err error, msg string) error {
	return errors.WrapWithCode(err, errors.ErrConnection,
		fmt.Sprintf("%s on %s", msg, c.endpoint.displayHost()), "")
}

func (e Endpoint) hostHeader() string {
	if e.OriginalHost != "" {
		return e.OriginalHost
	}
	return e.Host
}

func (e Endpoint) displayHost() string {
	if e.OriginalHost != "" {
		return fmt.Sprintf("%s (via %s)", e.OriginalHost, net.JoinHostPort(e.Host, strconv.Itoa(e.Port)))
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func newHTTPClient(ep Endpoint) *http.Client {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: !ep.VerifySSL, //nolint:gosec // controllers ship self-signed certs; opt-in via --no-verify-ssl
	}
	if ep.OriginalHost != "" {
		tlsConfig.ServerName = ep.OriginalHost
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsConfig,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
	if ep.OriginalHost != "" {
		// Tunnel endpoints are loopback; never send them through a proxy.
		transport.Proxy = nil
	}

	var rt http.RoundTripper = transport
	if ep.OriginalHost != "" {
		rt = &hostRewriter{host: ep.OriginalHost, next: transport}
	}

	return &http.Client{Transport: rt, Timeout: timeout}
}

// hostRewriter sets the Host header on every request so virtual-host routing
// on the controller sees its own name instead of the tunnel's loopback address.
type hostRewriter struct {
	host string
	next http.RoundTripper
}

func (h *hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Host = h.host
	return h.next.RoundTrip(r)
}

// snapshotFromPower maps a Redfish Power resource to a Snapshot. Zero
// readings are treated as not reported, matching how controllers fill
// unsupported sensors.
func snapshotFromPower(chassisID string, p *redfish.Power) *power.Snapshot {
	s := &power.Snapshot{
		ChassisID:     chassisID,
		PowerSupplies: make([]power.PowerSupply, 0, len(p.PowerSupplies)),
	}

	if len(p.PowerControl) > 0 {
		pc := p.PowerControl[0]
		s.CurrentWatts = watts(pc.PowerConsumedWatts)
		s.CapacityWatts = watts(pc.PowerCapacityWatts)
		s.PowerLimitWatts = watts(pc.PowerLimit.LimitInWatts)
		s.AverageWatts = watts(pc.PowerMetrics.AverageConsumedWatts)
		s.MinWatts = watts(pc.PowerMetrics.MinConsumedWatts)
		s.MaxConsumedWatts = watts(pc.PowerMetrics.MaxConsumedWatts)
		s.AverageIntervalMin = watts(float32(pc.PowerMetrics.IntervalInMin))
	}

	for _, ps := range p.PowerSupplies {
		s.PowerSupplies = append(s.PowerSupplies, power.PowerSupply{
			Name:              ps.Name,
			State:             string(ps.Status.State),
			Health:            string(ps.Status.Health),
			CapacityWatts:     watts(ps.PowerCapacityWatts),
			LastOutputWatts:   watts(ps.LastPowerOutputWatts),
			InputWatts:        watts(ps.PowerInputWatts),
			OutputWatts:       watts(ps.PowerOutputWatts),
			EfficiencyPercent: percent(ps.EfficiencyPercent),
			LineInputVoltage:  reading(ps.LineInputVoltage),
		})
	}

	if len(p.Redundancy) > 0 {
		r := p.Redundancy[0]
		s.Redundancy = &power.Redundancy{
			Mode:         string(r.Mode),
			Status:       string(r.Status.Health),
			MinNeeded:    r.MinNumNeeded,
			MaxSupported: r.MaxNumSupported,
		}
	}

	return s
}

func watts(v float32) *int {
	if v == 0 {
		return nil
	}
	return power.Int(int(v))
}

func percent(v float32) *float64 {
	if v == 0 {
		return nil
	}
	return power.Float(math.Round(float64(v)*10) / 10)
}

func reading(v float32) *float64 {
	if v == 0 {
		return nil
	}
	return power.Float(float64(v))
}
