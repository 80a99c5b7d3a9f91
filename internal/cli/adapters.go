package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rileyhilliard/idrac-power/internal/parallel"
	"github.com/rileyhilliard/idrac-power/internal/redfish"
	"github.com/rileyhilliard/idrac-power/internal/target"
	"github.com/rileyhilliard/idrac-power/internal/tunnel"
)

// redfishConnector adapts redfish.Connector to parallel.Connector.
type redfishConnector struct {
	connector *redfish.Connector
}

func (c redfishConnector) Connect(ctx context.Context, ep redfish.Endpoint) (parallel.Connection, error) {
	client, err := c.connector.Connect(ctx, ep)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// tunnelOpener adapts tunnel.Provider to parallel.TunnelOpener.
type tunnelOpener struct {
	provider *tunnel.Provider
}

func (o tunnelOpener) Open(ctx context.Context, t target.Target, params target.TunnelParams) (parallel.Tunnel, error) {
	tun, err := o.provider.Open(ctx, t, params)
	if err != nil {
		return nil, err
	}
	return tun, nil
}

// announcingTunnels prints each opened tunnel to w.
type announcingTunnels struct {
	parallel.TunnelOpener
	w io.Writer
}

func (a announcingTunnels) Open(ctx context.Context, t target.Target, params target.TunnelParams) (parallel.Tunnel, error) {
	tun, err := a.TunnelOpener.Open(ctx, t, params)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.w, "SSH tunnel: localhost:%d -> %s -> %s\n", tun.LocalPort(), params.Jumphost, t.HostPort())
	return tun, nil
}
