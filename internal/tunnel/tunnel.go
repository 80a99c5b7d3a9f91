// Package tunnel opens SSH port forwards from a loopback port, through a
// jumphost, to a controller's HTTPS port.
package tunnel

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/rileyhilliard/idrac-power/internal/logger"
	"github.com/rileyhilliard/idrac-power/internal/target"
	"github.com/rileyhilliard/idrac-power/pkg/sshutil"
)

// Provider opens one tunnel per target. It holds no state between calls, so
// one Provider can serve concurrent targets.
type Provider struct {
	log     logger.Logger
	timeout time.Duration
	dial    func(ctx context.Context, opts sshutil.Options) (*sshutil.Client, error)
}

// NewProvider creates a provider. A nil logger discards output.
func NewProvider(log logger.Logger, timeout time.Duration) *Provider {
	if log == nil {
		log = logger.Noop()
	}
	return &Provider{log: log, timeout: timeout, dial: sshutil.Dial}
}

// Tunnel is an open forward. Close releases the local port and the SSH
// connection.
type Tunnel struct {
	client    *sshutil.Client
	forwarder *sshutil.Forwarder
	jumphost  string
	remote    string
	log       logger.Logger
}

// Open dials the jumphost in params and forwards a loopback port to the
// target's address and port. Errors have code ErrTunnel and wrap the cause.
func (p *Provider) Open(ctx context.Context, t target.Target, params target.TunnelParams) (*Tunnel, error) {
	if !params.Enabled() {
		return nil, errors.New(errors.ErrTunnel,
			fmt.Sprintf("No jumphost configured for %s", t.Name),
			"Set --jumphost or the jumphost column in the server file")
	}

	client, err := p.dial(ctx, sshutil.Options{
		Host:     params.Jumphost,
		User:     params.User,
		Port:     params.Port,
		KeyPath:  params.KeyPath,
		Password: params.Password,
		Timeout:  p.timeout,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, tunnelError(err, t, params)
	}

	remote := t.HostPort()
	fwd, err := sshutil.Forward(client, remote, func(err error) {
		p.log.Warn("[%s] tunnel connection failed: %v", t.Name, err)
	})
	if err != nil {
		client.Close()
		return nil, tunnelError(err, t, params)
	}

	p.log.Debug("[%s] tunnel open: %s -> %s -> %s", t.Name, fwd.LocalAddr(), params.Jumphost, remote)

	return &Tunnel{
		client:    client,
		forwarder: fwd,
		jumphost:  params.Jumphost,
		remote:    remote,
		log:       p.log,
	}, nil
}

// LocalHost returns the loopback address to connect to.
func (t *Tunnel) LocalHost() string {
	return t.forwarder.LocalAddr().IP.String()
}

// LocalPort returns the bound loopback port.
func (t *Tunnel) LocalPort() int {
	return t.forwarder.LocalAddr().Port
}

// Close stops forwarding and closes the SSH connection.
func (t *Tunnel) Close() error {
	fwdErr := t.forwarder.Close()
	sshErr := t.client.Close()
	t.log.Debug("tunnel to %s via %s closed", t.remote, t.jumphost)
	if fwdErr != nil && !stderrors.Is(fwdErr, net.ErrClosed) {
		return fwdErr
	}
	if sshErr != nil && !stderrors.Is(sshErr, net.ErrClosed) {
		return sshErr
	}
	return nil
}

func tunnelError(err error, t target.Target, params target.TunnelParams) error {
	return errors.WrapWithCode(err, errors.ErrTunnel,
		fmt.Sprintf("Couldn't open tunnel to %s via %s", t.Name, params.Jumphost),
		"Check the jumphost address and SSH credentials")
}
