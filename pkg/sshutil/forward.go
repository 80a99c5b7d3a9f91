package sshutil

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rileyhilliard/idrac-power/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Dialer opens connections from the far side of an SSH connection.
// *ssh.Client satisfies it.
type Dialer interface {
	Dial(network, addr string) (net.Conn, error)
}

var _ Dialer = (*ssh.Client)(nil)

// Forwarder is a local TCP listener whose connections are relayed to a remote
// address through an SSH connection.
type Forwarder struct {
	listener net.Listener
	remote   string
	dialer   Dialer

	onError func(err error)

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// Forward binds 127.0.0.1 on an ephemeral port and relays every accepted
// connection to remoteAddr via d. onError, if non-nil, receives per-connection
// dial failures; the forwarder keeps accepting after them. The caller must
// Close the Forwarder.
func Forward(d Dialer, remoteAddr string, onError func(err error)) (*Forwarder, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTunnel,
			"Couldn't open a local port for the tunnel",
			"Check that loopback networking is available")
	}

	f := &Forwarder{
		listener: listener,
		remote:   remoteAddr,
		dialer:   d,
		onError:  onError,
		conns:    make(map[net.Conn]struct{}),
	}

	f.wg.Add(1)
	go f.acceptLoop()
	return f, nil
}

// LocalAddr returns the bound loopback address.
func (f *Forwarder) LocalAddr() *net.TCPAddr {
	return f.listener.Addr().(*net.TCPAddr)
}

// RemoteAddr returns the address connections are relayed to.
func (f *Forwarder) RemoteAddr() string {
	return f.remote
}

// Close stops accepting, closes every relayed connection and waits for the
// relay goroutines to exit. It is safe to call more than once.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	err := f.listener.Close()
	for c := range f.conns {
		c.Close()
	}
	f.mu.Unlock()

	f.wg.Wait()
	return err
}

func (f *Forwarder) acceptLoop() {
	defer f.wg.Done()
	for {
		local, err := f.listener.Accept()
		if err != nil {
			// Listener closed.
			return
		}

		remote, err := f.dialer.Dial("tcp", f.remote)
		if err != nil {
			local.Close()
			if f.onError != nil {
				f.onError(fmt.Errorf("dial %s through tunnel: %w", f.remote, err))
			}
			continue
		}

		if !f.track(local, remote) {
			local.Close()
			remote.Close()
			return
		}

		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			relay(local, remote)
			f.untrack(local, remote)
		}()
	}
}

func (f *Forwarder) track(conns ...net.Conn) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	for _, c := range conns {
		f.conns[c] = struct{}{}
	}
	return true
}

func (f *Forwarder) untrack(conns ...net.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range conns {
		delete(f.conns, c)
	}
}

// relay pipes data between two connections until one side closes or errors.
func relay(a, b net.Conn) {
	done := make(chan struct{}, 2)
	cp := func(dst, src net.Conn) {
		defer func() { done <- struct{}{} }()
		_, _ = io.Copy(dst, src)
	}
	go cp(a, b)
	go cp(b, a)

	<-done
	a.Close()
	b.Close()
	// Wait for the second copy to finish
	<-done
}
