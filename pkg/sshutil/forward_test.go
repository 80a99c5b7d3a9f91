package sshutil

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestForward_RelaysThroughJumphost(t *testing.T) {
	home := isolateHome(t)
	jump := startTestJumphost(t, nil)
	jump.trust(t, home)
	host, port := jump.hostPort(t)
	echoAddr := startEchoServer(t)

	client, err := Dial(context.Background(), Options{
		Host: host, Port: port, User: testUser, Password: testPassword, Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	fwd, err := Forward(client, echoAddr, nil)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	defer fwd.Close()

	local := fwd.LocalAddr()
	if !local.IP.IsLoopback() {
		t.Errorf("local address %s is not loopback", local)
	}
	if local.Port == 0 {
		t.Error("local port was not assigned")
	}
	if fwd.RemoteAddr() != echoAddr {
		t.Errorf("RemoteAddr = %q, want %q", fwd.RemoteAddr(), echoAddr)
	}

	// Two sequential connections both make it through.
	for i := 0; i < 2; i++ {
		conn, err := net.DialTimeout("tcp", local.String(), 2*time.Second)
		if err != nil {
			t.Fatalf("dial forwarder: %v", err)
		}
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

		if _, err := conn.Write([]byte("GET /redfish/v1\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if line != "GET /redfish/v1\n" {
			t.Errorf("echo = %q", line)
		}
		conn.Close()
	}
}

type failingDialer struct{}

func (failingDialer) Dial(network, addr string) (net.Conn, error) {
	return nil, stderrors.New("administratively prohibited")
}

func TestForward_DialFailureClosesLocalConn(t *testing.T) {
	fwd, err := Forward(failingDialer{}, "192.0.2.10:443", nil)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	defer fwd.Close()

	conn, err := net.DialTimeout("tcp", fwd.LocalAddr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial forwarder: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != io.EOF {
		t.Errorf("read err = %v, want EOF", err)
	}
}

func TestForward_CloseStopsListener(t *testing.T) {
	fwd, err := Forward(failingDialer{}, "192.0.2.10:443", nil)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	addr := fwd.LocalAddr().String()

	if err := fwd.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := fwd.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond); err == nil {
		conn.Close()
		t.Error("forwarder still accepting after Close")
	}
}

func TestForward_CloseTearsDownActiveConnections(t *testing.T) {
	home := isolateHome(t)
	jump := startTestJumphost(t, nil)
	jump.trust(t, home)
	host, port := jump.hostPort(t)
	echoAddr := startEchoServer(t)

	client, err := Dial(context.Background(), Options{
		Host: host, Port: port, User: testUser, Password: testPassword, Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	fwd, err := Forward(client, echoAddr, nil)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	conn, err := net.DialTimeout("tcp", fwd.LocalAddr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial forwarder: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte("ping\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		fwd.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return while a connection was open")
	}

	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Error("client connection still open after Close")
	}
}
