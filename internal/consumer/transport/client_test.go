package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/qubzes/screenreflect/internal/session"
)

func TestConnectTransitionsToReceiving(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(200 * time.Millisecond)
		}
	}()

	c := New(Config{Endpoint: ln.Addr().String()})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if c.State() != session.ConsumerReceiving {
		t.Fatalf("expected Receiving, got %v", c.State())
	}
	if c.Conn() == nil {
		t.Fatal("expected non-nil Conn after Connect")
	}
	c.Close()
}

func TestConnectFailureTransitionsToDisconnected(t *testing.T) {
	c := New(Config{Endpoint: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected Connect to fail against an unreachable port")
	}
	if c.State() != session.ConsumerDisconnected {
		t.Fatalf("expected Disconnected, got %v", c.State())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	c := New(Config{Endpoint: ln.Addr().String()})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestFailSurfacesLastErrorAndDisconnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(200 * time.Millisecond)
		}
	}()

	c := New(Config{Endpoint: ln.Addr().String()})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	sub := c.LastErrors().Subscribe(1)
	defer sub.Unsubscribe()

	c.Fail(errExpectedFailure)

	select {
	case msg := <-sub.C:
		if msg == "" {
			t.Fatal("expected non-empty last-error message")
		}
	case <-time.After(time.Second):
		t.Fatal("expected last-error to be published")
	}
	if c.State() != session.ConsumerDisconnected {
		t.Fatalf("expected Disconnected after Fail, got %v", c.State())
	}
}

var errExpectedFailure = &testError{"simulated transport failure"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
