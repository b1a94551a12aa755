package server

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/davrell/pktwire/internal/protocol/channel"
	"github.com/davrell/pktwire/internal/testutil/testlog"
)

func TestEchoServiceOverTCP(t *testing.T) {
	testlog.Start(t)
	s := New()
	addr, err := s.OpenInet("echo", "127.0.0.1", "0")
	if err != nil {
		t.Fatalf("open inet: %v", err)
	}
	if err := s.Register("echo", EchoHandler, Options{ConcurrentSessions: true, MaxSessions: 4}); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	host, svc, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	ch, err := channel.Dial(context.Background(), host, svc, channel.DefaultOptions())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if err := ch.Send(42, []byte("ping")); err != nil {
		t.Fatalf("send: %v", err)
	}
	p, err := ch.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if p.Header.DataType != 42 || string(p.Data) != "ping" {
		t.Fatalf("unexpected echo: %+v", p)
	}

	if err := ch.Send(7, nil); err != nil {
		t.Fatalf("send empty: %v", err)
	}
	p, err = ch.Receive()
	if err != nil {
		t.Fatalf("receive empty: %v", err)
	}
	if p.Header.DataType != 7 || p.Header.DataLen != 0 {
		t.Fatalf("unexpected empty echo: %+v", p)
	}

	_ = ch.Close()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop after cancel")
	}
}

func TestEchoServiceOverUnixSocket(t *testing.T) {
	testlog.Start(t)
	s := New()
	path := filepath.Join(t.TempDir(), "echo.sock")
	if _, err := s.OpenUnix("echo-local", path); err != nil {
		t.Fatalf("open unix: %v", err)
	}
	if err := s.Register("echo-local", EchoHandler, Options{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunService(ctx, "echo-local") }()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial unix: %v", err)
	}
	ch := channel.FromConn(conn, channel.DefaultOptions())
	if err := ch.Send(9, []byte("local")); err != nil {
		t.Fatalf("send: %v", err)
	}
	p, err := ch.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if p.Header.DataType != 9 || string(p.Data) != "local" {
		t.Fatalf("unexpected echo: %+v", p)
	}
	_ = ch.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run service: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("service did not stop after cancel")
	}
}

func TestRegisterRequiresOpenedListener(t *testing.T) {
	testlog.Start(t)
	s := New()
	if err := s.Register("missing", EchoHandler, Options{}); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
	if err := s.Register("", nil, Options{}); !errors.Is(err, ErrNoHandler) {
		t.Fatalf("expected ErrNoHandler for nil handler, got %v", err)
	}
}

func TestOpenInetRejectsDuplicateName(t *testing.T) {
	testlog.Start(t)
	s := New()
	if _, err := s.OpenInet("records", "127.0.0.1", "0"); err != nil {
		t.Fatalf("open inet: %v", err)
	}
	if _, err := s.OpenInet("records", "127.0.0.1", "0"); !errors.Is(err, ErrServiceExists) {
		t.Fatalf("expected ErrServiceExists, got %v", err)
	}
	if got := s.Services(); len(got) != 1 || got[0] != "records" {
		t.Fatalf("unexpected services: %v", got)
	}
	if _, err := s.Addr("records"); err != nil {
		t.Fatalf("addr: %v", err)
	}
	if _, err := s.Addr("missing"); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestRunRequiresHandlers(t *testing.T) {
	testlog.Start(t)
	s := New()
	if err := s.Run(context.Background()); err == nil {
		t.Fatalf("expected error with no services")
	}
	if _, err := s.OpenInet("idle", "127.0.0.1", "0"); err != nil {
		t.Fatalf("open inet: %v", err)
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrNoHandler) {
		t.Fatalf("expected ErrNoHandler, got %v", err)
	}
}

func TestShutdownInterruptsIdleSession(t *testing.T) {
	testlog.Start(t)
	s := New()
	addr, err := s.OpenInet("echo", "127.0.0.1", "0")
	if err != nil {
		t.Fatalf("open inet: %v", err)
	}
	if err := s.Register("echo", EchoHandler, Options{ConcurrentSessions: true}); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	host, svc, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	ch, err := channel.Dial(context.Background(), host, svc, channel.DefaultOptions())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	// session sits idle; shutdown must close it rather than wait forever
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop with idle session open")
	}
	if _, err := ch.Receive(); err == nil {
		t.Fatalf("expected receive to fail after server shutdown")
	}
}
