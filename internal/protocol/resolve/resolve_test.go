package resolve

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestCandidatesLiteralAddressSkipsLookup(t *testing.T) {
	cands, err := Candidates(context.Background(), "127.0.0.1", "4150")
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(cands) != 1 || cands[0].Address != "127.0.0.1:4150" || cands[0].Network != "tcp" {
		t.Fatalf("unexpected candidates: %+v", cands)
	}
}

func TestCandidatesEmptyHostMeansLoopback(t *testing.T) {
	cands, err := Candidates(context.Background(), "", "9000")
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected two loopback candidates, got %+v", cands)
	}
	if cands[0].Address != "127.0.0.1:9000" {
		t.Fatalf("expected v4 loopback first, got %q", cands[0].Address)
	}
	if cands[1].Address != "[::1]:9000" {
		t.Fatalf("expected v6 loopback second, got %q", cands[1].Address)
	}
}

func TestCandidatesRejectsBadService(t *testing.T) {
	if _, err := Candidates(context.Background(), "127.0.0.1", "70000"); err == nil {
		t.Fatalf("expected out-of-range port error")
	}
	if _, err := Candidates(context.Background(), "127.0.0.1", ""); err == nil {
		t.Fatalf("expected missing service error")
	}
}

func TestDialFirstFallsBackToSecondCandidate(t *testing.T) {
	dead := deadAddr(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go acceptOnce(ln)

	cands := []Candidate{
		{Network: "tcp", Address: dead},
		{Network: "tcp", Address: ln.Addr().String()},
	}
	dialer := &net.Dialer{Timeout: 2 * time.Second}
	conn, cand, err := DialFirst(context.Background(), dialer, cands)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer conn.Close()
	if cand.Address != ln.Addr().String() {
		t.Fatalf("expected second candidate adopted, got %q", cand.Address)
	}
	if conn.RemoteAddr().String() != ln.Addr().String() {
		t.Fatalf("connection bound to %q, want %q", conn.RemoteAddr(), ln.Addr())
	}
}

func TestDialFirstStopsAtFirstSuccess(t *testing.T) {
	first, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen first: %v", err)
	}
	defer first.Close()
	go acceptOnce(first)
	second, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen second: %v", err)
	}
	defer second.Close()

	cands := []Candidate{
		{Network: "tcp", Address: first.Addr().String()},
		{Network: "tcp", Address: second.Addr().String()},
	}
	conn, cand, err := DialFirst(context.Background(), &net.Dialer{Timeout: 2 * time.Second}, cands)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer conn.Close()
	if cand.Address != first.Addr().String() {
		t.Fatalf("expected first candidate adopted, got %q", cand.Address)
	}
}

func TestDialFirstExhaustionCarriesLastError(t *testing.T) {
	cands := []Candidate{
		{Network: "tcp", Address: deadAddr(t)},
		{Network: "tcp", Address: deadAddr(t)},
	}
	conn, _, err := DialFirst(context.Background(), &net.Dialer{Timeout: 2 * time.Second}, cands)
	if conn != nil {
		conn.Close()
		t.Fatalf("expected no connection")
	}
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected carried dial error, got %v", err)
	}
}

func TestDialFirstEmptyCandidateList(t *testing.T) {
	_, _, err := DialFirst(context.Background(), nil, nil)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

// deadAddr reserves a loopback port and releases it so connecting is
// refused.
func deadAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("release port: %v", err)
	}
	return addr
}

func acceptOnce(ln net.Listener) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	_ = conn.Close()
}
