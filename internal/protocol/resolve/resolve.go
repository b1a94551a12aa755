// Package resolve turns a host/service pair into an ordered candidate
// address list and a first-success connection.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var ErrExhausted = errors.New("resolve: no candidate address connected")

// Candidate is one resolved address a dial may attempt.
type Candidate struct {
	Network string
	Address string
}

// Candidates resolves host and service into dialable addresses in
// resolution order. Literal IP hosts skip the resolver, an empty host
// means the local loopback, and service may be a port number or name.
func Candidates(ctx context.Context, host, service string) ([]Candidate, error) {
	port, err := lookupPort(ctx, service)
	if err != nil {
		return nil, err
	}
	addrs, err := lookupHost(ctx, host)
	if err != nil {
		return nil, err
	}

	cands := make([]Candidate, 0, len(addrs))
	for _, addr := range addrs {
		tcp := net.TCPAddr{IP: addr.IP, Port: port, Zone: addr.Zone}
		cands = append(cands, Candidate{Network: "tcp", Address: tcp.String()})
	}
	return cands, nil
}

// DialFirst attempts each candidate in order and adopts the first
// connection that succeeds. A failed attempt releases its socket before
// the next is tried; its error is carried so exhaustion reports the most
// recent failure.
func DialFirst(ctx context.Context, dialer *net.Dialer, cands []Candidate) (net.Conn, Candidate, error) {
	if len(cands) == 0 {
		return nil, Candidate{}, fmt.Errorf("%w: empty candidate list", ErrExhausted)
	}
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	var lastErr error
	for _, cand := range cands {
		conn, err := dialer.DialContext(ctx, cand.Network, cand.Address)
		if err == nil {
			return conn, cand, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, Candidate{}, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

// Dial resolves host/service and connects to the first usable candidate.
func Dial(ctx context.Context, dialer *net.Dialer, host, service string) (net.Conn, Candidate, error) {
	cands, err := Candidates(ctx, host, service)
	if err != nil {
		return nil, Candidate{}, err
	}
	return DialFirst(ctx, dialer, cands)
}

func lookupPort(ctx context.Context, service string) (int, error) {
	service = strings.TrimSpace(service)
	if service == "" {
		return 0, fmt.Errorf("resolve: service required")
	}
	if port, err := strconv.Atoi(service); err == nil {
		if port < 0 || port > 65535 {
			return 0, fmt.Errorf("resolve: port out of range: %d", port)
		}
		return port, nil
	}
	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", service)
	if err != nil {
		return 0, fmt.Errorf("resolve service %q: %w", service, err)
	}
	return port, nil
}

func lookupHost(ctx context.Context, host string) ([]net.IPAddr, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return []net.IPAddr{
			{IP: net.IPv4(127, 0, 0, 1)},
			{IP: net.IPv6loopback},
		}, nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return []net.IPAddr{{IP: ip}}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	return addrs, nil
}
