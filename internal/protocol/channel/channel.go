// Package channel pairs one established stream connection with the
// packet codec and exposes blocking whole-packet send and receive.
package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davrell/pktwire/internal/protocol/packet"
	"github.com/davrell/pktwire/internal/protocol/resolve"
)

var (
	ErrNotConnected     = errors.New("channel: not connected")
	ErrAlreadyConnected = errors.New("channel: already connected")
	ErrReceiveTimeout   = errors.New("channel: receive timed out")
)

// State tracks the channel lifecycle. Closed and Failed are terminal.
type State int32

const (
	StateUnconnected State = iota
	StateConnected
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures connect behavior and codec limits.
type Options struct {
	Limits         packet.Limits
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
}

func DefaultOptions() Options {
	return Options{
		Limits:         packet.DefaultLimits(),
		ConnectTimeout: 5 * time.Second,
		KeepAlive:      30 * time.Second,
	}
}

func (o Options) WithDefaults() Options {
	if o.Limits.MaxDataBytes == 0 {
		o.Limits = packet.DefaultLimits()
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 30 * time.Second
	}
	return o
}

// Channel owns exactly one connection. Send and Receive are for one
// logical caller at a time; Close is safe to invoke from another
// goroutine to interrupt a blocked call.
type Channel struct {
	opts  Options
	state atomic.Int32

	mu   sync.Mutex
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
}

func New(opts Options) *Channel {
	return &Channel{opts: opts.WithDefaults()}
}

// Dial builds a channel and connects it in one call.
func Dial(ctx context.Context, host, service string, opts Options) (*Channel, error) {
	ch := New(opts)
	if err := ch.Connect(ctx, host, service); err != nil {
		return nil, err
	}
	return ch, nil
}

// FromConn wraps an already-established connection, typically one handed
// over by a listener accept.
func FromConn(conn net.Conn, opts Options) *Channel {
	ch := &Channel{}
	ch.opts = opts
	ch.mu.Lock()
	ch.adopt(conn)
	ch.mu.Unlock()
	return ch
}

// Connect resolves host/service and adopts the first candidate address
// that accepts. Exhaustion parks the channel in StateFailed, which is
// terminal; the caller must build a fresh channel to try again.
func (ch *Channel) Connect(ctx context.Context, host, service string) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	switch ch.State() {
	case StateConnected:
		return ErrAlreadyConnected
	case StateClosed, StateFailed:
		return fmt.Errorf("channel: connect in terminal state %s", ch.State())
	}

	opts := ch.opts.WithDefaults()
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: opts.KeepAlive}
	conn, _, err := resolve.Dial(ctx, dialer, host, service)
	if err != nil {
		ch.state.Store(int32(StateFailed))
		return err
	}
	ch.adopt(conn)
	return nil
}

// adopt is called with mu held.
func (ch *Channel) adopt(conn net.Conn) {
	ch.opts = ch.opts.WithDefaults()
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
		_ = tcp.SetKeepAlive(true)
		_ = tcp.SetKeepAlivePeriod(ch.opts.KeepAlive)
	}
	ch.conn = conn
	ch.br = bufio.NewReader(conn)
	ch.bw = bufio.NewWriter(conn)
	ch.state.Store(int32(StateConnected))
}

// Send frames data under the given type tag and writes the whole packet.
// A write failure leaves the connection unusable; the caller should close.
func (ch *Channel) Send(dataType uint32, data []byte) error {
	if ch.State() != StateConnected {
		return ErrNotConnected
	}
	if err := packet.WritePacket(ch.bw, packet.New(dataType, data), ch.opts.Limits); err != nil {
		return fmt.Errorf("channel send: %w", err)
	}
	if err := ch.bw.Flush(); err != nil {
		return fmt.Errorf("channel send: %w", err)
	}
	return nil
}

// Receive blocks until one whole packet arrives or the connection
// signals closure. A clean peer close between packets returns io.EOF.
func (ch *Channel) Receive() (packet.Packet, error) {
	if ch.State() != StateConnected {
		return packet.Packet{}, ErrNotConnected
	}
	return packet.ReadPacket(ch.br, ch.opts.Limits)
}

// ReceiveTimeout bounds the wait for the next packet to begin arriving.
// Once the first byte is in, the read blocks like Receive; a timeout
// consumes nothing, so the stream stays aligned for a later attempt.
// A non-positive duration blocks forever.
func (ch *Channel) ReceiveTimeout(d time.Duration) (packet.Packet, error) {
	if ch.State() != StateConnected {
		return packet.Packet{}, ErrNotConnected
	}
	if d <= 0 {
		return ch.Receive()
	}

	conn := ch.conn
	if err := conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return packet.Packet{}, err
	}
	_, err := ch.br.Peek(1)
	_ = conn.SetReadDeadline(time.Time{})
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return packet.Packet{}, fmt.Errorf("%w: no packet within %s", ErrReceiveTimeout, d)
		}
		return packet.Packet{}, err
	}
	return packet.ReadPacket(ch.br, ch.opts.Limits)
}

// Close releases the connection at most once. Closing an unconnected
// channel is a no-op that still parks it in a terminal state; Failed
// stays Failed.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	switch ch.State() {
	case StateConnected:
		ch.state.Store(int32(StateClosed))
		if err := ch.conn.Close(); err != nil {
			return fmt.Errorf("channel close: %w", err)
		}
		return nil
	case StateUnconnected:
		ch.state.Store(int32(StateClosed))
		return nil
	default:
		return nil
	}
}

func (ch *Channel) State() State {
	return State(ch.state.Load())
}

func (ch *Channel) LocalAddr() net.Addr {
	if ch.conn == nil {
		return nil
	}
	return ch.conn.LocalAddr()
}

func (ch *Channel) RemoteAddr() net.Addr {
	if ch.conn == nil {
		return nil
	}
	return ch.conn.RemoteAddr()
}
