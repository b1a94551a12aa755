package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/davrell/pktwire/internal/observability"
	"github.com/davrell/pktwire/internal/protocol/channel"
	"github.com/davrell/pktwire/internal/protocol/packet"
)

// Handler serves one session until the peer goes away or an error makes
// the connection unusable. Returning io.EOF is a clean peer close.
type Handler func(ctx context.Context, sess *Session) error

// Session is one accepted connection being served, wrapped in a channel
// and tagged with an ID for log correlation.
type Session struct {
	ID      string
	Service string
	ch      *channel.Channel
}

func (s *Session) Receive() (packet.Packet, error) {
	p, err := s.ch.Receive()
	if err != nil {
		return packet.Packet{}, err
	}
	observability.RecordPacket(s.Service, "recv", len(p.Data))
	return p, nil
}

func (s *Session) Send(dataType uint32, data []byte) error {
	if err := s.ch.Send(dataType, data); err != nil {
		return err
	}
	observability.RecordPacket(s.Service, "send", len(data))
	return nil
}

func (s *Session) Close() error {
	return s.ch.Close()
}

func (s *Session) RemoteAddr() net.Addr {
	return s.ch.RemoteAddr()
}

func (svc *service) serveSession(ctx context.Context, conn net.Conn) {
	sess := &Session{
		ID:      uuid.NewString(),
		Service: svc.name,
		ch:      channel.FromConn(conn, svc.opts.Channel),
	}
	start := time.Now()
	observability.RecordSessionStart(svc.name)
	log.Info().
		Str("service", svc.name).
		Str("session", sess.ID).
		Str("remote", conn.RemoteAddr().String()).
		Msg("session start")

	// interrupt a blocked receive when the server shuts down
	stop := context.AfterFunc(ctx, func() { _ = sess.Close() })
	defer stop()
	defer func() {
		_ = sess.Close()
		observability.RecordSessionEnd(svc.name, time.Since(start))
	}()

	err := svc.handler(ctx, sess)
	if err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		log.Warn().
			Err(err).
			Str("service", svc.name).
			Str("session", sess.ID).
			Msg("session ended with error")
		return
	}
	log.Info().
		Str("service", svc.name).
		Str("session", sess.ID).
		Dur("duration", time.Since(start)).
		Msg("session end")
}

// EchoHandler answers every packet with the same type and data until the
// peer closes. It doubles as the wire-level diagnostic service.
func EchoHandler(ctx context.Context, sess *Session) error {
	for {
		p, err := sess.Receive()
		if err != nil {
			return err
		}
		if err := sess.Send(p.Header.DataType, p.Data); err != nil {
			return err
		}
	}
}
