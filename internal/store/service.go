package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/davrell/pktwire/internal/protocol/packet"
)

// Request and response type tags for the record service. Responses start
// at 99 so a zero or small tag is never mistaken for a reply.
const (
	TypeSuccess  uint32 = 99  // reply: request served, payload is the record (may be empty)
	TypeFailure  uint32 = 100 // reply: internal error while serving
	TypeInvalid  uint32 = 101 // reply: malformed payload or unknown request type
	TypeNotFound uint32 = 102 // reply: no record under the requested name
	TypeGet      uint32 = 103 // request: payload is the record name
	TypePut      uint32 = 104 // request: payload is a put request (see EncodePutRequest)
)

// MaxNameLen bounds record names; the put request prefixes the name with
// a 16-bit length, and names also serve as store keys.
const MaxNameLen = 1024

var ErrBadRequest = errors.New("store: malformed request payload")

// EncodePutRequest frames a put request payload: a big-endian 16-bit name
// length, the name bytes, then the record bytes to the end of the payload.
func EncodePutRequest(name string, record []byte) ([]byte, error) {
	if len(name) == 0 || len(name) > MaxNameLen {
		return nil, fmt.Errorf("store: name length %d out of range [1,%d]", len(name), MaxNameLen)
	}
	out := make([]byte, 2, 2+len(name)+len(record))
	binary.BigEndian.PutUint16(out, uint16(len(name)))
	out = append(out, name...)
	out = append(out, record...)
	return out, nil
}

// DecodePutRequest splits a put request payload into name and record.
func DecodePutRequest(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("%w: put request shorter than name length prefix", ErrBadRequest)
	}
	nameLen := int(binary.BigEndian.Uint16(data))
	if nameLen == 0 || nameLen > MaxNameLen {
		return "", nil, fmt.Errorf("%w: name length %d out of range [1,%d]", ErrBadRequest, nameLen, MaxNameLen)
	}
	if len(data) < 2+nameLen {
		return "", nil, fmt.Errorf("%w: put request truncated before name end", ErrBadRequest)
	}
	return string(data[2 : 2+nameLen]), data[2+nameLen:], nil
}

// PacketSession is the slice of a served session the record service needs.
type PacketSession interface {
	Receive() (packet.Packet, error)
	Send(dataType uint32, data []byte) error
}

// Service answers get/put record requests over one session at a time.
type Service struct {
	store *Store
}

func NewService(st *Store) *Service {
	return &Service{store: st}
}

// Serve handles requests until the peer closes or the connection becomes
// unusable. A malformed or unknown request answers TypeInvalid and keeps
// the session alive; only transport errors end it.
func (svc *Service) Serve(ctx context.Context, sess PacketSession) error {
	for {
		req, err := sess.Receive()
		if err != nil {
			return err
		}

		switch req.Header.DataType {
		case TypeGet:
			err = svc.serveGet(req.Data, sess)
		case TypePut:
			err = svc.servePut(req.Data, sess)
		default:
			log.Debug().Uint32("data_type", req.Header.DataType).Msg("record request with unknown type")
			err = sess.Send(TypeInvalid, nil)
		}
		if err != nil {
			return err
		}
	}
}

func (svc *Service) serveGet(data []byte, sess PacketSession) error {
	name := string(data)
	if name == "" || len(name) > MaxNameLen {
		return sess.Send(TypeInvalid, nil)
	}
	record, err := svc.store.Get(name)
	if errors.Is(err, ErrNotFound) {
		log.Debug().Str("name", name).Msg("record not found")
		return sess.Send(TypeNotFound, nil)
	}
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("record fetch failed")
		return sess.Send(TypeFailure, nil)
	}
	log.Debug().Str("name", name).Int("bytes", len(record)).Msg("record served")
	return sess.Send(TypeSuccess, record)
}

func (svc *Service) servePut(data []byte, sess PacketSession) error {
	name, record, err := DecodePutRequest(data)
	if err != nil {
		log.Debug().Err(err).Msg("malformed put request")
		return sess.Send(TypeInvalid, nil)
	}
	if err := svc.store.Put(name, record); err != nil {
		log.Error().Err(err).Str("name", name).Msg("record save failed")
		return sess.Send(TypeFailure, nil)
	}
	log.Debug().Str("name", name).Int("bytes", len(record)).Msg("record stored")
	return sess.Send(TypeSuccess, nil)
}
