package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderLen is the wire width of the fixed header in bytes. The first
// header field carries this value so a receiver can verify the header
// width it is about to parse.
const HeaderLen uint32 = 12

var (
	ErrShortHeader  = errors.New("packet: short header")
	ErrHeaderSize   = errors.New("packet: unexpected header size")
	ErrShortData    = errors.New("packet: short data")
	ErrDataTooLarge = errors.New("packet: data too large")
)

// Header is the fixed wire header, three big-endian uint32 fields.
type Header struct {
	HeaderSize uint32
	DataLen    uint32
	DataType   uint32
}

// Packet is one complete wire message. DataType is an application-defined
// tag; nothing in this layer interprets it.
type Packet struct {
	Header Header
	Data   []byte
}

// New builds a packet around data with the given type tag.
func New(dataType uint32, data []byte) Packet {
	return Packet{
		Header: Header{
			HeaderSize: HeaderLen,
			DataLen:    uint32(len(data)),
			DataType:   dataType,
		},
		Data: data,
	}
}

// Limits constrains packet decode/encode memory use.
type Limits struct {
	MaxDataBytes uint64
}

func DefaultLimits() Limits {
	return Limits{MaxDataBytes: 8 * 1024 * 1024}
}

// ReadPacket decodes one whole packet from r, accumulating partial reads
// until the header and the declared data length are satisfied. A stream
// that ends cleanly before any header byte returns io.EOF; one that ends
// mid-header returns ErrShortHeader, and one that ends inside the declared
// data length returns ErrShortData.
func ReadPacket(r io.Reader, limits Limits) (Packet, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Packet{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Packet{}, ErrShortHeader
		}
		return Packet{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Packet{}, err
	}
	if uint64(h.DataLen) > limits.MaxDataBytes {
		return Packet{}, ErrDataTooLarge
	}

	data := make([]byte, h.DataLen)
	if h.DataLen > 0 {
		n, err := io.ReadFull(r, data)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Packet{}, fmt.Errorf("%w: %d of %d bytes", ErrShortData, n, h.DataLen)
			}
			return Packet{}, err
		}
	}

	return Packet{Header: h, Data: data}, nil
}

// WritePacket encodes p to w, recomputing the size fields from the data
// actually attached so the header can never disagree with the body.
func WritePacket(w io.Writer, p Packet, limits Limits) error {
	if uint64(len(p.Data)) > limits.MaxDataBytes {
		return ErrDataTooLarge
	}

	h := p.Header
	h.HeaderSize = HeaderLen
	h.DataLen = uint32(len(p.Data))

	if _, err := w.Write(EncodeHeader(h)); err != nil {
		return err
	}
	if h.DataLen > 0 {
		if _, err := w.Write(p.Data); err != nil {
			return err
		}
	}
	return nil
}

// Encode returns the full wire image of p, header then data.
func Encode(p Packet) []byte {
	h := p.Header
	h.HeaderSize = HeaderLen
	h.DataLen = uint32(len(p.Data))

	out := make([]byte, 0, int(HeaderLen)+len(p.Data))
	out = append(out, EncodeHeader(h)...)
	out = append(out, p.Data...)
	return out
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.HeaderSize)
	binary.BigEndian.PutUint32(buf[4:8], h.DataLen)
	binary.BigEndian.PutUint32(buf[8:12], h.DataType)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != int(HeaderLen) {
		return Header{}, fmt.Errorf("packet: invalid header length: %d", len(b))
	}
	h := Header{
		HeaderSize: binary.BigEndian.Uint32(b[0:4]),
		DataLen:    binary.BigEndian.Uint32(b[4:8]),
		DataType:   binary.BigEndian.Uint32(b[8:12]),
	}
	if h.HeaderSize != HeaderLen {
		return Header{}, fmt.Errorf("%w: %d", ErrHeaderSize, h.HeaderSize)
	}
	return h, nil
}
