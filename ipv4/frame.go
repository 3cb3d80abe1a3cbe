package ipv4

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/soypat/tcpip"
)

const sizeHeader = 20

var errShortBuffer = errors.New("ipv4: short buffer")

// NewFrame returns a new Frame with data set to buf. An error is returned
// if the buffer is smaller than the minimum IPv4 header size. Callers
// should still check the buffer against HeaderLength and TotalLength (as
// Dispatcher.Input does) before touching payload/options to avoid panics
// on malformed input.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeader {
		return Frame{}, errShortBuffer
	}
	return Frame{buf: buf}, nil
}

// Frame is a view over the raw bytes of an IPv4 datagram, exposing getters
// and setters for each header field. See RFC 791.
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice the frame was created with.
func (f Frame) RawData() []byte { return f.buf }

func (f Frame) ihl() uint8     { return f.buf[0] & 0xf }
func (f Frame) version() uint8 { return f.buf[0] >> 4 }

// HeaderLength returns the IPv4 header length in bytes, including options,
// computed correctly as (IHL & 0xf) << 2 from the single version/IHL byte.
func (f Frame) HeaderLength() int { return int(f.ihl()) << 2 }

// VersionAndIHL returns the version and IHL fields of the header.
func (f Frame) VersionAndIHL() (version, ihl uint8) {
	v := f.buf[0]
	return v >> 4, v & 0xf
}

// SetVersionAndIHL sets the version and IHL fields of the header.
func (f Frame) SetVersionAndIHL(version, ihl uint8) { f.buf[0] = version<<4 | ihl&0xf }

// ToS returns the Type-of-Service byte.
func (f Frame) ToS() ToS { return ToS(f.buf[1]) }

// SetToS sets the Type-of-Service byte.
func (f Frame) SetToS(tos ToS) { f.buf[1] = byte(tos) }

// TotalLength returns the entire datagram size in bytes, header included.
func (f Frame) TotalLength() uint16 { return binary.BigEndian.Uint16(f.buf[2:4]) }

// SetTotalLength sets TotalLength. See Frame.TotalLength.
func (f Frame) SetTotalLength(tl uint16) { binary.BigEndian.PutUint16(f.buf[2:4], tl) }

// ID returns the datagram identification field.
func (f Frame) ID() uint16 { return binary.BigEndian.Uint16(f.buf[4:6]) }

// SetID sets the ID field. See Frame.ID.
func (f Frame) SetID(id uint16) { binary.BigEndian.PutUint16(f.buf[4:6], id) }

// FlagsAndFragmentOffset returns the combined flags+fragment-offset field.
func (f Frame) FlagsAndFragmentOffset() Flags { return Flags(binary.BigEndian.Uint16(f.buf[6:8])) }

// SetFlagsAndFragmentOffset sets the combined flags+fragment-offset field.
func (f Frame) SetFlagsAndFragmentOffset(v Flags) { binary.BigEndian.PutUint16(f.buf[6:8], uint16(v)) }

// TTL returns the time-to-live field.
func (f Frame) TTL() uint8 { return f.buf[8] }

// SetTTL sets the TTL field.
func (f Frame) SetTTL(ttl uint8) { f.buf[8] = ttl }

// Protocol returns the upper-layer protocol number.
func (f Frame) Protocol() tcpip.IPProto { return tcpip.IPProto(f.buf[9]) }

// SetProtocol sets the upper-layer protocol number.
func (f Frame) SetProtocol(p tcpip.IPProto) { f.buf[9] = uint8(p) }

// CRC returns the header checksum field.
func (f Frame) CRC() uint16 { return binary.BigEndian.Uint16(f.buf[10:12]) }

// SetCRC sets the header checksum field.
func (f Frame) SetCRC(crc uint16) { binary.BigEndian.PutUint16(f.buf[10:12], crc) }

// SourceAddr returns the source address field.
func (f Frame) SourceAddr() Addr { return Addr(f.buf[12:16]) }

// SetSourceAddr sets the source address field.
func (f Frame) SetSourceAddr(a Addr) { copy(f.buf[12:16], a[:]) }

// DestinationAddr returns the destination address field.
func (f Frame) DestinationAddr() Addr { return Addr(f.buf[16:20]) }

// SetDestinationAddr sets the destination address field.
func (f Frame) SetDestinationAddr(a Addr) { copy(f.buf[16:20], a[:]) }

// Payload returns the datagram's payload, i.e. everything after the header
// (including options) up to TotalLength. The buffer must already hold
// HeaderLength and TotalLength bytes.
func (f Frame) Payload() []byte {
	off := f.HeaderLength()
	return f.buf[off:f.TotalLength()]
}

// ClearHeader zeros the fixed 20-byte header (not options).
func (f Frame) ClearHeader() {
	for i := range f.buf[:sizeHeader] {
		f.buf[i] = 0
	}
}

// CalculateHeaderCRC computes the IPv4 header checksum over the header
// excluding the CRC field itself (which must be zeroed first by the
// caller for a correct result when re-validating).
func (f Frame) CalculateHeaderCRC() uint16 {
	var c tcpip.Checksum791
	hlen := f.HeaderLength()
	c.Write(f.buf[0:10])
	c.Write(f.buf[12:hlen])
	return c.Sum16()
}

// PseudoHeaderTCP returns a Checksum791 primed with the TCP pseudo-header
// fields (src, dst, zero byte, protocol=6, tcp length) folded in, ready to
// have the TCP header and payload written on top.
func (f Frame) PseudoHeaderTCP(tcpLength uint16) tcpip.Checksum791 {
	var c tcpip.Checksum791
	src := f.SourceAddr()
	dst := f.DestinationAddr()
	c.Write(src[:])
	c.Write(dst[:])
	c.AddUint16(uint16(tcpip.IPProtoTCP))
	c.AddUint16(tcpLength)
	return c
}

func (f Frame) String() string {
	src, dst := f.SourceAddr(), f.DestinationAddr()
	tl := int(f.TotalLength())
	hl := f.HeaderLength()
	return fmt.Sprintf("IP %s SRC=%s DST=%s LEN=%d TTL=%d ID=%d",
		f.Protocol(), src, dst, tl-hl, f.TTL(), f.ID())
}
