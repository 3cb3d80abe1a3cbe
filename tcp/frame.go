package tcp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// sizeHeaderTCP is the fixed header size this module emits and expects:
// options are never emitted and are skipped over (not parsed) on receive,
// per spec: "Options are never emitted and are ignored on receive (header-
// length field honored for locating payload)."
const sizeHeaderTCP = 20

var errShortBuffer = errors.New("tcp: short buffer")

// NewFrame returns a Frame viewing buf. An error is returned if buf is
// smaller than the minimum TCP header size.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeaderTCP {
		return Frame{}, errShortBuffer
	}
	return Frame{buf: buf}, nil
}

// Frame is a view over the raw bytes of a TCP segment: source/destination
// port, sequence/ack numbers, data-offset+flags, window, checksum, urgent
// pointer, followed by payload. See RFC 9293 / RFC 793.
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice the frame was created with.
func (f Frame) RawData() []byte { return f.buf }

// SourcePort returns the segment's source port.
func (f Frame) SourcePort() uint16 { return binary.BigEndian.Uint16(f.buf[0:2]) }

// SetSourcePort sets the segment's source port.
func (f Frame) SetSourcePort(p uint16) { binary.BigEndian.PutUint16(f.buf[0:2], p) }

// DestinationPort returns the segment's destination port.
func (f Frame) DestinationPort() uint16 { return binary.BigEndian.Uint16(f.buf[2:4]) }

// SetDestinationPort sets the segment's destination port.
func (f Frame) SetDestinationPort(p uint16) { binary.BigEndian.PutUint16(f.buf[2:4], p) }

// Seq returns the sequence number of the segment's first octet (or, if SYN
// is set, the initial sequence number).
func (f Frame) Seq() uint32 { return binary.BigEndian.Uint32(f.buf[4:8]) }

// SetSeq sets the Seq field. See Frame.Seq.
func (f Frame) SetSeq(v uint32) { binary.BigEndian.PutUint32(f.buf[4:8], v) }

// Ack returns the next sequence number the sender of the segment expects
// to receive, valid only when the ACK flag is set.
func (f Frame) Ack() uint32 { return binary.BigEndian.Uint32(f.buf[8:12]) }

// SetAck sets the Ack field. See Frame.Ack.
func (f Frame) SetAck(v uint32) { binary.BigEndian.PutUint32(f.buf[8:12], v) }

// OffsetAndFlags returns the data-offset (in 32-bit words) and flags field.
func (f Frame) OffsetAndFlags() (offset uint8, flags Flags) {
	v := binary.BigEndian.Uint16(f.buf[12:14])
	return uint8(v >> 12), Flags(v).Mask()
}

// SetOffsetAndFlags sets the data-offset and flags field.
func (f Frame) SetOffsetAndFlags(offset uint8, flags Flags) {
	v := uint16(offset)<<12 | uint16(flags.Mask())
	binary.BigEndian.PutUint16(f.buf[12:14], v)
}

// HeaderLength returns the header length in bytes, as declared by the
// data-offset field, computed as (offset words) * 4.
func (f Frame) HeaderLength() int {
	offset, _ := f.OffsetAndFlags()
	return int(offset) * 4
}

// WindowSize returns the advertised window field.
func (f Frame) WindowSize() uint16 { return binary.BigEndian.Uint16(f.buf[14:16]) }

// SetWindowSize sets the window field.
func (f Frame) SetWindowSize(v uint16) { binary.BigEndian.PutUint16(f.buf[14:16], v) }

// CRC returns the checksum field.
func (f Frame) CRC() uint16 { return binary.BigEndian.Uint16(f.buf[16:18]) }

// SetCRC sets the checksum field.
func (f Frame) SetCRC(v uint16) { binary.BigEndian.PutUint16(f.buf[16:18], v) }

// UrgentPtr returns the urgent pointer field. Urgent data is a non-goal of
// this module; the field is carried on the wire but never interpreted.
func (f Frame) UrgentPtr() uint16 { return binary.BigEndian.Uint16(f.buf[18:20]) }

// SetUrgentPtr sets the urgent pointer field.
func (f Frame) SetUrgentPtr(v uint16) { binary.BigEndian.PutUint16(f.buf[18:20], v) }

// Payload returns everything in the frame after the declared header
// length (options, if any, are skipped, never parsed).
func (f Frame) Payload() []byte {
	return f.buf[f.HeaderLength():]
}

// ClearHeader zeros the fixed 20-byte header.
func (f Frame) ClearHeader() {
	for i := range f.buf[:sizeHeaderTCP] {
		f.buf[i] = 0
	}
}

func (f Frame) String() string {
	_, flags := f.OffsetAndFlags()
	return fmt.Sprintf("TCP :%d -> :%d seq=%d ack=%d wnd=%d %s",
		f.SourcePort(), f.DestinationPort(), f.Seq(), f.Ack(), f.WindowSize(), flags)
}
