package tcp

import (
	"log/slog"

	"github.com/soypat/tcpip"
	"github.com/soypat/tcpip/ipv4"
)

// Input implements ipv4.Handler: it parses an arriving TCP segment and
// drives it through the segment-arrives state machine. Register it with
// an ipv4.Dispatcher under tcpip.IPProtoTCP.
func (e *Engine) Input(payload []byte, length int, src, dst ipv4.Addr, iface ipv4.Interface) {
	if err := e.input(payload[:length], src, dst, iface); err != nil {
		e.logerr("tcp:input", slog.String("err", err.Error()))
	}
}

func (e *Engine) input(data []byte, src, dst ipv4.Addr, iface ipv4.Interface) error {
	if len(data) < sizeHeaderTCP {
		return errShortBuffer
	}
	frm, err := NewFrame(data)
	if err != nil {
		return err
	}
	if src == ipv4.AddrBroadcast || dst == ipv4.AddrBroadcast {
		return errBadPeer
	}

	var c tcpip.Checksum791
	c.Write(src[:])
	c.Write(dst[:])
	c.AddUint16(uint16(tcpip.IPProtoTCP))
	c.AddUint16(uint16(len(data)))
	c.Write(data)
	if c.Sum16() != 0 {
		return errBadChecksum
	}

	local := ipv4.Endpoint{Addr: dst, Port: frm.DestinationPort()}
	foreign := ipv4.Endpoint{Addr: src, Port: frm.SourcePort()}

	offset, flags := frm.OffsetAndFlags()
	hlen := int(offset) * 4
	if hlen < sizeHeaderTCP || hlen > len(data) {
		return errShortBuffer
	}
	payloadLen := uint(len(data) - hlen)
	segLen := payloadLen
	if flags.Has(FlagSYN) {
		segLen++
	}
	if flags.Has(FlagFIN) {
		segLen++
	}
	seg := Segment{
		Seq:   frm.Seq(),
		Ack:   frm.Ack(),
		Wnd:   frm.WindowSize(),
		Up:    frm.UrgentPtr(),
		Len:   segLen,
		Flags: flags,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.segmentArrives(local, foreign, seg, data[hlen:], iface)
	return nil
}
