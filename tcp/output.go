package tcp

import (
	"github.com/soypat/tcpip"
	"github.com/soypat/tcpip/ipv4"
)

// IPOutput is the collaborator this package calls to hand a completed TCP
// segment to the IP layer for transmission. The stack package supplies an
// implementation backed by ipv4.Output; tests supply a recording fake.
type IPOutput interface {
	Output(protocol uint8, payload []byte, src, dst ipv4.Addr) (int, error)
}

// emit builds a TCP segment with the given header fields and payload and
// hands it to out. The checksum is computed over a pseudo-header primed
// from local/foreign addresses via tcpip.Checksum791, folding in the TCP
// header and payload, exactly as RFC 793 §3.1 / RFC 1071 require.
func emit(out IPOutput, local, foreign ipv4.Endpoint, seq, ack uint32, flags Flags, wnd uint16, payload []byte) (int, error) {
	buf := make([]byte, sizeHeaderTCP+len(payload))
	frm, err := NewFrame(buf)
	if err != nil {
		return 0, err
	}
	frm.ClearHeader()
	frm.SetSourcePort(local.Port)
	frm.SetDestinationPort(foreign.Port)
	frm.SetSeq(seq)
	frm.SetAck(ack)
	frm.SetOffsetAndFlags(sizeHeaderTCP/4, flags.Mask())
	frm.SetWindowSize(wnd)
	copy(buf[sizeHeaderTCP:], payload)

	var c tcpip.Checksum791
	c.Write(local.Addr[:])
	c.Write(foreign.Addr[:])
	c.AddUint16(uint16(tcpip.IPProtoTCP))
	c.AddUint16(uint16(len(buf)))
	c.Write(buf)
	frm.SetCRC(c.Sum16())

	return out.Output(uint8(tcpip.IPProtoTCP), buf, local.Addr, foreign.Addr)
}

// output sends a segment on behalf of p, choosing seq per spec: the
// initial sequence number when the segment carries SYN, otherwise the
// next unsent octet.
func (p *pcb) output(out IPOutput, flags Flags, payload []byte) (int, error) {
	seq := p.snd.nxt
	if flags.Has(FlagSYN) {
		seq = p.iss
	}
	return emit(out, p.local, p.foreign, seq, p.rcv.nxt, flags, p.rcvWnd(), payload)
}

// resetFor builds the RST (or RST|ACK) response to a segment arriving for
// which no PCB exists (or whose PCB is CLOSED), per RFC 793 §3.9 "if the
// state is CLOSED". A segment that fails the acceptability test is
// answered with a bare ACK by arriveSequenced instead, not by resetFor.
// No PCB owns this reply, so it is a free function rather than a *pcb
// method.
func resetFor(out IPOutput, local, foreign ipv4.Endpoint, seg Segment) (int, error) {
	if seg.Flags.Has(FlagRST) {
		return 0, nil // never reset in reply to a RST.
	}
	if seg.Flags.Has(FlagACK) {
		return emit(out, local, foreign, seg.Ack, 0, FlagRST, 0, nil)
	}
	ack := seg.Seq + uint32(seg.Len)
	return emit(out, local, foreign, 0, ack, flagRstAck, 0, nil)
}
