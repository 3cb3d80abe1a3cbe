package tcp

import (
	"log/slog"

	"github.com/soypat/tcpip/internal"
	"github.com/soypat/tcpip/ipv4"
)

// segmentArrives is the RFC 793 §3.9 SEGMENT ARRIVES subset this module
// drives: PCB lookup, the no-PCB reset path, LISTEN's SYN acceptance, the
// sequence-number acceptability test, ACK processing, and ESTABLISHED
// payload delivery. Caller must hold e.mu.
func (e *Engine) segmentArrives(local, foreign ipv4.Endpoint, seg Segment, payload []byte, iface ipv4.Interface) {
	p := e.tbl.selectPCB(local, &foreign)
	if p == nil || p.state == StateClosed {
		e.trace("tcp:no-pcb", internal.SlogAddr4("src", (*[4]byte)(&foreign.Addr)), slog.Any("seg.flags", seg.Flags), slog.Uint64("seg.seq", uint64(seg.Seq)))
		e.incDropped()
		resetFor(e.cfg.Output, local, foreign, seg)
		if !seg.Flags.Has(FlagRST) {
			e.incReset()
		}
		return
	}

	switch p.state {
	case StateListen:
		e.arriveListen(p, local, foreign, seg)
	case StateSynSent:
		// Active open is not implemented; there is no path that drives a
		// PCB into SYN_SENT, so this is unreachable in practice. Kept to
		// document the RFC793 state explicitly, per the reference's own
		// stubbed-out handling of this branch.
		e.trace("tcp:syn-sent-unsupported", slog.String("err", errActiveOpenUnsup.Error()))
	case StateSynReceived, StateEstablished:
		e.arriveSequenced(p, seg, payload)
	default:
		// FIN-driven states are not reachable without FIN handling, a
		// documented non-goal; nothing drives a PCB into them.
	}
}

// arriveListen handles an arriving segment against a LISTEN PCB.
func (e *Engine) arriveListen(p *pcb, local, foreign ipv4.Endpoint, seg Segment) {
	if seg.Flags.Has(FlagRST) {
		return
	}
	if seg.Flags.Has(FlagACK) {
		emit(e.cfg.Output, local, foreign, seg.Ack, 0, FlagRST, 0, nil)
		e.incReset()
		return
	}
	if !seg.Flags.Has(FlagSYN) {
		return
	}

	p.local = local
	p.foreign = foreign
	p.rx.Reset()
	p.rcv.nxt = seg.Seq + 1
	p.irs = seg.Seq
	p.iss = e.nextISN()

	_, err := p.output(e.cfg.Output, flagSynAck, nil)
	if err != nil {
		e.logerr("tcp:listen-synack", slog.String("err", err.Error()))
		p.state = StateClosed
		e.tbl.release(p)
		return
	}
	p.snd.nxt = p.iss + 1
	p.snd.una = p.iss
	p.state = StateSynReceived
	e.debug("tcp:syn-received", slog.String("trace", p.trace.String()), internal.SlogAddr4("peer", (*[4]byte)(&foreign.Addr)))
}

// arriveSequenced handles an arriving segment against a SYN_RECEIVED or
// ESTABLISHED PCB: acceptability test, ACK requirement, ACK processing and
// (ESTABLISHED only) payload delivery.
func (e *Engine) arriveSequenced(p *pcb, seg Segment, payload []byte) {
	if !segmentAcceptable(seg, p.rcv.nxt, p.rcvWnd()) {
		e.incDropped()
		rej := newRejectError("seq outside receive window")
		e.trace("tcp:unacceptable", slog.String("reason", rej.Error()), slog.Uint64("seg.seq", uint64(seg.Seq)), slog.Uint64("rcv.nxt", uint64(p.rcv.nxt)))
		if !seg.Flags.Has(FlagRST) {
			p.output(e.cfg.Output, FlagACK, nil)
		}
		return
	}
	e.incAccepted()

	if !seg.Flags.Has(FlagACK) {
		return
	}

	switch p.state {
	case StateSynReceived:
		if seqLe(p.snd.una, seg.Ack) && seqLe(seg.Ack, p.snd.nxt) {
			p.state = StateEstablished
			e.cachePathMTU(p)
			e.tbl.wakeAll()
			e.debug("tcp:established", slog.String("trace", p.trace.String()))
			// Fall through to ESTABLISHED processing of this same segment.
			if !e.processEstablishedAck(p, seg) {
				return
			}
		} else {
			emit(e.cfg.Output, p.local, p.foreign, seg.Ack, 0, FlagRST, 0, nil)
			e.incReset()
			return
		}
	case StateEstablished:
		if !e.processEstablishedAck(p, seg) {
			return
		}
	}

	if p.state == StateEstablished && len(payload) > 0 {
		if seg.Seq != p.rcv.nxt {
			// In-window but out-of-order: the acceptability test only checks
			// that head or tail of the segment falls in the receive window,
			// not that it starts exactly at rcv.nxt. Writing it at the
			// buffer's current tail (as if it were in-order) would corrupt
			// rx, so it is dropped and ACKed with the unchanged rcv.nxt
			// instead, same as an unacceptable segment.
			p.output(e.cfg.Output, FlagACK, nil)
			return
		}
		n := len(payload)
		if n > p.rx.Free() {
			n = p.rx.Free() // defensive: acceptability test already bounds this.
		}
		p.rx.Write(payload[:n])
		p.rcv.nxt = seg.Seq + uint32(seg.Len)
		p.output(e.cfg.Output, FlagACK, nil)
		e.tbl.wakeAll()
	}
}

// processEstablishedAck applies the RFC 793 §3.9 ESTABLISHED ACK-processing
// rules to p for seg: advancing snd.una, updating snd.wnd/wl1/wl2 when the
// window-update condition holds, or replying with a bare ACK when seg.Ack
// acknowledges unsent data. Shared by the StateEstablished case and the
// SYN_RECEIVED→ESTABLISHED transition, which falls through into this same
// processing for the ACK that completed the handshake (spec §4.6). Returns
// false if the caller must stop processing this segment immediately.
func (e *Engine) processEstablishedAck(p *pcb, seg Segment) bool {
	switch {
	case seqLt(p.snd.una, seg.Ack) && seqLe(seg.Ack, p.snd.nxt):
		p.snd.una = seg.Ack
		if seqLt(p.snd.wl1, seg.Seq) || (p.snd.wl1 == seg.Seq && seqLe(p.snd.wl2, seg.Ack)) {
			p.snd.wnd = seg.Wnd
			p.snd.wl1 = seg.Seq
			p.snd.wl2 = seg.Ack
		}
		// A window update may let a sender stalled in Send progress;
		// per convention any ESTABLISHED ACK path wakes sleepers.
		e.tbl.wakeAll()
	case seqLt(seg.Ack, p.snd.una):
		// Duplicate ACK; ignore.
	case seqGt(seg.Ack, p.snd.nxt):
		p.output(e.cfg.Output, FlagACK, nil)
		return false
	}
	return true
}

// segmentAcceptable implements the RFC 793 §3.9 acceptability test table.
func segmentAcceptable(seg Segment, rcvNxt uint32, rcvWnd uint16) bool {
	switch {
	case seg.Len == 0 && rcvWnd == 0:
		return seg.Seq == rcvNxt
	case seg.Len == 0 && rcvWnd > 0:
		return seqInWindow(seg.Seq, rcvNxt, rcvWnd)
	case seg.Len > 0 && rcvWnd == 0:
		return false
	default: // seg.Len > 0 && rcvWnd > 0
		last := seg.Seq + uint32(seg.Len) - 1
		return seqInWindow(seg.Seq, rcvNxt, rcvWnd) || seqInWindow(last, rcvNxt, rcvWnd)
	}
}
