package tcp

import (
	"sync"

	"github.com/rs/xid"
	"github.com/soypat/tcpip/internal"
	"github.com/soypat/tcpip/ipv4"
	"github.com/soypat/tcpip/sched"
)

// pcbTableSize is the fixed arena size: "a fixed-size arena of 16 slots;
// a slot's identity (integer index) serves as the externally-visible
// handle and is stable across the PCB's lifetime until release."
const pcbTableSize = 16

// recvBufSize is the fixed receive buffer capacity of every PCB.
const recvBufSize = 65535

// Handle identifies a PCB by its stable arena index.
type Handle int

// sendSeq mirrors the RFC 793 SND.* send-sequence-space variables.
type sendSeq struct {
	una uint32 // oldest unacknowledged sequence number
	nxt uint32 // next sequence number to send
	wnd uint16 // peer-advertised window
	up  uint16 // urgent pointer (unused, carried for completeness)
	wl1 uint32 // seq of segment used for last window update
	wl2 uint32 // ack of segment used for last window update
}

// recvSeq mirrors the RFC 793 RCV.* receive-sequence-space variables.
// wnd is not stored directly: it is always the free capacity of the PCB's
// ring buffer (internal.Ring.Free), so it can never drift out of sync with
// the buffer it describes.
type recvSeq struct {
	nxt uint32 // next sequence number expected
	up  uint16 // urgent pointer (unused, carried for completeness)
}

// pcb is a Protocol Control Block: the per-connection record holding
// endpoints, sequence-space state, receive buffer and wait/wake context.
type pcb struct {
	state   State
	local   ipv4.Endpoint
	foreign ipv4.Endpoint

	snd sendSeq
	iss uint32
	rcv recvSeq
	irs uint32

	mtu int
	mss int

	rx internal.Ring // receive buffer; capacity fixed at recvBufSize

	cond  *sched.Cond
	trace xid.ID // per-connection log correlation tag, assigned at allocate
}

// rcvWnd returns the currently advertised receive window: the ring
// buffer's free capacity.
func (p *pcb) rcvWnd() uint16 { return uint16(p.rx.Free()) }

// table is the fixed 16-slot PCB arena. Every method requires the caller
// to already hold mu; table never locks internally, matching the single
// stack-wide mutex discipline described in the concurrency model.
type table struct {
	mu   *sync.Mutex
	pcbs [pcbTableSize]pcb
}

func newTable(mu *sync.Mutex) *table {
	return &table{mu: mu}
}

// allocate scans for the first FREE slot, marks it CLOSED, and initializes
// its wait/wake context. Returns errPCBTableFull if none are free.
func (t *table) allocate() (Handle, *pcb, error) {
	for i := range t.pcbs {
		if t.pcbs[i].state == StateFree {
			p := &t.pcbs[i]
			p.state = StateClosed
			p.cond = sched.New(t.mu)
			p.rx = internal.Ring{Buf: make([]byte, recvBufSize)}
			p.trace = xid.New()
			return Handle(i), p, nil
		}
	}
	return -1, nil, errPCBTableFull
}

// release destroys p's wait/wake context. If a goroutine is still asleep
// on it, release interrupts every waiter and returns without zeroing the
// slot: the last waiter to observe no sleepers left is responsible for
// completing the release by calling release again.
func (t *table) release(p *pcb) {
	if p.cond.Destroy() {
		p.cond.Interrupt()
		return
	}
	*p = pcb{}
}

// get returns the PCB at handle h, or errHandleNotFound if h is out of
// range or the slot is FREE.
func (t *table) get(h Handle) (*pcb, error) {
	if h < 0 || int(h) >= len(t.pcbs) {
		return nil, errHandleNotFound
	}
	p := &t.pcbs[h]
	if p.state == StateFree {
		return nil, errHandleNotFound
	}
	return p, nil
}

// selectPCB implements the (local, foreign) lookup used by ingress:
//  1. an exact (local, foreign) match, if foreign is non-nil;
//  2. otherwise any PCB whose local endpoint matches;
//  3. falling back to a wildcard-foreign LISTEN PCB with matching local port.
func (t *table) selectPCB(local ipv4.Endpoint, foreign *ipv4.Endpoint) *pcb {
	var listenFallback *pcb
	for i := range t.pcbs {
		p := &t.pcbs[i]
		if p.state == StateFree {
			continue
		}
		localMatches := (p.local.Addr == ipv4.AddrAny || p.local.Addr == local.Addr) && p.local.Port == local.Port
		if !localMatches {
			continue
		}
		if foreign == nil {
			return p
		}
		if p.foreign.Addr == foreign.Addr && p.foreign.Port == foreign.Port {
			return p
		}
		if p.state == StateListen && p.foreign.IsWildcard() {
			listenFallback = p
		}
	}
	return listenFallback
}

// wakeAll broadcasts a wakeup to every non-FREE PCB's wait context. Called
// by the ingress path (arrives.go) when a PCB reaches ESTABLISHED, when an
// ACK advances snd.una, and when payload is delivered. The external-
// interrupt path uses interruptAll instead, which cancels rather than
// merely wakes.
func (t *table) wakeAll() {
	for i := range t.pcbs {
		if t.pcbs[i].state != StateFree {
			t.pcbs[i].cond.Wake()
		}
	}
}

// interruptAll posts an interrupt to every non-FREE PCB, waking any
// blocked API call with a distinguished INTERRUPTED result. This is the
// only cancellation path a blocking user call has.
func (t *table) interruptAll() {
	for i := range t.pcbs {
		if t.pcbs[i].state != StateFree {
			t.pcbs[i].cond.Interrupt()
		}
	}
}

// countByState returns the number of non-FREE PCBs in each state, used by
// the Metrics collector.
func (t *table) countByState() map[State]int {
	counts := make(map[State]int, 4)
	for i := range t.pcbs {
		s := t.pcbs[i].state
		if s != StateFree {
			counts[s]++
		}
	}
	return counts
}
