package tcp

import (
	"log/slog"

	"github.com/soypat/tcpip/ipv4"
	"github.com/soypat/tcpip/sched"
)

// minIPHeader is the smallest IPv4 header this module ever builds (no
// options), used by Send to size the maximum segment.
const minIPHeader = 20

// OpenPassive allocates a PCB, puts it into LISTEN on local, restricted (if
// foreign is non-nil) to that single peer, and blocks until the handshake
// completes or fails. It returns once the PCB reaches ESTABLISHED.
func (e *Engine) OpenPassive(local ipv4.Endpoint, foreign *ipv4.Endpoint) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, p, err := e.tbl.allocate()
	if err != nil {
		return -1, err
	}
	p.local = local
	if foreign != nil {
		p.foreign = *foreign
	}
	p.state = StateListen
	e.debug("tcp:listen", slog.String("trace", p.trace.String()), slog.Uint64("port", uint64(local.Port)))

	for {
		state := p.state
		result := p.cond.Sleep()
		if result == sched.Interrupted {
			p.state = StateClosed
			e.tbl.release(p)
			return -1, errInterrupted
		}
		if p.state == state {
			continue // spurious wake unrelated to this PCB's transition.
		}
		switch p.state {
		case StateSynReceived:
			continue // transient; keep waiting.
		case StateEstablished:
			return h, nil
		default:
			e.tbl.release(p)
			return -1, errNotEstablished
		}
	}
}

// Send transmits data on an ESTABLISHED connection, blocking while the
// peer's advertised window is full. It returns the number of bytes
// actually sent. That is fewer than len(data) with a nil error if an
// interrupt arrives after some progress was made, and fewer than len(data)
// with an error if the connection leaves ESTABLISHED while Send sleeps or
// an output fails partway.
func (e *Engine) Send(h Handle, data []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.tbl.get(h)
	if err != nil {
		return 0, err
	}
	if p.state != StateEstablished {
		return 0, errNotEstablished
	}

	mss, err := e.mss(p)
	if err != nil {
		return 0, err
	}
	sent := 0
	for sent < len(data) {
		room := int(p.snd.wnd) - int(p.snd.nxt-p.snd.una)
		if room <= 0 {
			result := p.cond.Sleep()
			if result == sched.Interrupted {
				// A concurrent Close may have found a waiter on this cond
				// and deferred the actual release to it (table.release);
				// p.state is already StateClosed in that case, and this
				// waiter must complete the release it deferred.
				if p.state == StateClosed {
					e.tbl.release(p)
				}
				if sent > 0 {
					return sent, nil
				}
				return 0, errInterrupted
			}
			if p.state != StateEstablished {
				return sent, errNotEstablished
			}
			continue
		}
		n := len(data) - sent
		if n > mss {
			n = mss
		}
		if n > room {
			n = room
		}
		chunk := data[sent : sent+n]
		_, err := p.output(e.cfg.Output, flagPshAck, chunk)
		if err != nil {
			p.state = StateClosed
			e.tbl.release(p)
			return sent, errFatalTx
		}
		p.snd.nxt += uint32(n)
		sent += n
	}
	return sent, nil
}

// mss returns the maximum segment size cached on p at ESTABLISHED
// transition (see Engine.cachePathMTU). A route that could not be
// resolved at that time (cfg.Router nil, no matching interface, or an
// MTU too small to carry even a bare header) leaves p.mss at zero;
// Send surfaces that as errNoRoute, per the EXHAUSTED error kind
// ("no route") rather than silently falling back to a guessed size.
func (e *Engine) mss(p *pcb) (int, error) {
	if p.mss <= 0 {
		return 0, errNoRoute
	}
	return p.mss, nil
}

// Receive copies up to len(out) bytes of buffered payload into out,
// blocking while the receive buffer is empty. It returns the number of
// bytes copied.
func (e *Engine) Receive(h Handle, out []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.tbl.get(h)
	if err != nil {
		return 0, err
	}
	if p.state != StateEstablished {
		return 0, errNotEstablished
	}

	for {
		if p.rx.Buffered() > 0 {
			n, err := p.rx.Read(out)
			if err != nil {
				return 0, err
			}
			return n, nil
		}
		result := p.cond.Sleep()
		if result == sched.Interrupted {
			// See Send's identical check: complete a release a concurrent
			// Close deferred to this waiter.
			if p.state == StateClosed {
				e.tbl.release(p)
			}
			return 0, errInterrupted
		}
		if p.state != StateEstablished {
			return 0, errNotEstablished
		}
	}
}

// InterruptAll posts an interrupt to every non-FREE PCB, unblocking any
// in-progress OpenPassive/Send/Receive call with errInterrupted. This is
// the entry point an external event-bus subscriber calls.
func (e *Engine) InterruptAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tbl.interruptAll()
}

// Close emits a RST on the PCB's current state and releases it. Graceful
// FIN-based close is not implemented.
func (e *Engine) Close(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.tbl.get(h)
	if err != nil {
		return err
	}
	emit(e.cfg.Output, p.local, p.foreign, p.snd.nxt, p.rcv.nxt, FlagRST, 0, nil)
	p.state = StateClosed
	e.tbl.release(p)
	return nil
}
