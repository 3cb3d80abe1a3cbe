// Package tcp implements a user-space TCP connection engine covering the
// RFC 793 §3.9 segment-arrives subset needed for a passive-open, no-options,
// no-retransmission connection: three-way handshake acceptance, established
// data transfer bounded by the peer's advertised window, and RST-based
// teardown. FIN-based graceful close, active open, SYN cookies and options
// negotiation are not implemented; see the package's accompanying design
// notes for the full list of non-goals.
package tcp

import (
	"log/slog"
	"sync"

	"github.com/rs/xid"
	"github.com/soypat/tcpip/internal"
	"github.com/soypat/tcpip/ipv4"
)

// Router resolves the outbound interface for a destination address, the Go
// analogue of `ip_route_get_iface`. Engine.cachePathMTU uses it when a PCB
// reaches ESTABLISHED to derive the path MTU and the MSS that Send uses.
type Router interface {
	RouteInterface(dst ipv4.Addr) (ipv4.Interface, bool)
}

// Config configures an Engine. Logger may be nil, in which case the engine
// logs nothing (see internal.LogAttrs).
type Config struct {
	Output  IPOutput
	Router  Router
	Logger  *slog.Logger
	Metrics *Metrics
}

// Engine is the in-process TCP subsystem: a fixed PCB arena plus the single
// mutex serializing every table read/write, state-machine evaluation and
// segment emission, per the coarse-grained locking model this package
// implements. One Engine owns one PCB table; a process normally has one.
type Engine struct {
	mu      sync.Mutex
	tbl     *table
	cfg     Config
	log     *slog.Logger
	isnSeed uint32
}

// NewEngine returns a ready-to-use Engine. cfg.Output must be non-nil;
// cfg.Router must be non-nil if Send will ever be called. cfg.Logger may
// be nil: every log call in this package goes through internal.LogAttrs,
// which is a no-op on a nil logger.
func NewEngine(cfg Config) *Engine {
	e := &Engine{cfg: cfg, log: cfg.Logger}
	e.tbl = newTable(&e.mu)
	// Prand32 is a xorshift generator that never produces zero from a
	// non-zero seed; xid.New's process-wide counter gives each Engine a
	// distinct, non-zero starting point.
	e.isnSeed = uint32(xid.New().Counter())
	if e.isnSeed == 0 {
		e.isnSeed = 0x9E3779B9
	}
	if cfg.Metrics != nil {
		cfg.Metrics.attach(e.tbl.countByState)
	}
	return e
}

// nextISN returns the next initial sequence number, advancing the internal
// xorshift generator. Caller must hold e.mu.
func (e *Engine) nextISN() uint32 {
	e.isnSeed = internal.Prand32(e.isnSeed)
	return e.isnSeed
}

func (e *Engine) logenabled(lvl slog.Level) bool { return internal.LogEnabled(e.log, lvl) }

func (e *Engine) debug(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(e.log, slog.LevelDebug, msg, attrs...)
}

func (e *Engine) trace(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(e.log, internal.LevelTrace, msg, attrs...)
}

func (e *Engine) logerr(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(e.log, slog.LevelError, msg, attrs...)
}

// Metrics increment helpers are no-ops when cfg.Metrics is nil, so call
// sites never need a nil check of their own.
func (e *Engine) incAccepted() {
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.incAccepted()
	}
}

func (e *Engine) incDropped() {
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.incDropped()
	}
}

func (e *Engine) incReset() {
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.incReset()
	}
}

// cachePathMTU populates p.mtu/p.mss from the Router, once, at the moment
// a PCB reaches ESTABLISHED. A nil Router or unresolvable route leaves
// both zero; Send then surfaces errNoRoute via Engine.mss instead of
// guessing a segment size.
func (e *Engine) cachePathMTU(p *pcb) {
	if e.cfg.Router == nil {
		return
	}
	iface, ok := e.cfg.Router.RouteInterface(p.foreign.Addr)
	if !ok {
		return
	}
	p.mtu = iface.MTU()
	p.mss = p.mtu - minIPHeader - sizeHeaderTCP
	if p.mss <= 0 {
		p.mss = 0
	}
}
