// Package stack wires the ipv4 and tcp packages together into a single
// running system: an IPv4 dispatcher that owns the interface table and
// a tcp.Engine registered as its protocol-6 handler, sharing one
// IPOutput/Router pair so TCP segments are framed and routed through the
// same interfaces ingress arrived on.
package stack

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/soypat/tcpip"
	"github.com/soypat/tcpip/ipv4"
	"github.com/soypat/tcpip/tcp"
)

var errNoRoute = errors.New("stack: no route to destination")

// EventBus is the out-of-band external event source the reference design
// subscribes to in order to deliver interrupts to every blocked TCP API
// call (signal delivery, shutdown requests, link-down events — whatever
// the embedding application considers a reason to cancel outstanding
// blocking calls). The subscribed handler must be safe to invoke from any
// goroutine; Stack's handler takes the TCP lock itself.
type EventBus interface {
	Subscribe(handler func())
}

// Config configures a Stack.
type Config struct {
	// Interfaces is the (immutable once running) set of IP interfaces this
	// stack answers for.
	Interfaces ipv4.Table
	// Transmit hands a fully-built IP datagram to the link layer for the
	// given egress interface. This is the one point of contact with the
	// link-layer device, deliberately narrow: Stack only ever needs "send
	// these bytes out this interface", never device internals.
	Transmit func(iface ipv4.Interface, frame []byte) (int, error)
	// Bus, if non-nil, is subscribed at construction time so external
	// events interrupt every blocked TCP call.
	Bus EventBus

	Logger  *slog.Logger
	Metrics *tcp.Metrics
}

// Stack is a running IPv4+TCP system.
type Stack struct {
	dispatcher *ipv4.Dispatcher
	transmit   func(iface ipv4.Interface, frame []byte) (int, error)
	Engine     *tcp.Engine
	nextID     uint32
}

// New builds a Stack from cfg: an ipv4.Dispatcher over cfg.Interfaces, a
// tcp.Engine registered for protocol 6, and (if cfg.Bus is non-nil) an
// interrupt subscription wired to the engine.
func New(cfg Config) *Stack {
	s := &Stack{
		dispatcher: ipv4.NewDispatcher(cfg.Interfaces),
		transmit:   cfg.Transmit,
	}
	s.Engine = tcp.NewEngine(tcp.Config{
		Output:  s,
		Router:  s,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	s.dispatcher.Register(tcpip.IPProtoTCP, s.Engine.Input)
	if cfg.Bus != nil {
		cfg.Bus.Subscribe(s.Engine.InterruptAll)
	}
	return s
}

// InputIP hands a raw IPv4 datagram read from the link layer to the
// dispatcher, which validates and routes it to the TCP engine (or any
// other registered protocol handler).
func (s *Stack) InputIP(datagram []byte) error {
	return s.dispatcher.Input(datagram)
}

// Interfaces returns the configured interface table.
func (s *Stack) Interfaces() ipv4.Table { return s.dispatcher.Interfaces() }

// Output implements tcp.IPOutput: it resolves the egress interface for
// dst, builds the IPv4 datagram around payload, and hands it to Transmit.
func (s *Stack) Output(protocol uint8, payload []byte, src, dst ipv4.Addr) (int, error) {
	iface, ok := s.dispatcher.Interfaces().SelectRoute(dst)
	if !ok {
		return 0, errNoRoute
	}
	id := uint16(atomic.AddUint32(&s.nextID, 1))
	return ipv4.Output(func(data []byte) (int, error) {
		return s.transmit(iface, data)
	}, tcpip.IPProto(protocol), payload, src, dst, id)
}

// RouteInterface implements tcp.Router.
func (s *Stack) RouteInterface(dst ipv4.Addr) (ipv4.Interface, bool) {
	return s.dispatcher.Interfaces().SelectRoute(dst)
}
