package ipv4

import (
	"errors"

	"github.com/soypat/tcpip"
)

var (
	errTooShort        = errors.New("ipv4: datagram shorter than minimum header")
	errBadVersion      = errors.New("ipv4: not IPv4")
	errTruncatedHeader = errors.New("ipv4: buffer shorter than declared header length")
	errTruncatedTotal  = errors.New("ipv4: buffer shorter than declared total length")
	errBadChecksum     = errors.New("ipv4: header checksum mismatch")
	errFragmented      = errors.New("ipv4: fragmented datagrams are unsupported")
	errNoRecipient     = errors.New("ipv4: datagram not addressed to any local interface")
	errNoHandler       = errors.New("ipv4: no handler registered for protocol")
)

// Handler is the upper-layer protocol callback registered for a given
// IPProto. It receives the L4 payload, its length, the source/destination
// addresses, and the interface the datagram arrived on.
type Handler func(payload []byte, length int, src, dst Addr, iface Interface)

// Dispatcher routes validated IPv4 datagrams to registered upper-layer
// protocol handlers, the Go analogue of `ip_protocol_register` /
// `ip_input`'s dispatch-by-protocol-number loop.
type Dispatcher struct {
	ifaces   Table
	handlers map[tcpip.IPProto]Handler
}

// NewDispatcher returns a Dispatcher serving the given (immutable) interface
// table.
func NewDispatcher(ifaces Table) *Dispatcher {
	return &Dispatcher{ifaces: ifaces, handlers: make(map[tcpip.IPProto]Handler)}
}

// Register associates proto with handler. Must be called before Input is
// ever invoked concurrently with it; the reference stack performs all
// registration during startup, before the event loop runs.
func (d *Dispatcher) Register(proto tcpip.IPProto, handler Handler) {
	d.handlers[proto] = handler
}

// Interfaces returns the dispatcher's configured interface table.
func (d *Dispatcher) Interfaces() Table { return d.ifaces }

// Input validates an incoming IPv4 datagram and, if acceptable, dispatches
// its payload to the handler registered for its protocol number. Any
// rejection is returned as an error for the caller to log; this module's
// policy is to drop silently (after logging) and never panic on malformed
// input.
func (d *Dispatcher) Input(data []byte) error {
	if len(data) < sizeHeader {
		return errTooShort
	}
	frm, err := NewFrame(data)
	if err != nil {
		return err
	}
	if v, _ := frm.VersionAndIHL(); v != 4 {
		return errBadVersion
	}
	hlen := frm.HeaderLength()
	if len(data) < hlen {
		return errTruncatedHeader
	}
	total := int(frm.TotalLength())
	if len(data) < total {
		return errTruncatedTotal
	}
	fl := frm.FlagsAndFragmentOffset()
	if fl.MoreFragments() || fl.FragmentOffset() != 0 {
		return errFragmented
	}
	var c tcpip.Checksum791
	c.Write(data[:hlen])
	if c.Sum16() != 0 {
		return errBadChecksum
	}

	dst := frm.DestinationAddr()
	iface, ok := d.ifaces.SelectByDestination(dst)
	if !ok {
		return errNoRecipient
	}

	proto := frm.Protocol()
	handler, ok := d.handlers[proto]
	if !ok {
		return errNoHandler
	}
	src := frm.SourceAddr()
	payload := data[hlen:total]
	handler(payload, len(payload), src, dst, iface)
	return nil
}

// Output builds and transmits an IPv4 datagram carrying protocol proto and
// the given L4 payload from src to dst. id is the datagram identification
// field (the caller, typically a per-connection counter, owns uniqueness).
func Output(tx func(data []byte) (int, error), proto tcpip.IPProto, payload []byte, src, dst Addr, id uint16) (int, error) {
	buf := make([]byte, sizeHeader+len(payload))
	frm, err := NewFrame(buf)
	if err != nil {
		return 0, err
	}
	frm.ClearHeader()
	frm.SetVersionAndIHL(4, 5)
	frm.SetTotalLength(uint16(len(buf)))
	frm.SetID(id)
	frm.SetTTL(64)
	frm.SetProtocol(proto)
	frm.SetSourceAddr(src)
	frm.SetDestinationAddr(dst)
	copy(buf[sizeHeader:], payload)
	frm.SetCRC(frm.CalculateHeaderCRC())
	return tx(buf)
}
