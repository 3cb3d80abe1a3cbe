package ipv4

// Device is the link-layer collaborator an Interface is attached to. The
// link layer itself (ARP, loopback drivers, physical devices) is external
// to this module and referenced only by this contract.
type Device interface {
	// MTU returns the device's maximum transmission unit in bytes.
	MTU() int
	// Name returns a short identifier for the device, used in logs only.
	Name() string
}

// Interface is a configured IPv4 network interface: a unicast address, its
// netmask, and the broadcast address derived from them. Interfaces are
// registered once before the stack starts running and the resulting table
// is immutable during ingress, so ingress reads require no locking.
type Interface struct {
	Unicast   Addr
	Netmask   Addr
	Broadcast Addr
	Device    Device
}

// NewInterface builds an Interface, deriving Broadcast from unicast and
// netmask as (unicast & netmask) | ~netmask.
func NewInterface(unicast, netmask Addr, dev Device) Interface {
	return Interface{
		Unicast:   unicast,
		Netmask:   netmask,
		Broadcast: unicast.And(netmask).Or(netmask.Not()),
		Device:    dev,
	}
}

// MTU returns the MTU of the underlying device, or 0 if none is attached.
func (ifc Interface) MTU() int {
	if ifc.Device == nil {
		return 0
	}
	return ifc.Device.MTU()
}

// Contains reports whether addr is directly reachable on this interface's
// subnet.
func (ifc Interface) Contains(addr Addr) bool {
	return addr.And(ifc.Netmask) == ifc.Unicast.And(ifc.Netmask)
}

// AcceptsDestination reports whether a datagram addressed to dst should be
// accepted for local delivery on this interface: dst must be the
// interface's own unicast address, the limited broadcast address, or this
// interface's directed broadcast address.
func (ifc Interface) AcceptsDestination(dst Addr) bool {
	return dst == ifc.Unicast || dst == AddrBroadcast || dst == ifc.Broadcast
}

// Table is the set of interfaces configured on the stack. It is built once
// at startup and never mutated afterwards (spec: "write-once, read-many;
// no lock is required on reads").
type Table []Interface

// SelectByDestination returns the interface that should accept a datagram
// with the given destination address, used by IP ingress to validate and
// route incoming traffic.
func (t Table) SelectByDestination(dst Addr) (Interface, bool) {
	for _, ifc := range t {
		if ifc.AcceptsDestination(dst) {
			return ifc, true
		}
	}
	return Interface{}, false
}

// SelectRoute returns the interface that would be used to reach dst,
// implementing the `ip_route_get_iface` contract: prefer an interface whose
// subnet contains dst, falling back to the first configured interface if
// none match directly (a single default route, since this module has no
// forwarding table of its own).
func (t Table) SelectRoute(dst Addr) (Interface, bool) {
	for _, ifc := range t {
		if ifc.Contains(dst) {
			return ifc, true
		}
	}
	if len(t) > 0 {
		return t[0], true
	}
	return Interface{}, false
}
