package ipv4

import (
	"errors"
	"strconv"
)

// Addr is a 32-bit IPv4 address kept in its natural network-byte-order
// octet layout, matching the register-sized representation the reference
// TCP/IP stack this package is modeled on keeps throughout the wire path.
type Addr [4]byte

// Distinguished addresses.
var (
	AddrAny       = Addr{0, 0, 0, 0}
	AddrBroadcast = Addr{0xff, 0xff, 0xff, 0xff}
)

var errBadAddr = errors.New("ipv4: invalid address")

// ParseAddr parses a canonical dotted-quad string ("10.0.0.2") into an Addr.
// It rejects any non-canonical form: leading/trailing garbage, missing or
// extra dots, out-of-range or negative octets, or octets with leading
// zeros that would be ambiguous with octal notation.
func ParseAddr(s string) (Addr, error) {
	var a Addr
	start := 0
	for octet := 0; octet < 4; octet++ {
		end := start
		for end < len(s) && s[end] != '.' {
			end++
		}
		if end == start || end-start > 3 {
			return Addr{}, errBadAddr
		}
		digits := s[start:end]
		if len(digits) > 1 && digits[0] == '0' {
			return Addr{}, errBadAddr // no octal-looking octets.
		}
		for _, c := range []byte(digits) {
			if c < '0' || c > '9' {
				return Addr{}, errBadAddr
			}
		}
		v, err := strconv.ParseUint(digits, 10, 16)
		if err != nil || v > 255 {
			return Addr{}, errBadAddr
		}
		a[octet] = byte(v)
		if octet < 3 {
			if end == len(s) || s[end] != '.' {
				return Addr{}, errBadAddr
			}
			start = end + 1
		} else if end != len(s) {
			return Addr{}, errBadAddr
		}
	}
	return a, nil
}

// String returns the canonical dotted-quad representation of a.
func (a Addr) String() string {
	buf := make([]byte, 0, len("255.255.255.255"))
	for i, octet := range a {
		if i > 0 {
			buf = append(buf, '.')
		}
		buf = strconv.AppendUint(buf, uint64(octet), 10)
	}
	return string(buf)
}

// IsZero reports whether a is the AddrAny wildcard (0.0.0.0).
func (a Addr) IsZero() bool { return a == AddrAny }

// And returns the bitwise AND of a and mask.
func (a Addr) And(mask Addr) (r Addr) {
	for i := range a {
		r[i] = a[i] & mask[i]
	}
	return r
}

// Or returns the bitwise OR of a and b.
func (a Addr) Or(b Addr) (r Addr) {
	for i := range a {
		r[i] = a[i] | b[i]
	}
	return r
}

// Not returns the bitwise complement of a.
func (a Addr) Not() (r Addr) {
	for i := range a {
		r[i] = ^a[i]
	}
	return r
}

// Endpoint is an (address, port) pair. Port is the ordinary decimal port
// number (80, 40000, ...); wire (network-order) conversion happens only at
// the Frame accessor boundary via encoding/binary, so a PCB's local/foreign
// endpoints can be copied directly out of a parsed header with no risk of
// the host/network mixups the reference C implementation was prone to.
type Endpoint struct {
	Addr Addr
	Port uint16
}

// IsWildcard reports whether e is the catch-all endpoint used by a LISTEN
// socket with no foreign peer specified (ANY address, port 0).
func (e Endpoint) IsWildcard() bool { return e.Addr == AddrAny && e.Port == 0 }
