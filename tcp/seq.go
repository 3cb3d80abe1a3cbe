package tcp

// Sequence-space arithmetic helpers. All seq/ack comparisons in the state
// machine must go through these rather than native <, per the reference
// design note: "never use native `<` on the raw values" — sequence numbers
// wrap modulo 2^32 and a plain comparison breaks across the wraparound
// boundary.

// seqLt reports whether a precedes b in modular sequence space (a < b).
func seqLt(a, b uint32) bool { return int32(a-b) < 0 }

// seqLe reports whether a does not follow b in modular sequence space.
func seqLe(a, b uint32) bool { return int32(a-b) <= 0 }

// seqGt reports whether a follows b in modular sequence space (a > b).
func seqGt(a, b uint32) bool { return int32(a-b) > 0 }

// seqGe reports whether a does not precede b in modular sequence space.
func seqGe(a, b uint32) bool { return int32(a-b) >= 0 }

// seqInWindow reports whether seq lies in [nxt, nxt+wnd) in modular
// sequence space, treating wnd as an unsigned span.
func seqInWindow(seq, nxt uint32, wnd uint16) bool {
	return seqGe(seq, nxt) && seqLt(seq, nxt+uint32(wnd))
}
