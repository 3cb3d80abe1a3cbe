package tcp

import (
	"math/bits"
	"strconv"
)

// Flags is the low 6 bits of the TCP flags byte: FIN, SYN, RST, PSH, ACK,
// URG. ECN/CWR/NS bits are accepted on the wire (Mask strips them) but
// never acted on; congestion control is a non-goal of this module.
type Flags uint16

const (
	FlagFIN Flags = 1 << iota // FIN
	FlagSYN                   // SYN
	FlagRST                   // RST
	FlagPSH                   // PSH
	FlagACK                   // ACK
	FlagURG                   // URG
)

const flagMask = 0x3f

// Common flag combinations named throughout the state machine.
const (
	flagSynAck = FlagSYN | FlagACK
	flagRstAck = FlagRST | FlagACK
	flagPshAck = FlagPSH | FlagACK
)

// Mask returns flags with any bits outside the 6 defined TCP flag bits
// cleared.
func (flags Flags) Mask() Flags { return flags & flagMask }

// Has reports whether every bit in mask is set in flags.
func (flags Flags) Has(mask Flags) bool { return flags&mask == mask }

// HasAny reports whether any bit in mask is set in flags.
func (flags Flags) HasAny(mask Flags) bool { return flags&mask != 0 }

func (flags Flags) String() string {
	if flags == 0 {
		return "[]"
	}
	const letters = "FSRPAU"
	buf := make([]byte, 0, 2+2*bits.OnesCount16(uint16(flags)))
	buf = append(buf, '[')
	first := true
	for i := 0; i < len(letters); i++ {
		if flags&(1<<uint(i)) == 0 {
			continue
		}
		if !first {
			buf = append(buf, ',')
		}
		first = false
		buf = append(buf, letters[i])
	}
	buf = append(buf, ']')
	return string(buf)
}

// State enumerates the states a TCP connection progresses through, per
// RFC 793 §3.2. This module drives a subset of the transitions between
// them (see package doc); the rest (FIN_WAIT*, CLOSING, TIME_WAIT,
// LAST_ACK, CLOSE_WAIT) are named so the PCB state field has a complete
// vocabulary, but nothing transitions a PCB into them.
type State uint8

const (
	StateFree State = iota
	StateClosed
	StateListen
	StateSynSent
	StateSynReceived
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateClosing
	StateTimeWait
	StateCloseWait
	StateLastAck
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "FREE"
	case StateClosed:
		return "CLOSED"
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynReceived:
		return "SYN_RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN_WAIT1"
	case StateFinWait2:
		return "FIN_WAIT2"
	case StateClosing:
		return "CLOSING"
	case StateTimeWait:
		return "TIME_WAIT"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateLastAck:
		return "LAST_ACK"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Segment holds the fields of an arriving segment needed by the state
// machine, derived from a parsed Frame. Len is the RFC 793 "logical
// segment length": the payload octet count plus one for each of SYN and
// FIN, the quantity sequence-space arithmetic operates on.
type Segment struct {
	Seq   uint32
	Ack   uint32
	Wnd   uint16
	Up    uint16
	Len   uint
	Flags Flags
}

// Last returns the sequence number of the last octet occupied by the
// segment, valid only when Len > 0.
func (seg Segment) Last() uint32 {
	if seg.Len == 0 {
		return seg.Seq
	}
	return seg.Seq + uint32(seg.Len) - 1
}
