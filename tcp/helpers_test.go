package tcp

import (
	"sync"

	"github.com/soypat/tcpip/ipv4"
)

// capturedSeg is one segment recorded by recordOutput.
type capturedSeg struct {
	protocol uint8
	payload  []byte
	src, dst ipv4.Addr
}

// recordOutput is a tcp.IPOutput fake that records every emitted segment
// instead of transmitting it, so tests can inspect exactly what the state
// machine would have put on the wire.
type recordOutput struct {
	mu   sync.Mutex
	segs []capturedSeg
}

func (r *recordOutput) Output(protocol uint8, payload []byte, src, dst ipv4.Addr) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.segs = append(r.segs, capturedSeg{protocol: protocol, payload: cp, src: src, dst: dst})
	return len(payload), nil
}

func (r *recordOutput) last() capturedSeg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.segs[len(r.segs)-1]
}

func (r *recordOutput) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segs)
}

// fakeRouter always resolves to a single fixed interface, giving cachePathMTU
// something deterministic to cache.
type fakeRouter struct {
	iface ipv4.Interface
	ok    bool
}

func (f fakeRouter) RouteInterface(dst ipv4.Addr) (ipv4.Interface, bool) { return f.iface, f.ok }

type fakeDevice struct{ mtu int }

func (d fakeDevice) MTU() int     { return d.mtu }
func (d fakeDevice) Name() string { return "fake0" }

// mkSegment builds a raw TCP segment (header+payload) as seen on the wire
// from srcEP to dstEP, reusing the package's own emit() so the bytes are
// byte-for-byte what production code would produce (correct checksum
// included). It returns the bytes a peer at srcEP would have sent.
func mkSegment(srcEP, dstEP ipv4.Endpoint, seq, ack uint32, flags Flags, wnd uint16, payload []byte) []byte {
	rec := &recordOutput{}
	_, err := emit(rec, srcEP, dstEP, seq, ack, flags, wnd, payload)
	if err != nil {
		panic(err)
	}
	return rec.last().payload
}

func newTestEngine(out IPOutput, router Router) *Engine {
	return NewEngine(Config{Output: out, Router: router})
}
