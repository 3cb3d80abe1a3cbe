package stack

import (
	"testing"
	"time"

	"github.com/soypat/tcpip"
	"github.com/soypat/tcpip/ipv4"
	"github.com/soypat/tcpip/tcp"
)

type testDevice struct{ mtu int }

func (d testDevice) MTU() int     { return d.mtu }
func (d testDevice) Name() string { return "test0" }

type capturingBus struct {
	handler func()
}

func (b *capturingBus) Subscribe(handler func()) { b.handler = handler }

const tcpHeaderSize = 20

// buildTCPSegment mirrors the framing tcp.emit performs, using only the
// package's exported Frame API, so tests can hand the stack a realistic
// wire-format TCP segment without reaching into the tcp package's
// internals.
func buildTCPSegment(srcAddr, dstAddr ipv4.Addr, srcPort, dstPort uint16, seq, ack uint32, flags tcp.Flags, wnd uint16, payload []byte) []byte {
	buf := make([]byte, tcpHeaderSize+len(payload))
	frm, err := tcp.NewFrame(buf)
	if err != nil {
		panic(err)
	}
	frm.ClearHeader()
	frm.SetSourcePort(srcPort)
	frm.SetDestinationPort(dstPort)
	frm.SetSeq(seq)
	frm.SetAck(ack)
	frm.SetOffsetAndFlags(tcpHeaderSize/4, flags)
	frm.SetWindowSize(wnd)
	copy(buf[tcpHeaderSize:], payload)

	var c tcpip.Checksum791
	c.Write(srcAddr[:])
	c.Write(dstAddr[:])
	c.AddUint16(uint16(tcpip.IPProtoTCP))
	c.AddUint16(uint16(len(buf)))
	c.Write(buf)
	frm.SetCRC(c.Sum16())
	return buf
}

func testInterface() (ipv4.Interface, ipv4.Addr, ipv4.Addr) {
	unicast := ipv4.Addr{10, 0, 0, 1}
	netmask := ipv4.Addr{255, 255, 255, 0}
	peer := ipv4.Addr{10, 0, 0, 2}
	return ipv4.NewInterface(unicast, netmask, testDevice{mtu: 1500}), unicast, peer
}

func TestStackOutputBuildsRoutedDatagram(t *testing.T) {
	iface, unicast, peer := testInterface()
	var captured []byte
	var capturedIface ipv4.Interface
	s := New(Config{
		Interfaces: ipv4.Table{iface},
		Transmit: func(ifc ipv4.Interface, frame []byte) (int, error) {
			capturedIface = ifc
			captured = frame
			return len(frame), nil
		},
	})

	payload := []byte("segment")
	_, err := s.Output(uint8(tcpip.IPProtoTCP), payload, unicast, peer)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if capturedIface.Unicast != unicast {
		t.Fatalf("Transmit got iface with unicast %v, want %v", capturedIface.Unicast, unicast)
	}

	frm, err := ipv4.NewFrame(captured)
	if err != nil {
		t.Fatalf("ipv4.NewFrame: %v", err)
	}
	if frm.Protocol() != tcpip.IPProtoTCP {
		t.Fatalf("protocol = %v, want TCP", frm.Protocol())
	}
	if frm.SourceAddr() != unicast || frm.DestinationAddr() != peer {
		t.Fatalf("src/dst = %v/%v, want %v/%v", frm.SourceAddr(), frm.DestinationAddr(), unicast, peer)
	}
}

func TestStackOutputFailsWithNoRoute(t *testing.T) {
	s := New(Config{Interfaces: nil, Transmit: func(ipv4.Interface, []byte) (int, error) { return 0, nil }})
	_, err := s.Output(uint8(tcpip.IPProtoTCP), []byte("x"), ipv4.Addr{1, 2, 3, 4}, ipv4.Addr{5, 6, 7, 8})
	if err == nil {
		t.Fatal("expected an error when no interface is configured")
	}
}

func TestStackRouteInterfaceResolves(t *testing.T) {
	iface, unicast, peer := testInterface()
	s := New(Config{Interfaces: ipv4.Table{iface}, Transmit: func(ipv4.Interface, []byte) (int, error) { return 0, nil }})

	got, ok := s.RouteInterface(peer)
	if !ok {
		t.Fatal("RouteInterface: no route found")
	}
	if got.Unicast != unicast {
		t.Fatalf("RouteInterface returned unicast %v, want %v", got.Unicast, unicast)
	}
}

func TestStackInputIPDispatchesStraySegmentToReset(t *testing.T) {
	iface, unicast, peer := testInterface()
	var captured []byte
	s := New(Config{
		Interfaces: ipv4.Table{iface},
		Transmit: func(ifc ipv4.Interface, frame []byte) (int, error) {
			captured = frame
			return len(frame), nil
		},
	})

	seg := buildTCPSegment(peer, unicast, 4000, 80, 5000, 0, tcp.FlagACK, 4096, nil)
	datagram := ipv4Wrap(t, peer, unicast, seg)

	if err := s.InputIP(datagram); err != nil {
		t.Fatalf("InputIP: %v", err)
	}
	if captured == nil {
		t.Fatal("expected the engine to emit a reset for the stray segment")
	}
	frm, err := tcp.NewFrame(captured[20:]) // ipv4 header is 20 bytes, no options.
	if err != nil {
		t.Fatalf("tcp.NewFrame: %v", err)
	}
	_, flags := frm.OffsetAndFlags()
	if flags != tcp.FlagRST {
		t.Fatalf("reply flags = %s, want RST", flags)
	}
}

func TestStackSubscribesEngineInterruptToBus(t *testing.T) {
	iface, _, _ := testInterface()
	bus := &capturingBus{}
	s := New(Config{
		Interfaces: ipv4.Table{iface},
		Transmit:   func(ipv4.Interface, []byte) (int, error) { return 0, nil },
		Bus:        bus,
	})
	if bus.handler == nil {
		t.Fatal("Stack did not subscribe to the event bus")
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Engine.OpenPassive(ipv4.Endpoint{Addr: iface.Unicast, Port: 80}, nil)
		done <- err
	}()

	// Give OpenPassive a moment to allocate its pcb and reach its sleep,
	// then fire the bus event.
	time.Sleep(20 * time.Millisecond)
	bus.handler()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected OpenPassive to fail with an interrupt")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OpenPassive did not unblock after the bus event fired")
	}
}

// ipv4Wrap builds a minimal (no-options) IPv4 datagram around payload using
// the package's own Output helper so the datagram is well-formed for the
// dispatcher's validation (checksum, total length, etc).
func ipv4Wrap(t *testing.T, src, dst ipv4.Addr, payload []byte) []byte {
	t.Helper()
	var out []byte
	_, err := ipv4.Output(func(data []byte) (int, error) {
		out = append([]byte(nil), data...)
		return len(data), nil
	}, tcpip.IPProtoTCP, payload, src, dst, 1)
	if err != nil {
		t.Fatalf("ipv4.Output: %v", err)
	}
	return out
}
