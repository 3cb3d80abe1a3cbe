package tcp

import (
	"bytes"
	"testing"

	"github.com/soypat/tcpip/ipv4"
)

var (
	testServer = ipv4.Endpoint{Addr: ipv4.Addr{192, 168, 1, 1}, Port: 80}
	testClient = ipv4.Endpoint{Addr: ipv4.Addr{192, 168, 1, 2}, Port: 40000}
)

func TestEmitProducesAValidatingChecksum(t *testing.T) {
	payload := []byte("hello")
	raw := mkSegment(testServer, testClient, 100, 200, flagPshAck, 4096, payload)

	frm, err := NewFrame(raw)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if frm.Seq() != 100 || frm.Ack() != 200 {
		t.Fatalf("seq/ack = %d/%d, want 100/200", frm.Seq(), frm.Ack())
	}
	if !bytes.Equal(frm.Payload(), payload) {
		t.Fatalf("payload = %q, want %q", frm.Payload(), payload)
	}

	e := newTestEngine(&recordOutput{}, nil)
	if err := e.input(raw, testServer.Addr, testClient.Addr, ipv4.Interface{}); err != nil {
		t.Fatalf("checksum produced by emit did not validate on input: %v", err)
	}
}

func TestEmitChecksumDetectsCorruption(t *testing.T) {
	raw := mkSegment(testServer, testClient, 1, 0, FlagSYN, 4096, nil)
	raw[sizeHeaderTCP-1] ^= 0xFF // flip a payload-adjacent byte outside the header fields we rely on

	e := newTestEngine(&recordOutput{}, nil)
	err := e.input(raw, testServer.Addr, testClient.Addr, ipv4.Interface{})
	if err != errBadChecksum {
		t.Fatalf("corrupted segment: got %v, want errBadChecksum", err)
	}
}

func TestResetForNeverRepliesToARST(t *testing.T) {
	rec := &recordOutput{}
	seg := Segment{Flags: FlagRST, Seq: 5}
	_, err := resetFor(rec, testServer, testClient, seg)
	if err != nil {
		t.Fatalf("resetFor: %v", err)
	}
	if rec.count() != 0 {
		t.Fatalf("resetFor must never reply to a RST, got %d segments emitted", rec.count())
	}
}

func TestResetForWithACKEchoesAckAsSeq(t *testing.T) {
	rec := &recordOutput{}
	seg := Segment{Flags: FlagACK, Ack: 777}
	_, err := resetFor(rec, testServer, testClient, seg)
	if err != nil {
		t.Fatalf("resetFor: %v", err)
	}
	frm, _ := NewFrame(rec.last().payload)
	_, flags := frm.OffsetAndFlags()
	if flags != FlagRST {
		t.Fatalf("flags = %s, want RST only", flags)
	}
	if frm.Seq() != 777 {
		t.Fatalf("seq = %d, want echoed ack 777", frm.Seq())
	}
}

func TestResetForWithoutACKSetsAckToSeqPlusLen(t *testing.T) {
	rec := &recordOutput{}
	seg := Segment{Flags: FlagSYN, Seq: 1000, Len: 1}
	_, err := resetFor(rec, testServer, testClient, seg)
	if err != nil {
		t.Fatalf("resetFor: %v", err)
	}
	frm, _ := NewFrame(rec.last().payload)
	_, flags := frm.OffsetAndFlags()
	if flags != flagRstAck {
		t.Fatalf("flags = %s, want RST|ACK", flags)
	}
	if frm.Ack() != 1001 {
		t.Fatalf("ack = %d, want 1001", frm.Ack())
	}
	if frm.Seq() != 0 {
		t.Fatalf("seq = %d, want 0", frm.Seq())
	}
}
