package tcp

import "testing"

func TestSeqComparisonsAroundWraparound(t *testing.T) {
	const (
		a uint32 = 0xFFFFFFF0
		b uint32 = 0x00000010
	)
	if !seqLt(a, b) {
		t.Fatalf("expected %#x to precede %#x across wraparound", a, b)
	}
	if seqLt(b, a) {
		t.Fatalf("did not expect %#x to precede %#x", b, a)
	}
	if !seqGt(b, a) {
		t.Fatalf("expected %#x to follow %#x across wraparound", b, a)
	}
	if !seqLe(a, a) || !seqGe(a, a) {
		t.Fatalf("a value must be both <= and >= itself")
	}
}

func TestSeqInWindow(t *testing.T) {
	const nxt uint32 = 1000
	const wnd uint16 = 100
	cases := []struct {
		seq  uint32
		want bool
	}{
		{999, false},
		{1000, true},
		{1099, true},
		{1100, false},
	}
	for _, c := range cases {
		if got := seqInWindow(c.seq, nxt, wnd); got != c.want {
			t.Errorf("seqInWindow(%d, %d, %d) = %v, want %v", c.seq, nxt, wnd, got, c.want)
		}
	}
}

func TestSeqInWindowAcrossWraparound(t *testing.T) {
	const nxt uint32 = 0xFFFFFFF0
	const wnd uint16 = 32
	if !seqInWindow(0x00000005, nxt, wnd) {
		t.Fatalf("expected seq just past the wraparound boundary to be in window")
	}
	if seqInWindow(nxt-1, nxt, wnd) {
		t.Fatalf("did not expect seq just before the window to be in window")
	}
}
