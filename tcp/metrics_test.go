package tcp

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsCountersIncrement(t *testing.T) {
	m := NewMetrics()
	m.incAccepted()
	m.incAccepted()
	m.incDropped()
	m.incReset()

	if m.accepted != 2 {
		t.Errorf("accepted = %d, want 2", m.accepted)
	}
	if m.dropped != 1 {
		t.Errorf("dropped = %d, want 1", m.dropped)
	}
	if m.resetSent != 1 {
		t.Errorf("resetSent = %d, want 1", m.resetSent)
	}
}

func TestMetricsDescribeEmitsAllFourDescriptors(t *testing.T) {
	m := NewMetrics()
	ch := make(chan *prometheus.Desc, 8)
	m.Describe(ch)
	close(ch)
	count := 0
	for range ch {
		count++
	}
	if count != 4 {
		t.Fatalf("Describe emitted %d descriptors, want 4", count)
	}
}

func TestMetricsAttachReportsPCBStateGauges(t *testing.T) {
	m := NewMetrics()
	rec := &recordOutput{}
	e := NewEngine(Config{Output: rec, Metrics: m})

	establish(t, e, 1)

	ch := make(chan prometheus.Metric, 16)
	m.Collect(ch)
	close(ch)

	sawGauge := false
	for metric := range ch {
		var out dto.Metric
		if err := metric.Write(&out); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if out.Gauge != nil {
			sawGauge = true
			if out.GetGauge().GetValue() != 1 {
				t.Errorf("gauge value = %v, want 1 (one ESTABLISHED pcb)", out.GetGauge().GetValue())
			}
		}
	}
	if !sawGauge {
		t.Fatal("expected at least one tcp_pcb_count gauge after establishing a connection")
	}
}
