package tcp

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a prometheus.Collector exposing PCB-table occupancy by state
// and cumulative segment-processing counters. Pass it via Config.Metrics
// and register it with a prometheus.Registry; a nil Config.Metrics simply
// means no metrics are collected.
type Metrics struct {
	accepted  uint64
	dropped   uint64
	resetSent uint64

	snapshot func() map[State]int

	descAccepted *prometheus.Desc
	descDropped  *prometheus.Desc
	descReset    *prometheus.Desc
	descPCBState *prometheus.Desc
}

// NewMetrics returns a Metrics ready to be wired into a Config and
// registered with prometheus.
func NewMetrics() *Metrics {
	return &Metrics{
		descAccepted: prometheus.NewDesc("tcp_segments_accepted_total",
			"Segments that passed the acceptability test and were processed.", nil, nil),
		descDropped: prometheus.NewDesc("tcp_segments_dropped_total",
			"Segments dropped for failing validation or acceptability.", nil, nil),
		descReset: prometheus.NewDesc("tcp_resets_sent_total",
			"RST segments emitted, for any reason.", nil, nil),
		descPCBState: prometheus.NewDesc("tcp_pcb_count",
			"Number of PCBs currently in a given state.", []string{"state"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.descAccepted
	ch <- m.descDropped
	ch <- m.descReset
	ch <- m.descPCBState
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(m.descAccepted, prometheus.CounterValue, float64(atomic.LoadUint64(&m.accepted)))
	ch <- prometheus.MustNewConstMetric(m.descDropped, prometheus.CounterValue, float64(atomic.LoadUint64(&m.dropped)))
	ch <- prometheus.MustNewConstMetric(m.descReset, prometheus.CounterValue, float64(atomic.LoadUint64(&m.resetSent)))
	if m.snapshot == nil {
		return
	}
	for state, count := range m.snapshot() {
		ch <- prometheus.MustNewConstMetric(m.descPCBState, prometheus.GaugeValue, float64(count), state.String())
	}
}

func (m *Metrics) incAccepted() { atomic.AddUint64(&m.accepted, 1) }
func (m *Metrics) incDropped()  { atomic.AddUint64(&m.dropped, 1) }
func (m *Metrics) incReset()    { atomic.AddUint64(&m.resetSent, 1) }

// attach wires the PCB-table snapshot function a Metrics needs to report
// per-state gauges; called once by NewEngine.
func (m *Metrics) attach(snapshot func() map[State]int) { m.snapshot = snapshot }
