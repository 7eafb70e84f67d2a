// Package prometheus exports a zwave.DriverStats snapshot as Prometheus
// metrics for operators who scrape rather than poll.
package prometheus

import (
	zwave "github.com/cpchain-network/gozwave"
	"github.com/prometheus/client_golang/prometheus"
)

// DriverExporter polls a *zwave.DriverStats on every Prometheus scrape
// and republishes its counters as Prometheus counters (the underlying counters are
// monotonic atomics the driver owns directly; this package just reads
// them, it never increments anything itself).
type DriverExporter struct {
	stats *zwave.DriverStats

	sof, ack, nak, can, oof, badChecksum *prometheus.Desc
	reads, writes                        *prometheus.Desc
	dropped, retries, callbacks          *prometheus.Desc
	noAck, netBusy, nonDelivery          *prometheus.Desc
	softResets, hardResets               *prometheus.Desc
}

// NewDriverExporter registers a DriverExporter for stats on reg. reg may
// be prometheus.DefaultRegisterer.
func NewDriverExporter(reg prometheus.Registerer, stats *zwave.DriverStats) *DriverExporter {
	e := &DriverExporter{
		stats:       stats,
		sof:         prometheus.NewDesc("zwave_frames_sof_total", "SOF bytes observed", nil, nil),
		ack:         prometheus.NewDesc("zwave_frames_ack_total", "ACK bytes observed", nil, nil),
		nak:         prometheus.NewDesc("zwave_frames_nak_total", "NAK bytes observed", nil, nil),
		can:         prometheus.NewDesc("zwave_frames_can_total", "CAN bytes observed", nil, nil),
		oof:         prometheus.NewDesc("zwave_frames_oof_total", "bytes seen outside any recognized lead-in", nil, nil),
		badChecksum: prometheus.NewDesc("zwave_frames_bad_checksum_total", "frames dropped for a bad checksum", nil, nil),
		reads:       prometheus.NewDesc("zwave_frames_read_total", "frames successfully decoded", nil, nil),
		writes:      prometheus.NewDesc("zwave_frames_written_total", "frames written to the transport", nil, nil),
		dropped:     prometheus.NewDesc("zwave_messages_dropped_total", "messages dropped after exhausting retries", nil, nil),
		retries:     prometheus.NewDesc("zwave_messages_retried_total", "message resend attempts", nil, nil),
		callbacks:   prometheus.NewDesc("zwave_callbacks_total", "asynchronous callbacks observed", nil, nil),
		noAck:       prometheus.NewDesc("zwave_send_no_ack_total", "send-data completions reporting NoAck", nil, nil),
		netBusy:     prometheus.NewDesc("zwave_send_net_busy_total", "send-data completions reporting network busy", nil, nil),
		nonDelivery: prometheus.NewDesc("zwave_send_non_delivery_total", "send-data completions reporting non-delivery", nil, nil),
		softResets:  prometheus.NewDesc("zwave_controller_soft_resets_total", "serial API soft resets issued", nil, nil),
		hardResets:  prometheus.NewDesc("zwave_controller_hard_resets_total", "controller hard resets issued", nil, nil),
	}
	reg.MustRegister(e)
	return e
}

// Describe implements prometheus.Collector.
func (e *DriverExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.sof
	ch <- e.ack
	ch <- e.nak
	ch <- e.can
	ch <- e.oof
	ch <- e.badChecksum
	ch <- e.reads
	ch <- e.writes
	ch <- e.dropped
	ch <- e.retries
	ch <- e.callbacks
	ch <- e.noAck
	ch <- e.netBusy
	ch <- e.nonDelivery
	ch <- e.softResets
	ch <- e.hardResets
}

// Collect implements prometheus.Collector.
func (e *DriverExporter) Collect(ch chan<- prometheus.Metric) {
	s := e.stats.Snapshot()
	ch <- prometheus.MustNewConstMetric(e.sof, prometheus.CounterValue, float64(s.SOF))
	ch <- prometheus.MustNewConstMetric(e.ack, prometheus.CounterValue, float64(s.Ack))
	ch <- prometheus.MustNewConstMetric(e.nak, prometheus.CounterValue, float64(s.Nak))
	ch <- prometheus.MustNewConstMetric(e.can, prometheus.CounterValue, float64(s.Can))
	ch <- prometheus.MustNewConstMetric(e.oof, prometheus.CounterValue, float64(s.OOF))
	ch <- prometheus.MustNewConstMetric(e.badChecksum, prometheus.CounterValue, float64(s.BadChecksum))
	ch <- prometheus.MustNewConstMetric(e.reads, prometheus.CounterValue, float64(s.Reads))
	ch <- prometheus.MustNewConstMetric(e.writes, prometheus.CounterValue, float64(s.Writes))
	ch <- prometheus.MustNewConstMetric(e.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(e.retries, prometheus.CounterValue, float64(s.Retries))
	ch <- prometheus.MustNewConstMetric(e.callbacks, prometheus.CounterValue, float64(s.Callbacks))
	ch <- prometheus.MustNewConstMetric(e.noAck, prometheus.CounterValue, float64(s.NoAck))
	ch <- prometheus.MustNewConstMetric(e.netBusy, prometheus.CounterValue, float64(s.NetBusy))
	ch <- prometheus.MustNewConstMetric(e.nonDelivery, prometheus.CounterValue, float64(s.NonDelivery))
	ch <- prometheus.MustNewConstMetric(e.softResets, prometheus.CounterValue, float64(s.SoftResets))
	ch <- prometheus.MustNewConstMetric(e.hardResets, prometheus.CounterValue, float64(s.HardResets))
}
