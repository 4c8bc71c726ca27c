package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure reasons for syslog_send_failures_total
const (
	ReasonInvalidArgument = "invalid_argument"
	ReasonTransport       = "transport"
)

// Metrics holds the syslog counters. A nil *Metrics records nothing.
type Metrics struct {
	sentDatagrams     *prometheus.CounterVec
	sentBytes         prometheus.Counter
	sendFailures      *prometheus.CounterVec
	receivedDatagrams *prometheus.CounterVec
	tailClients       prometheus.Gauge
}

// NewMetrics registers the syslog metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sentDatagrams: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syslog",
			Name:      "sent_datagrams_total",
			Help:      "Datagrams handed to the network stack by the relay, by facility and level. The send and pipe commands are not counted.",
		}, []string{"facility", "level"}),
		sentBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "syslog",
			Name:      "sent_bytes_total",
			Help:      "Message text bytes accepted for sending by the relay.",
		}),
		sendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syslog",
			Name:      "send_failures_total",
			Help:      "Send attempts rejected before or during the datagram write.",
		}, []string{"reason"}),
		receivedDatagrams: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syslog",
			Name:      "received_datagrams_total",
			Help:      "Datagrams received by the collector, by detected format.",
		}, []string{"format"}),
		tailClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "syslog",
			Name:      "tail_clients",
			Help:      "Connected live tail websocket clients.",
		}),
	}
}

// RecordSent counts one datagram carrying bytes of message text
func (m *Metrics) RecordSent(facility, level string, bytes int) {
	if m == nil {
		return
	}
	m.sentDatagrams.WithLabelValues(facility, level).Inc()
	m.sentBytes.Add(float64(bytes))
}

// RecordSendFailure counts a failed send
func (m *Metrics) RecordSendFailure(reason string) {
	if m == nil {
		return
	}
	m.sendFailures.WithLabelValues(reason).Inc()
}

// RecordReceived counts one datagram seen by the collector
func (m *Metrics) RecordReceived(format string) {
	if m == nil {
		return
	}
	m.receivedDatagrams.WithLabelValues(format).Inc()
}

// SetTailClients reports the number of live tail clients
func (m *Metrics) SetTailClients(n int) {
	if m == nil {
		return
	}
	m.tailClients.Set(float64(n))
}
