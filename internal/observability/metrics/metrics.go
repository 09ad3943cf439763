package metrics

import "github.com/prometheus/client_golang/prometheus"

// BridgeMetrics exposes counters/histograms for routing between SMS and email.
type BridgeMetrics struct {
	routedTotal     *prometheus.CounterVec
	duplicatesTotal *prometheus.CounterVec
	sendLatency     *prometheus.HistogramVec
}

func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		routedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smsbridge",
			Subsystem: "routing",
			Name:      "messages_total",
			Help:      "Inbound messages by direction and outcome",
		}, []string{"direction", "outcome"}),
		duplicatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smsbridge",
			Subsystem: "routing",
			Name:      "duplicate_deliveries_total",
			Help:      "Webhook redeliveries acknowledged without routing",
		}, []string{"direction"}),
		sendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smsbridge",
			Subsystem: "provider",
			Name:      "send_latency_seconds",
			Help:      "Latency of outbound provider sends",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.routedTotal, m.duplicatesTotal, m.sendLatency)
	return m
}

// ObserveRouted counts one routed message. outcome is "sent" or a routing
// error kind.
func (m *BridgeMetrics) ObserveRouted(direction, outcome string) {
	if m == nil {
		return
	}
	m.routedTotal.WithLabelValues(direction, outcome).Inc()
}

func (m *BridgeMetrics) ObserveDuplicate(direction string) {
	if m == nil {
		return
	}
	m.duplicatesTotal.WithLabelValues(direction).Inc()
}

func (m *BridgeMetrics) ObserveSendLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.sendLatency.WithLabelValues(provider).Observe(seconds)
}
