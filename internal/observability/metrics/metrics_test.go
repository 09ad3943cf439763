package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBridgeMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBridgeMetrics(reg)

	m.ObserveRouted("sms_to_email", "sent")
	m.ObserveRouted("sms_to_email", "sent")
	m.ObserveRouted("email_to_sms", "no_number_for_email")
	m.ObserveDuplicate("sms_to_email")
	m.ObserveSendLatency("sendgrid", 0.2)

	if got := testutil.ToFloat64(m.routedTotal.WithLabelValues("sms_to_email", "sent")); got != 2 {
		t.Fatalf("expected 2 sent, got %v", got)
	}
	if got := testutil.ToFloat64(m.routedTotal.WithLabelValues("email_to_sms", "no_number_for_email")); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
	if got := testutil.ToFloat64(m.duplicatesTotal.WithLabelValues("sms_to_email")); got != 1 {
		t.Fatalf("expected 1 duplicate, got %v", got)
	}
	if got := testutil.CollectAndCount(m.sendLatency); got != 1 {
		t.Fatalf("expected one latency series, got %d", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *BridgeMetrics
	m.ObserveRouted("sms_to_email", "sent")
	m.ObserveDuplicate("email_to_sms")
	m.ObserveSendLatency("twilio", 1)
}
