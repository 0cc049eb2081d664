package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics counts inbound processor hook outcomes per hook type.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	processed *prometheus.CounterVec
	ignored   *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_received",
		Help: "Webhook deliveries received, before authentication.",
	}, []string{"hook_type"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_processed",
		Help: "Webhook deliveries that produced a state change.",
	}, []string{"hook_type"})
	ignored := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_ignored",
		Help: "Webhook deliveries absorbed as duplicates or stale events.",
	}, []string{"hook_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_failed",
		Help: "Webhook deliveries that ended in a retryable failure.",
	}, []string{"hook_type"})
	reg.MustRegister(received, processed, ignored, failed)
	return &WebhookMetrics{
		received:  received,
		processed: processed,
		ignored:   ignored,
		failed:    failed,
	}
}

// IncReceived increments the received counter for the hook type.
func (m *WebhookMetrics) IncReceived(hookType string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(normalizeLabel(hookType)).Inc()
}

// IncProcessed increments the processed counter for the hook type.
func (m *WebhookMetrics) IncProcessed(hookType string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(hookType)).Inc()
}

// IncIgnored increments the ignored counter for the hook type.
func (m *WebhookMetrics) IncIgnored(hookType string) {
	if m == nil || m.ignored == nil {
		return
	}
	m.ignored.WithLabelValues(normalizeLabel(hookType)).Inc()
}

// IncFailed increments the failed counter for the hook type.
func (m *WebhookMetrics) IncFailed(hookType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(hookType)).Inc()
}
