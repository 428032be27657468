package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/udyogsetu/messaging-core/models"
)

var (
	// Outbound sends partitioned by vendor, destination country, message
	// type and outcome (sent, failed, or a dispatch error code)
	messagesDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_dispatched_total",
			Help: "Total outbound messages dispatched, by provider, country, type and result",
		},
		[]string{"provider", "country", "type", "result"},
	)

	// Vendor callbacks partitioned by vendor and normalized event type
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_webhook_events_total",
			Help: "Total webhook events received, by provider and normalized event type",
		},
		[]string{"provider", "event"},
	)

	// Callbacks dropped before processing (bad signature, unknown provider)
	webhookRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_webhook_rejections_total",
			Help: "Total webhook requests dropped without processing, by provider and reason",
		},
		[]string{"provider", "reason"},
	)

	// Latest health probe outcome per vendor: 1 healthy, 0 not
	providerUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messaging_provider_up",
			Help: "Whether the last health probe of a provider succeeded",
		},
		[]string{"provider"},
	)

	providerProbeLatency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messaging_provider_probe_latency_ms",
			Help: "Smoothed health probe latency per provider in milliseconds",
		},
		[]string{"provider"},
	)
)

// RecordDispatch counts one send attempt outcome.
func RecordDispatch(provider models.ProviderType, country string, msgType models.MessageType, result string) {
	messagesDispatchedTotal.WithLabelValues(string(provider), country, string(msgType), result).Inc()
}

// RecordWebhookEvent counts one processed callback event.
func RecordWebhookEvent(provider models.ProviderType, event NormalizedEventType) {
	webhookEventsTotal.WithLabelValues(string(provider), string(event)).Inc()
}

// RecordWebhookRejection counts one callback dropped before processing.
func RecordWebhookRejection(provider, reason string) {
	webhookRejectionsTotal.WithLabelValues(provider, reason).Inc()
}

// RecordProviderProbe publishes the latest health probe result.
func RecordProviderProbe(provider models.ProviderType, healthy bool, latencyMs float64) {
	up := 0.0
	if healthy {
		up = 1.0
	}
	providerUp.WithLabelValues(string(provider)).Set(up)
	providerProbeLatency.WithLabelValues(string(provider)).Set(latencyMs)
}
