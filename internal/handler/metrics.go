package handler

import (
	"fmt"
	"net/http"

	"github.com/servicenegotiator/api/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "servicenegotiator_signups_total %d\n", snap.Signups)
	for status, count := range snap.Logins {
		writeMetric(w, "servicenegotiator_logins_total{status=%q} %d\n", status, count)
	}

	writeMetric(w, "servicenegotiator_checkout_sessions_total %d\n", snap.CheckoutSessions)
	writeMetric(w, "servicenegotiator_portal_sessions_total %d\n", snap.PortalSessions)

	for key, count := range snap.WebhookEvents {
		writeMetric(w, "servicenegotiator_webhook_events_total{key=%q} %d\n", key, count)
	}

	writeMetric(w, "servicenegotiator_reconcile_duration_seconds_count %d\n", snap.ReconcileDurationCount)
	writeMetric(w, "servicenegotiator_reconcile_duration_seconds_sum %.6f\n", float64(snap.ReconcileDurationTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
