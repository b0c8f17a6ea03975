package handler

import (
	"fmt"
	"net/http"

	"github.com/sharetaxi/sharetaxi/internal/metrics"
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

	writeMetric(w, "sharetaxi_sessions_resolved_total{source=\"mock\"} %d\n", snap.SessionsMock)
	writeMetric(w, "sharetaxi_sessions_resolved_total{source=\"provider\"} %d\n", snap.SessionsProvider)
	writeMetric(w, "sharetaxi_sessions_resolved_total{source=\"none\"} %d\n", snap.SessionsNone)
	writeMetric(w, "sharetaxi_guard_redirects_total %d\n", snap.GuardRedirects)

	writeMetric(w, "sharetaxi_otp_sent_total{status=\"success\"} %d\n", snap.OTPSent)
	writeMetric(w, "sharetaxi_otp_sent_total{status=\"failed\"} %d\n", snap.OTPSendFailed)
	writeMetric(w, "sharetaxi_otp_sent_total{status=\"rate_limited\"} %d\n", snap.OTPRateLimited)
	writeMetric(w, "sharetaxi_otp_verified_total{status=\"success\"} %d\n", snap.OTPVerified)
	writeMetric(w, "sharetaxi_otp_verified_total{status=\"failed\"} %d\n", snap.OTPVerifyFailed)

	writeMetric(w, "sharetaxi_messages_sent_total %d\n", snap.MessagesSent)
	writeMetric(w, "sharetaxi_chat_load_duration_seconds_count %d\n", snap.ChatLoadCount)
	writeMetric(w, "sharetaxi_chat_load_duration_seconds_sum %.6f\n", float64(snap.ChatLoadTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
