// Package metrics exposes Prometheus counters for the dispatch pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DispatchesTotal counts bulk dispatch operations by terminal state
	// (completed, rejected).
	DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_dispatches_total",
		Help: "Bulk dispatch operations by terminal state.",
	}, []string{"state"})

	// RecipientOutcomes counts per-recipient delivery outcomes.
	RecipientOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_recipient_outcomes_total",
		Help: "Per-recipient delivery outcomes across all batches.",
	}, []string{"outcome"})

	// ProgressPolls counts bulk-progress queries, including failed ones.
	ProgressPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_progress_polls_total",
		Help: "Progress endpoint polls issued while batches were in flight.",
	})

	// MediaUploads counts upload phases by result.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_media_uploads_total",
		Help: "Media upload phases (session, binary) by result.",
	}, []string{"phase", "result"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
