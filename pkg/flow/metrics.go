package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Workflow metrics
var (
	messagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_processed_total",
			Help: "Total number of processed messages by type",
		},
		[]string{"type"}, // text, audio, image
	)

	actionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_actions_processed_total",
			Help: "Total number of processed quick-choice actions",
		},
		[]string{"action"}, // confirm, cancel, edit_menu, etc
	)

	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_records_total",
			Help: "Total number of records by lifecycle outcome",
		},
		[]string{"outcome"}, // staged, confirmed, cancelled
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type"}, // extract, transcription, rate, database
	)

	extractDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_extract_duration_seconds",
			Help:    "Duration of record extraction in seconds",
			Buckets: []float64{0.5, 1.5, 2.5, 3.5},
		},
	)

	transcriptionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_transcription_duration_seconds",
			Help:    "Duration of voice transcription in seconds",
			Buckets: []float64{0.5, 1.5, 2.5, 3.5},
		},
	)
)

// RestoreMetrics re-applies counter values recovered from a metrics
// snapshot after a restart.
func RestoreMetrics(messages, actions, records, errors map[string]float64) {
	for label, v := range messages {
		messagesProcessed.WithLabelValues(label).Add(v)
	}
	for label, v := range actions {
		actionsProcessed.WithLabelValues(label).Add(v)
	}
	for label, v := range records {
		recordsTotal.WithLabelValues(label).Add(v)
	}
	for label, v := range errors {
		errorsTotal.WithLabelValues(label).Add(v)
	}
}
