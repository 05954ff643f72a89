package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"courier/internal/repository"
)

// Prometheus metrics for dispatch pipeline monitoring
var (
	// messagesScheduledTotal tracks messages accepted for delivery per type
	messagesScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_scheduled_total",
			Help: "Total number of messages scheduled",
		},
		[]string{"cls"},
	)

	// dispatchesScheduledTotal tracks dispatches created at scheduling time per type
	dispatchesScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatches_scheduled_total",
			Help: "Total number of dispatches created while scheduling",
		},
		[]string{"cls"},
	)

	// sendPassesTotal tracks completed send passes
	sendPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "send_passes_total",
			Help: "Total number of completed send passes",
		},
	)

	// sendPassDuration tracks wall-clock time per send pass
	sendPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "send_pass_duration_seconds",
			Help:    "Send pass duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60}, // 100ms to 1m
		},
	)

	// dispatchesClaimedTotal tracks dispatches claimed for delivery
	dispatchesClaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatches_claimed_total",
			Help: "Total number of dispatches claimed by send passes",
		},
	)

	// dispatchOutcomesTotal tracks per-dispatch delivery results per channel
	dispatchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_outcomes_total",
			Help: "Total number of dispatch delivery outcomes",
		},
		[]string{"messenger", "outcome"}, // outcome: sent|error|failed|pending
	)

	// messengerWarmupFailures tracks failed channel warm-ups
	messengerWarmupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_warmup_failures_total",
			Help: "Total number of failed messenger warm-ups",
		},
		[]string{"messenger"},
	)

	// dispatchCompileFailures tracks message bodies that failed to render
	dispatchCompileFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_compile_failures_total",
			Help: "Total number of dispatch compile failures",
		},
		[]string{"cls"},
	)

	// dispatchesRequeuedTotal tracks claimed dispatches returned unattempted
	dispatchesRequeuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatches_requeued_total",
			Help: "Total number of claimed dispatches requeued without an attempt",
		},
		[]string{"reason"}, // reason: unknown_messenger|unknown_message_type
	)

	// dispatchesPreparedTotal tracks dispatches formed from subscriptions
	dispatchesPreparedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatches_prepared_total",
			Help: "Total number of dispatches prepared from subscriptions",
		},
	)

	// cleanupRemovedRows tracks rows removed by retention sweeps
	cleanupRemovedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanup_removed_rows_total",
			Help: "Total number of rows removed by cleanup",
		},
		[]string{"kind"}, // kind: dispatches|messages
	)

	// undeliveredDispatches tracks the failed dispatch count seen by the last check
	undeliveredDispatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "undelivered_dispatches",
			Help: "Failed dispatches counted by the last undelivered check",
		},
	)
)

// RecordScheduled records a scheduling call.
//
// Parameters:
//   - cls: the message type alias
//   - dispatches: how many dispatches were created (0 for subscriber-directed
//     messages and grouped contributions)
func RecordScheduled(cls string, dispatches int) {
	messagesScheduledTotal.WithLabelValues(cls).Inc()
	if dispatches > 0 {
		dispatchesScheduledTotal.WithLabelValues(cls).Add(float64(dispatches))
	}
}

// RecordPass records a completed send pass.
//
// Parameters:
//   - claimed: how many dispatches the pass claimed
//   - duration: wall-clock time of the whole pass
func RecordPass(claimed int, duration time.Duration) {
	sendPassesTotal.Inc()
	dispatchesClaimedTotal.Add(float64(claimed))
	sendPassDuration.Observe(duration.Seconds())
}

// RecordOutcomes records the bucket sizes of one finished messenger group.
//
// Parameters:
//   - messenger: the channel alias
//   - sent, errored, failed, pending: bucket sizes as accumulated by the group
func RecordOutcomes(messenger string, sent, errored, failed, pending int) {
	add := func(outcome string, n int) {
		if n > 0 {
			dispatchOutcomesTotal.WithLabelValues(messenger, outcome).Add(float64(n))
		}
	}
	add("sent", sent)
	add("error", errored)
	add("failed", failed)
	add("pending", pending)
}

// RecordWarmupFailure records a failed BeforeSend for a channel.
func RecordWarmupFailure(messenger string) {
	messengerWarmupFailures.WithLabelValues(messenger).Inc()
}

// RecordCompileFailure records a message body that failed to render.
func RecordCompileFailure(cls string) {
	dispatchCompileFailures.WithLabelValues(cls).Inc()
}

// RecordRequeued records claimed dispatches returned to pending without a
// delivery attempt.
//
// Parameters:
//   - reason: why the group could not be attempted (unknown_messenger,
//     unknown_message_type)
//   - count: how many dispatches were requeued
func RecordRequeued(reason string, count int) {
	if count > 0 {
		dispatchesRequeuedTotal.WithLabelValues(reason).Add(float64(count))
	}
}

// RecordPrepared records dispatches formed from subscriptions by a
// preparation pass.
func RecordPrepared(count int) {
	if count > 0 {
		dispatchesPreparedTotal.Add(float64(count))
	}
}

// RecordCleanup records the rows removed by a retention sweep.
func RecordCleanup(result repository.CleanupResult) {
	if result.Dispatches > 0 {
		cleanupRemovedRows.WithLabelValues("dispatches").Add(float64(result.Dispatches))
	}
	if result.Messages > 0 {
		cleanupRemovedRows.WithLabelValues("messages").Add(float64(result.Messages))
	}
}

// SetUndelivered records the failed dispatch count observed by an
// undelivered check.
func SetUndelivered(count int64) {
	undeliveredDispatches.Set(float64(count))
}
