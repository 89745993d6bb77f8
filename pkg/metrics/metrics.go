package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "video_uploader",
		Name:      "status_transitions_total",
		Help:      "Video status transitions written by the upload lifecycle.",
	}, []string{"status"})

	ReconciledBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "video_uploader",
		Name:      "reconciled_batches_total",
		Help:      "Remote change batches applied to the record store.",
	})

	PrunedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "video_uploader",
		Name:      "pruned_records_total",
		Help:      "Records removed because they were missing from a complete snapshot.",
	})

	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "video_uploader",
		Name:      "decode_failures_total",
		Help:      "Change payloads skipped because they could not be decoded.",
	})

	SubscriptionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "video_uploader",
		Name:      "subscription_failures_total",
		Help:      "Change feed subscriptions that ended with an error.",
	})

	WebhookCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "video_uploader",
		Name:      "webhook_calls_total",
		Help:      "Processing webhook calls by outcome.",
	}, []string{"outcome"})
)
