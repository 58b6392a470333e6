// Package metrics holds the gateway's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesProcessed counts messages that reached a terminal state,
	// labelled by outcome: matched, unmatched, duplicate, failed.
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailgate",
		Name:      "messages_processed_total",
		Help:      "Messages processed by terminal outcome.",
	}, []string{"outcome"})

	// FolderScans counts completed folder passes.
	FolderScans = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mailgate",
		Name:      "folder_scans_total",
		Help:      "Completed folder scan passes.",
	})

	// FolderScanErrors counts folder passes aborted by a connection or
	// configuration error.
	FolderScanErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mailgate",
		Name:      "folder_scan_errors_total",
		Help:      "Folder scans aborted at the folder/server boundary.",
	})

	// ActionsTriggered counts post-match actions enqueued.
	ActionsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mailgate",
		Name:      "actions_triggered_total",
		Help:      "Post-match actions triggered for matched records.",
	})
)

// Outcome labels for MessagesProcessed.
const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)
