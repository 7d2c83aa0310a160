package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dropped writes are the observable for the best-effort error policy: local
// edits keep working when the store is down, so staleness has to be visible
// somewhere other than the UI.
var (
	droppedWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ebz_remote_dropped_writes_total",
		Help: "Writes to the remote store that failed and were dropped.",
	}, []string{"table", "op"})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ebz_remote_fetch_errors_total",
		Help: "Non-fatal fetch failures that returned empty data.",
	}, []string{"table"})

	// SyncPushes counts debounced sync cycles, labeled by outcome.
	SyncPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ebz_sync_pushes_total",
		Help: "Debounced sync pushes to the remote store.",
	}, []string{"outcome"})
)
