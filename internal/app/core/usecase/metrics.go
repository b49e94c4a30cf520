package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "earnbot_events_total",
			Help: "Dispatched events by command and action",
		},
		[]string{"command", "action"},
	)

	ledgerOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "earnbot_ledger_ops_total",
			Help: "Ledger operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	storageWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "earnbot_storage_write_failures_total",
			Help: "Commits that failed and lost their mutation",
		},
	)

	deliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "earnbot_delivery_failures_total",
			Help: "Responses the transport failed to deliver",
		},
	)
)
