package anchor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK       = "ok"
	resultInvalid  = "invalid"
	resultNotFound = "not_found"
	resultError    = "error"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawcoin",
			Name:      "anchor_operations_total",
			Help:      "Anchor lifecycle operations by outcome.",
		},
		[]string{"op", "result"},
	)

	historyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawcoin",
			Name:      "anchor_history_total",
			Help:      "Undo and redo invocations that changed state.",
		},
		[]string{"action"},
	)
)
