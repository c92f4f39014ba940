package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawcoin",
			Name:      "sync_http_requests_total",
			Help:      "Sync server requests by route template and status code.",
		},
		[]string{"route", "code"},
	)

	watchersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pawcoin",
			Name:      "sync_watchers",
			Help:      "Open /anchors/watch connections.",
		},
	)
)
