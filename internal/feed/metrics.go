package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	pathPrimary  = "primary"
	pathFallback = "fallback"
	pathEmpty    = "empty"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walcord",
		Subsystem: "feed",
		Name:      "fetch_total",
		Help:      "Feed page fetches by read path.",
	}, []string{"surface", "path"})

	queryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walcord",
		Subsystem: "feed",
		Name:      "query_errors_total",
		Help:      "Store errors swallowed by the feed read paths.",
	}, []string{"stage"})

	staleDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "walcord",
		Subsystem: "feed",
		Name:      "stale_drops_total",
		Help:      "Fetch results discarded because a newer fetch had started.",
	})

	pageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "walcord",
		Subsystem: "feed",
		Name:      "page_seconds",
		Help:      "Latency of one feed page including fallback.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"surface"})
)
