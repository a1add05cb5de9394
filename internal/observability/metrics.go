package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreatedTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_created_total", Help: "Total rides created"})
	RidesAcceptedTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_accepted_total", Help: "Total rides accepted by an operator"})
	RidesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_completed_total", Help: "Total rides completed"})

	FanoutCandidatesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "fanout_candidates_total", Help: "Candidate operators notified during fan-out"})
	FanoutSkippedTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "fanout_skipped_total", Help: "Fan-out runs abandoned because of upstream failures"})
	PushDroppedTotal      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "push_dropped_total", Help: "Push notifications dropped (party offline or write failed)"})

	OperatorPositionUpdates = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "operator_position_updates_total", Help: "Operator position reports ingested"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
