// README: Prometheus metrics for rides, dispatch, coupons, payments and HTTP.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "isuride"

var (
	RidesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "rides_created_total", Help: "Rides created by passengers",
	})
	RideTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "ride_transitions_total", Help: "Ride status events appended, by status and trigger",
	}, []string{"status", "trigger"})
	DispatchPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "dispatch_polls_total", Help: "Chair polls by outcome (existing, claimed, none)",
	}, []string{"outcome"})
	CouponsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "coupons_issued_total", Help: "Coupons granted, by kind",
	}, []string{"kind"})
	CouponsBound = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "coupons_bound_total", Help: "Coupons consumed by a ride",
	})
	Payments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "payments_total", Help: "Payment gateway charges by result",
	}, []string{"result"})
	LocationPings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "location_pings_total", Help: "Chair location pings recorded",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
