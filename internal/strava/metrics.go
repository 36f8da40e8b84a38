package strava

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kudoscope_api_requests_total",
		Help: "API requests by outcome (ok, unauthorized, forbidden, rate_limited, error).",
	}, []string{"outcome"})

	rateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kudoscope_rate_limit_waits_total",
		Help: "Number of 429 cooldown sleeps taken.",
	})

	tokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kudoscope_token_refreshes_total",
		Help: "Access-token refreshes triggered by a 401 response.",
	})
)
