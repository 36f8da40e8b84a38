package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cachedActivities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kudoscope_cached_activities",
		Help: "Rows in the activity table after the last save.",
	})

	cachedKudos = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kudoscope_cached_kudos_records",
		Help: "Rows in the kudos table after the last save.",
	})
)
