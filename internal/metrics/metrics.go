package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CPCBAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqicast_cpcb_api_calls_total",
			Help: "Total CPCB live feed calls",
		},
		[]string{"city", "status"},
	)

	CPCBAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aqicast_cpcb_api_latency_seconds",
			Help:    "CPCB feed call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"city"},
	)

	WeatherFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aqicast_weather_fallbacks_total",
			Help: "Weather fetches replaced by the default triple",
		},
	)

	PredictionsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aqicast_predictions_stored_total",
			Help: "History records persisted after successful predictions",
		},
		[]string{"city"},
	)

	ModelLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aqicast_model_latency_seconds",
			Help:    "Model sidecar call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)
