package server

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rowsParsed  prometheus.Counter
	insightRuns *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medflow",
			Name:      "http_requests_total",
			Help:      "API requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medflow",
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medflow",
			Name:      "rows_parsed_total",
			Help:      "Dataset rows parsed across all requests.",
		}),
		insightRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medflow",
			Name:      "insights_runs_total",
			Help:      "Insights pipeline runs by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.requests, m.duration, m.rowsParsed, m.insightRuns)
	return m
}
