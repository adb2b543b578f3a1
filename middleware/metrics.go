// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts requests and observes their latency, labeled by
// method and status code, registering its collectors with reg.
func Metrics(reg prometheus.Registerer) (Middleware, error) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "restview",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served",
		},
		[]string{"method", "code"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "restview",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time to serve HTTP requests, including streamed bodies",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)
	if err := reg.Register(requests); err != nil {
		return nil, err
	}
	if err := reg.Register(duration); err != nil {
		return nil, err
	}
	return Wrap(func(next http.Handler) http.Handler {
		return promhttp.InstrumentHandlerCounter(requests,
			promhttp.InstrumentHandlerDuration(duration, next))
	}), nil
}
