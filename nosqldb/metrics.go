//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package nosqldb

import (
	metricsutil "github.com/oracle/nosql-go-driver/nosqldb/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var metrics requestMetrics

type requestMetrics struct {
	requests      *prometheus.CounterVec
	latency       prometheus.Histogram
	attempts      *prometheus.CounterVec
	retries       *prometheus.CounterVec
	speculative   prometheus.Counter
	inFlight      prometheus.Gauge
	lateResponses prometheus.Counter
}

func init() {
	metrics.init(metricsutil.Registry{R: prometheus.DefaultRegisterer})
}

func (m *requestMetrics) init(r metricsutil.Registry) {
	m.requests = r.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsutil.Namespace,
		Subsystem: "session",
		Name:      "requests_total",
		Help:      "The number of completed requests, by outcome",
	}, "outcome")
	m.latency = r.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsutil.Namespace,
		Subsystem: "session",
		Name:      "request_duration_seconds",
		Help:      "The time from the submission of a request to its completion",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
	})
	m.attempts = r.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsutil.Namespace,
		Subsystem: "session",
		Name:      "attempts_total",
		Help:      "The number of attempts sent to nodes, by outcome",
	}, "outcome")
	m.retries = r.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsutil.Namespace,
		Subsystem: "session",
		Name:      "retry_decisions_total",
		Help:      "The number of decisions taken for recoverable errors",
	}, "decision")
	m.speculative = r.NewCounter(prometheus.CounterOpts{
		Namespace: metricsutil.Namespace,
		Subsystem: "session",
		Name:      "speculative_executions_total",
		Help:      "The number of speculative executions started",
	})
	m.inFlight = r.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsutil.Namespace,
		Subsystem: "session",
		Name:      "requests_in_flight",
		Help:      "The number of submitted requests that have not completed",
	})
	m.lateResponses = r.NewCounter(prometheus.CounterOpts{
		Namespace: metricsutil.Namespace,
		Subsystem: "session",
		Name:      "late_responses_total",
		Help:      "The number of attempt responses discarded after their request completed",
	})
}
