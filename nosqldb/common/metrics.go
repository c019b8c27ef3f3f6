//
// Copyright (c) 2024 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package common

import (
	metricsutil "github.com/oracle/nosql-go-driver/nosqldb/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var metrics throttleMetrics

type throttleMetrics struct {
	running       *prometheus.GaugeVec
	queued        *prometheus.GaugeVec
	rejected      *prometheus.CounterVec
	doubleSignals *prometheus.CounterVec
}

func init() {
	metrics.init(metricsutil.Registry{R: prometheus.DefaultRegisterer})
}

func (m *throttleMetrics) init(r metricsutil.Registry) {
	m.running = r.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsutil.Namespace,
		Subsystem: "throttle",
		Name:      "running_requests",
		Help:      "The number of admitted requests that have not been signalled yet",
	}, "throttler")
	m.queued = r.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsutil.Namespace,
		Subsystem: "throttle",
		Name:      "queued_requests",
		Help:      "The number of requests waiting for admission",
	}, "throttler")
	m.rejected = r.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsutil.Namespace,
		Subsystem: "throttle",
		Name:      "rejected_requests_total",
		Help:      "The number of requests that were failed without being admitted",
	}, "throttler", "reason")
	m.doubleSignals = r.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsutil.Namespace,
		Subsystem: "throttle",
		Name:      "invalid_signals_total",
		Help:      "The number of signals for requests that were unknown or already signalled",
	}, "throttler")
}
