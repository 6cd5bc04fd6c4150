// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kmetrics instruments the HTTP Adapter and Connection Registry
// with prometheus.Collector metrics, the way the teacher instruments its
// reconcile loop and export pipeline with github.com/prometheus/client_golang
// (spec SPEC_FULL.md [SUPPLEMENT] C6 adapter gains instrumentation).
package kmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every gauge/counter the transport package reports. A nil
// *Metrics is never handed to callers; use NewMetrics or NoOp.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	OpenRequests    *prometheus.GaugeVec
	PoolCheckouts   *prometheus.CounterVec
	PoolWaitSeconds *prometheus.HistogramVec
}

// NewMetrics constructs and registers the transport metrics against reg.
// Passing a nil registry is valid - the collectors are simply left
// unregistered (useful for tests that don't care about exposition).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kre_adapter_requests_total",
			Help: "Requests issued by an HTTP adapter, by verb and outcome status.",
		}, []string{"verb", "status"}),
		OpenRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kre_adapter_open_requests",
			Help: "In-flight requests per destination.",
		}, []string{"destination"}),
		PoolCheckouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kre_pool_checkouts_total",
			Help: "HTTP/1 adapter pool checkouts, by outcome.",
		}, []string{"outcome"}),
		PoolWaitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kre_pool_wait_seconds",
			Help:    "Time spent waiting for a pooled HTTP/1 adapter.",
			Buckets: prometheus.DefBuckets,
		}, []string{"destination"}),
	}
	if reg != nil {
		reg.MustRegister(m.RequestsTotal, m.OpenRequests, m.PoolCheckouts, m.PoolWaitSeconds)
	}
	return m
}

// NoOp returns a Metrics bundle that is safe to use but registered nowhere.
func NoOp() *Metrics { return NewMetrics(nil) }
