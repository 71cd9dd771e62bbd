// Copyright 2026 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package spassr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Render outcomes as used in the "outcome" label of the render metrics.
const (
	OutcomeRendered   = "rendered"
	OutcomeRedirected = "redirected"
	OutcomeFailed     = "failed"
)

// Metrics are the Prometheus metrics collected by the SSR handler and the
// people data source.
type Metrics struct {
	rendersTotal   *prometheus.CounterVec
	renderDuration prometheus.Histogram
	staticTotal    prometheus.Counter
	ticksTotal     prometheus.Counter
}

// MetricsOption configures Metrics.
type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	namespace string
	buckets   []float64
	registry  prometheus.Registerer
}

// WithNamespace sets the metrics namespace, defaulting to "spassr".
func WithNamespace(namespace string) MetricsOption {
	return func(c *metricsConfig) {
		c.namespace = namespace
	}
}

// WithBuckets sets the histogram buckets of the render duration.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *metricsConfig) {
		c.buckets = buckets
	}
}

// WithRegistry sets the registry to register the metrics with, defaulting to
// prometheus.DefaultRegisterer.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *metricsConfig) {
		c.registry = registry
	}
}

// NewMetrics creates and registers the metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	c := metricsConfig{
		namespace: "spassr",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&c)
	}
	factory := promauto.With(c.registry)
	return &Metrics{
		rendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "renders_total",
			Help:      "Total number of server-side renders by outcome",
		}, []string{"outcome"}),
		renderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: c.namespace,
			Name:      "render_duration_seconds",
			Help:      "Duration of server-side renders including seeding and composing",
			Buckets:   c.buckets,
		}),
		staticTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "static_assets_served_total",
			Help:      "Total number of static assets served",
		}),
		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "people_ticks_total",
			Help:      "Total number of times the people have aged",
		}),
	}
}

// ObserveRender records a render with the specified outcome and duration.
// It is safe to call on a nil Metrics.
func (m *Metrics) ObserveRender(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.rendersTotal.WithLabelValues(outcome).Inc()
	m.renderDuration.Observe(d.Seconds())
}

// ObserveStatic records serving a static asset.
func (m *Metrics) ObserveStatic() {
	if m == nil {
		return
	}
	m.staticTotal.Inc()
}

// ObserveTick records the people aging once more; it is meant to be passed
// to people.WithTickObserver.
func (m *Metrics) ObserveTick() {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
}
