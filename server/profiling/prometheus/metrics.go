/*
 * Copyright 2025 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yorkie-team/statesync/internal/version"
)

const (
	namespace      = "statesync"
	resultLabel    = "result"
	transportLabel = "transport"
	taskTypeLabel  = "task_type"
)

// Metrics manages the metric information that the state sync server is
// trying to measure.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion        *prometheus.GaugeVec
	serverHandledCounter *prometheus.CounterVec

	stateReadsTotal   *prometheus.CounterVec
	stateWritesTotal  *prometheus.CounterVec
	stateWriteSeconds prometheus.Histogram

	streamConnectionsTotal *prometheus.GaugeVec
	pubsubDeliveriesTotal  *prometheus.CounterVec

	backgroundGoroutinesTotal *prometheus.GaugeVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		serverHandledCounter: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "server_handled_total",
			Help:      "Total number of HTTP requests completed on the server, regardless of success or failure.",
		}, []string{"http_method", "http_route", "http_code"}),
		stateReadsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "reads_total",
			Help:      "The total count of state reads by result (full, unchanged, failed).",
		}, []string{resultLabel}),
		stateWritesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "writes_total",
			Help:      "The total count of state writes by result (ok, invalid, failed).",
		}, []string{resultLabel}),
		stateWriteSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "write_seconds",
			Help:      "The time taken to persist a state replacement.",
		}),
		streamConnectionsTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connections_total",
			Help:      "The number of open state stream connections.",
		}, []string{transportLabel}),
		pubsubDeliveriesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pubsub",
			Name:      "deliveries_total",
			Help:      "The total count of document deliveries to subscribers by result.",
		}, []string{resultLabel}),
		backgroundGoroutinesTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The total number of goroutines attached by a particular background task.",
		}, []string{taskTypeLabel}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// AddServerHandledCounter adds the number of HTTP requests completed on the
// server.
func (m *Metrics) AddServerHandledCounter(method, route, code string) {
	m.serverHandledCounter.With(prometheus.Labels{
		"http_method": method,
		"http_route":  route,
		"http_code":   code,
	}).Inc()
}

// AddStateRead adds a state read with the given result.
func (m *Metrics) AddStateRead(result string) {
	m.stateReadsTotal.With(prometheus.Labels{
		resultLabel: result,
	}).Inc()
}

// AddStateWrite adds a state write with the given result.
func (m *Metrics) AddStateWrite(result string) {
	m.stateWritesTotal.With(prometheus.Labels{
		resultLabel: result,
	}).Inc()
}

// ObserveStateWriteSeconds adds an observation for the persist time of a
// state write.
func (m *Metrics) ObserveStateWriteSeconds(seconds float64) {
	m.stateWriteSeconds.Observe(seconds)
}

// AddStreamConnections adds the number of stream connections over the given
// transport.
func (m *Metrics) AddStreamConnections(transport string) {
	m.streamConnectionsTotal.With(prometheus.Labels{
		transportLabel: transport,
	}).Inc()
}

// RemoveStreamConnections removes the number of stream connections over the
// given transport.
func (m *Metrics) RemoveStreamConnections(transport string) {
	m.streamConnectionsTotal.With(prometheus.Labels{
		transportLabel: transport,
	}).Dec()
}

// AddPubSubDelivery adds a delivery to a subscriber with the given result.
func (m *Metrics) AddPubSubDelivery(result string) {
	m.pubsubDeliveriesTotal.With(prometheus.Labels{
		resultLabel: result,
	}).Inc()
}

// AddBackgroundGoroutines adds the number of goroutines attached by a particular background task.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Inc()
}

// RemoveBackgroundGoroutines removes the number of goroutines attached by a particular background task.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Dec()
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
