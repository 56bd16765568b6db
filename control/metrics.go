// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the control channel's Prometheus collectors. A nil
// *Metrics records nothing.
type Metrics struct {
	connections       prometheus.Counter
	activeConnections prometheus.Gauge
	frames            *prometheus.CounterVec
	commands          *prometheus.CounterVec
	redactions        *prometheus.CounterVec
}

// Frame results.
const (
	frameAccepted = "accepted"
	frameRejected = "rejected"
)

// NewMetrics creates the collectors and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	metrics := &Metrics{
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matrixbot_control_connections_total",
			Help: "Control socket connections accepted.",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matrixbot_control_active_connections",
			Help: "Control socket connections currently open.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixbot_control_frames_total",
			Help: "Control frames read, by decode result.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixbot_control_commands_total",
			Help: "Control commands executed, by command and result.",
		}, []string{"command", "result"}),
		redactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixbot_purge_redactions_total",
			Help: "Redactions attempted by the spam purge, by result.",
		}, []string{"result"}),
	}

	for _, collector := range []prometheus.Collector{
		metrics.connections,
		metrics.activeConnections,
		metrics.frames,
		metrics.commands,
		metrics.redactions,
	} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return metrics, nil
}

func (m *Metrics) connectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
	m.activeConnections.Inc()
}

func (m *Metrics) connectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

func (m *Metrics) frame(result string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(result).Inc()
}

func (m *Metrics) command(name string, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name, resultLabel(err == nil)).Inc()
}

func (m *Metrics) redaction(ok bool) {
	if m == nil {
		return
	}
	m.redactions.WithLabelValues(resultLabel(ok)).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
