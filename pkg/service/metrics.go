// Viera Bridge
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Viera Bridge.
//
// Viera Bridge is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Viera Bridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Viera Bridge.  If not, see <http://www.gnu.org/licenses/>.

package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks TV command and wake cascade outcomes.
type Metrics struct {
	commands    *prometheus.CounterVec
	wakes       *prometheus.CounterVec
	pairings    *prometheus.CounterVec
	tvAvailable prometheus.Gauge
}

// NewMetrics creates the service metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vierabridge_tv_commands_total",
			Help: "TV control commands issued, by command and outcome",
		}, []string{"command", "status"}),
		wakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vierabridge_wake_total",
			Help: "Wake cascade runs, by outcome",
		}, []string{"status"}),
		pairings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vierabridge_pairing_total",
			Help: "Pairing sessions reaching a terminal state, by outcome",
		}, []string{"status"}),
		tvAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vierabridge_tv_available",
			Help: "Whether the TV answers its status document (1=up, 0=down)",
		}),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.commands, m.wakes, m.pairings, m.tvAvailable}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeCommand(command string, err error) {
	m.commands.WithLabelValues(command, statusLabel(err)).Inc()
}

func (m *Metrics) observeWake(err error) {
	m.wakes.WithLabelValues(statusLabel(err)).Inc()
}

func (m *Metrics) observePairing(status string) {
	m.pairings.WithLabelValues(status).Inc()
}

func (m *Metrics) setAvailable(available bool) {
	if available {
		m.tvAvailable.Set(1)
	} else {
		m.tvAvailable.Set(0)
	}
}
