// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics wires the scheduler counters into a Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/HibernalGlow/neoview-upscale/internal/scheduler"
)

type Manager struct {
	registry *prometheus.Registry
}

func NewManager(service *scheduler.Service) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(NewSchedulerCollector(service))

	log.Info().Msg("metrics: registry initialized with scheduler collector")

	return &Manager{registry: registry}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
