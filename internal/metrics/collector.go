// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/HibernalGlow/neoview-upscale/internal/scheduler"
)

// SchedulerCollector exposes the scheduler counters as Prometheus metrics.
// It reads a fresh stats snapshot on every scrape.
type SchedulerCollector struct {
	service *scheduler.Service

	pendingDesc    *prometheus.Desc
	processingDesc *prometheus.Desc
	completedDesc  *prometheus.Desc
	skippedDesc    *prometheus.Desc
	failedDesc     *prometheus.Desc
	cancelledDesc  *prometheus.Desc
}

func NewSchedulerCollector(service *scheduler.Service) *SchedulerCollector {
	return &SchedulerCollector{
		service: service,

		pendingDesc: prometheus.NewDesc(
			"neoview_upscale_pending_tasks",
			"Number of jobs waiting in the queue",
			nil, nil,
		),
		processingDesc: prometheus.NewDesc(
			"neoview_upscale_processing_tasks",
			"Number of jobs currently executing",
			nil, nil,
		),
		completedDesc: prometheus.NewDesc(
			"neoview_upscale_completed_total",
			"Jobs completed since startup",
			nil, nil,
		),
		skippedDesc: prometheus.NewDesc(
			"neoview_upscale_skipped_total",
			"Pages resolved to skip since startup",
			nil, nil,
		),
		failedDesc: prometheus.NewDesc(
			"neoview_upscale_failed_total",
			"Jobs failed since startup",
			nil, nil,
		),
		cancelledDesc: prometheus.NewDesc(
			"neoview_upscale_cancelled_total",
			"Queued jobs cancelled since startup",
			nil, nil,
		),
	}
}

func (c *SchedulerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pendingDesc
	ch <- c.processingDesc
	ch <- c.completedDesc
	ch <- c.skippedDesc
	ch <- c.failedDesc
	ch <- c.cancelledDesc
}

func (c *SchedulerCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.service.StatsSnapshot()

	ch <- prometheus.MustNewConstMetric(c.pendingDesc, prometheus.GaugeValue, float64(snap.PendingTasks))
	ch <- prometheus.MustNewConstMetric(c.processingDesc, prometheus.GaugeValue, float64(snap.ProcessingTasks))
	ch <- prometheus.MustNewConstMetric(c.completedDesc, prometheus.CounterValue, float64(snap.CompletedCount))
	ch <- prometheus.MustNewConstMetric(c.skippedDesc, prometheus.CounterValue, float64(snap.SkippedCount))
	ch <- prometheus.MustNewConstMetric(c.failedDesc, prometheus.CounterValue, float64(snap.FailedCount))
	ch <- prometheus.MustNewConstMetric(c.cancelledDesc, prometheus.CounterValue, float64(snap.CancelledCount))
}
