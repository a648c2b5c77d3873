// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scheduler

import (
	"sync/atomic"
)

// Stats holds the scheduler counters consumed by status displays. Pending and
// processing are gauges driven by job state transitions; the rest are
// monotonic.
type Stats struct {
	pending    atomic.Int64
	processing atomic.Int64
	completed  atomic.Uint64
	skipped    atomic.Uint64
	failed     atomic.Uint64
	cancelled  atomic.Uint64
}

// StatsSnapshot is a consistent point-in-time view of the counters.
type StatsSnapshot struct {
	PendingTasks    int64  `json:"pendingTasks"`
	ProcessingTasks int64  `json:"processingTasks"`
	CompletedCount  uint64 `json:"completedCount"`
	SkippedCount    uint64 `json:"skippedCount"`
	FailedCount     uint64 `json:"failedCount"`
	CancelledCount  uint64 `json:"cancelledCount"`
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) recordQueued() {
	s.pending.Add(1)
}

func (s *Stats) recordRunning() {
	s.pending.Add(-1)
	s.processing.Add(1)
}

func (s *Stats) recordCompleted() {
	s.processing.Add(-1)
	s.completed.Add(1)
}

func (s *Stats) recordFailed() {
	s.processing.Add(-1)
	s.failed.Add(1)
}

func (s *Stats) recordCancelled() {
	s.pending.Add(-1)
	s.cancelled.Add(1)
}

// RecordSkipped counts a skip resolution. Skip specs never reach the queue,
// so this is driven by the controllers.
func (s *Stats) RecordSkipped() {
	s.skipped.Add(1)
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		PendingTasks:    s.pending.Load(),
		ProcessingTasks: s.processing.Load(),
		CompletedCount:  s.completed.Load(),
		SkippedCount:    s.skipped.Load(),
		FailedCount:     s.failed.Load(),
		CancelledCount:  s.cancelled.Load(),
	}
}
