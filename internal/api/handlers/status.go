// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HibernalGlow/neoview-upscale/internal/scheduler"
)

// StatusHandler exposes the scheduler counters and the live job listing.
type StatusHandler struct {
	scheduler *scheduler.Service
}

func NewStatusHandler(scheduler *scheduler.Service) *StatusHandler {
	return &StatusHandler{scheduler: scheduler}
}

func (h *StatusHandler) Routes(r chi.Router) {
	r.Get("/stats", h.Stats)
	r.Get("/jobs", h.Jobs)
}

type statsResponse struct {
	scheduler.StatsSnapshot
	Queue scheduler.QueueBreakdown `json:"queue"`
}

func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, statsResponse{
		StatsSnapshot: h.scheduler.StatsSnapshot(),
		Queue:         h.scheduler.Breakdown(),
	})
}

func (h *StatusHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.scheduler.Jobs())
}
