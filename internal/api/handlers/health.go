// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// BackendPinger reports whether the upscale worker is reachable.
type BackendPinger interface {
	WaitReady(ctx context.Context) error
}

type HealthHandler struct {
	backend BackendPinger
}

func NewHealthHandler(backend BackendPinger) *HealthHandler {
	return &HealthHandler{backend: backend}
}

func (h *HealthHandler) Routes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/readiness", h.HandleReady)
}

// HandleHealth is the liveness probe.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady reports readiness, including the worker connection.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.backend.WaitReady(ctx); err != nil {
			RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
