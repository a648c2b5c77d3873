// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/HibernalGlow/neoview-upscale/internal/models"
	"github.com/HibernalGlow/neoview-upscale/internal/scheduler"
)

// ScheduleHandler serves the schedule settings and the global upscale
// defaults.
type ScheduleHandler struct {
	store     *models.ScheduleStore
	scheduler *scheduler.Service
}

func NewScheduleHandler(store *models.ScheduleStore, scheduler *scheduler.Service) *ScheduleHandler {
	return &ScheduleHandler{store: store, scheduler: scheduler}
}

func (h *ScheduleHandler) Routes(r chi.Router) {
	r.Get("/", h.Get)
	r.Put("/", h.Update)
	r.Get("/defaults", h.GetDefaults)
	r.Put("/defaults", h.UpdateDefaults)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.scheduler.ScheduleConfig())
}

// Update persists and applies the schedule settings. Out-of-range values are
// clamped rather than rejected; the response carries the effective config.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var cfg models.ScheduleConfig
	if !DecodeJSON(w, r, &cfg) {
		return
	}

	applied, err := h.scheduler.UpdateScheduleConfig(r.Context(), cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to update schedule config")
		RespondError(w, http.StatusInternalServerError, "Failed to update schedule config")
		return
	}
	RespondJSON(w, http.StatusOK, applied)
}

func (h *ScheduleHandler) GetDefaults(w http.ResponseWriter, r *http.Request) {
	defaults, err := h.store.GetUpscaleDefaults(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load upscale defaults")
		RespondError(w, http.StatusInternalServerError, "Failed to load upscale defaults")
		return
	}
	RespondJSON(w, http.StatusOK, defaults)
}

func (h *ScheduleHandler) UpdateDefaults(w http.ResponseWriter, r *http.Request) {
	var defaults models.UpscaleDefaults
	if !DecodeJSON(w, r, &defaults) {
		return
	}
	if defaults.Model == "" || defaults.Scale < 1 || defaults.Scale > 4 {
		RespondError(w, http.StatusBadRequest, "Defaults require a model and a scale of 1-4")
		return
	}

	if err := h.scheduler.UpdateDefaults(r.Context(), defaults); err != nil {
		log.Error().Err(err).Msg("Failed to update upscale defaults")
		RespondError(w, http.StatusInternalServerError, "Failed to update upscale defaults")
		return
	}
	RespondJSON(w, http.StatusOK, defaults)
}
