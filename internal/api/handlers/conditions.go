// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"database/sql"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/HibernalGlow/neoview-upscale/internal/models"
	"github.com/HibernalGlow/neoview-upscale/internal/scheduler"
)

// ConditionHandler serves the condition list CRUD plus reorder, duplicate
// and import/export. Every mutation goes through the store's load-apply-store
// cycle and then refreshes the scheduler snapshot.
type ConditionHandler struct {
	store     *models.ConditionStore
	scheduler *scheduler.Service
}

func NewConditionHandler(store *models.ConditionStore, scheduler *scheduler.Service) *ConditionHandler {
	return &ConditionHandler{store: store, scheduler: scheduler}
}

func (h *ConditionHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)
	r.Post("/reorder", h.Reorder)
	r.Put("/{conditionID}", h.Update)
	r.Delete("/{conditionID}", h.Delete)
	r.Post("/{conditionID}/duplicate", h.Duplicate)
}

func (h *ConditionHandler) List(w http.ResponseWriter, r *http.Request) {
	conds, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list upscale conditions")
		RespondError(w, http.StatusInternalServerError, "Failed to list conditions")
		return
	}
	RespondJSON(w, http.StatusOK, conds)
}

func (h *ConditionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var cond models.Condition
	if !DecodeJSON(w, r, &cond) {
		return
	}
	if err := cond.Validate(); err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	next, err := h.store.Mutate(r.Context(), func(conds []*models.Condition) ([]*models.Condition, error) {
		return models.AppendCondition(conds, &cond), nil
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create upscale condition")
		RespondError(w, http.StatusInternalServerError, "Failed to create condition")
		return
	}

	h.refresh(r)
	RespondJSON(w, http.StatusCreated, next)
}

func (h *ConditionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conditionID")

	var cond models.Condition
	if !DecodeJSON(w, r, &cond) {
		return
	}
	cond.ID = id
	if err := cond.Validate(); err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	next, err := h.store.Mutate(r.Context(), func(conds []*models.Condition) ([]*models.Condition, error) {
		for i, existing := range conds {
			if existing.ID == id {
				cond.Priority = existing.Priority
				conds[i] = &cond
				return conds, nil
			}
		}
		return nil, sql.ErrNoRows
	})
	if errors.Is(err, sql.ErrNoRows) {
		RespondError(w, http.StatusNotFound, "Condition not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("conditionID", id).Msg("Failed to update upscale condition")
		RespondError(w, http.StatusInternalServerError, "Failed to update condition")
		return
	}

	h.refresh(r)
	RespondJSON(w, http.StatusOK, next)
}

func (h *ConditionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conditionID")

	next, err := h.store.Mutate(r.Context(), func(conds []*models.Condition) ([]*models.Condition, error) {
		return models.RemoveCondition(conds, id)
	})
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.refresh(r)
	RespondJSON(w, http.StatusOK, next)
}

type reorderRequest struct {
	ID       string `json:"id"`
	NewIndex int    `json:"newIndex"`
}

func (h *ConditionHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	next, err := h.store.Mutate(r.Context(), func(conds []*models.Condition) ([]*models.Condition, error) {
		return models.MoveCondition(conds, req.ID, req.NewIndex)
	})
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.refresh(r)
	RespondJSON(w, http.StatusOK, next)
}

func (h *ConditionHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conditionID")

	next, err := h.store.Mutate(r.Context(), func(conds []*models.Condition) ([]*models.Condition, error) {
		return models.DuplicateCondition(conds, id)
	})
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.refresh(r)
	RespondJSON(w, http.StatusCreated, next)
}

func (h *ConditionHandler) Export(w http.ResponseWriter, r *http.Request) {
	conds, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to export upscale conditions")
		RespondError(w, http.StatusInternalServerError, "Failed to export conditions")
		return
	}

	data, err := models.ExportConditions(conds)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to encode conditions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="upscale-conditions.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Import replaces the whole list with the uploaded JSON array. The upload is
// rejected wholesale on the first invalid condition.
func (h *ConditionHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	conds, err := models.ImportConditions(data)
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.ReplaceAll(r.Context(), conds); err != nil {
		log.Error().Err(err).Msg("Failed to import upscale conditions")
		RespondError(w, http.StatusInternalServerError, "Failed to import conditions")
		return
	}

	h.refresh(r)
	RespondJSON(w, http.StatusOK, conds)
}

func (h *ConditionHandler) refresh(r *http.Request) {
	if err := h.scheduler.ReloadConditions(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to reload scheduler conditions")
	}
}
