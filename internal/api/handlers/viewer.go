// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HibernalGlow/neoview-upscale/internal/models"
	"github.com/HibernalGlow/neoview-upscale/internal/scheduler"
)

// ViewerHandler receives the viewer lifecycle events that drive scheduling:
// book open/close, page navigation, and manual upscale requests.
type ViewerHandler struct {
	scheduler *scheduler.Service
}

func NewViewerHandler(scheduler *scheduler.Service) *ViewerHandler {
	return &ViewerHandler{scheduler: scheduler}
}

func (h *ViewerHandler) Routes(r chi.Router) {
	r.Post("/book", h.OpenBook)
	r.Delete("/book", h.CloseBook)
	r.Post("/page", h.PageChanged)
	r.Post("/upscale", h.RequestUpscale)
	r.Delete("/upscale/{pageIndex}", h.CancelUpscale)
}

// OpenBook registers the book manifest: the full page listing with
// dimensions and metadata, posted once when the viewer opens a book.
func (h *ViewerHandler) OpenBook(w http.ResponseWriter, r *http.Request) {
	var manifest models.BookManifest
	if !DecodeJSON(w, r, &manifest) {
		return
	}

	if err := h.scheduler.OpenBook(&manifest); err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

func (h *ViewerHandler) CloseBook(w http.ResponseWriter, r *http.Request) {
	h.scheduler.CloseBook()
	RespondJSON(w, http.StatusNoContent, nil)
}

type pageRequest struct {
	PageIndex int `json:"pageIndex"`
}

func (h *ViewerHandler) PageChanged(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.scheduler.OnPageChanged(req.PageIndex); err != nil {
		respondSchedulerError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// RequestUpscale schedules a foreground job for one page. A 204 means the
// page needed no job (already done, or resolved to skip).
func (h *ViewerHandler) RequestUpscale(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.scheduler.RequestUpscale(req.PageIndex)
	if err != nil {
		respondSchedulerError(w, err)
		return
	}
	if job == nil {
		RespondJSON(w, http.StatusNoContent, nil)
		return
	}
	RespondJSON(w, http.StatusAccepted, job)
}

func (h *ViewerHandler) CancelUpscale(w http.ResponseWriter, r *http.Request) {
	pageIndex, ok := ParseIntParam(w, r, "pageIndex")
	if !ok {
		return
	}

	cancelled, err := h.scheduler.CancelPage(pageIndex)
	if err != nil {
		respondSchedulerError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func respondSchedulerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduler.ErrNoOpenBook):
		RespondError(w, http.StatusConflict, "No open book")
	case errors.Is(err, scheduler.ErrPageOutOfRange):
		RespondError(w, http.StatusBadRequest, "Page index out of range")
	default:
		RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
