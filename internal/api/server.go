// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api assembles the HTTP surface: viewer events, condition and
// schedule management, stats, health, and metrics.
package api

import (
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/HibernalGlow/neoview-upscale/internal/api/handlers"
	"github.com/HibernalGlow/neoview-upscale/internal/domain"
	"github.com/HibernalGlow/neoview-upscale/internal/metrics"
	"github.com/HibernalGlow/neoview-upscale/internal/models"
	"github.com/HibernalGlow/neoview-upscale/internal/scheduler"
)

type Dependencies struct {
	Config         *domain.Config
	Scheduler      *scheduler.Service
	ConditionStore *models.ConditionStore
	ScheduleStore  *models.ScheduleStore
	Backend        handlers.BackendPinger
	Metrics        *metrics.Manager
}

type Server struct {
	deps Dependencies
}

func NewServer(deps Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the full router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.New(cors.Options{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	healthHandler := handlers.NewHealthHandler(s.deps.Backend)
	conditionHandler := handlers.NewConditionHandler(s.deps.ConditionStore, s.deps.Scheduler)
	scheduleHandler := handlers.NewScheduleHandler(s.deps.ScheduleStore, s.deps.Scheduler)
	viewerHandler := handlers.NewViewerHandler(s.deps.Scheduler)
	statusHandler := handlers.NewStatusHandler(s.deps.Scheduler)

	r.Route("/api", func(r chi.Router) {
		healthHandler.Routes(r)
		statusHandler.Routes(r)
		r.Route("/conditions", conditionHandler.Routes)
		r.Route("/schedule", scheduleHandler.Routes)
		r.Route("/viewer", viewerHandler.Routes)
	})

	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			s.deps.Metrics.GetRegistry(),
			promhttp.HandlerOpts{},
		))
	}

	if s.deps.Config != nil && s.deps.Config.PprofEnabled {
		r.Route("/debug/pprof", func(r chi.Router) {
			r.Get("/", pprof.Index)
			r.Get("/cmdline", pprof.Cmdline)
			r.Get("/profile", pprof.Profile)
			r.Get("/symbol", pprof.Symbol)
			r.Get("/trace", pprof.Trace)
			r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
				pprof.Handler(chi.URLParam(req, "name")).ServeHTTP(w, req)
			})
		})
	}

	return r
}
