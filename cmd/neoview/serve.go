// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HibernalGlow/neoview-upscale/internal/api"
	"github.com/HibernalGlow/neoview-upscale/internal/backend"
	"github.com/HibernalGlow/neoview-upscale/internal/buildinfo"
	"github.com/HibernalGlow/neoview-upscale/internal/config"
	"github.com/HibernalGlow/neoview-upscale/internal/database"
	"github.com/HibernalGlow/neoview-upscale/internal/domain"
	"github.com/HibernalGlow/neoview-upscale/internal/logger"
	"github.com/HibernalGlow/neoview-upscale/internal/metrics"
	"github.com/HibernalGlow/neoview-upscale/internal/models"
	"github.com/HibernalGlow/neoview-upscale/internal/scheduler"
)

func RunServeCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upscale scheduling service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, configDir)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "directory holding config.toml (defaults to the user config dir)")
	return cmd
}

func runServer(ctx context.Context, configDir string) error {
	appConfig, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Setup(appConfig.Config)
	appConfig.OnReload(func(cfg *domain.Config) {
		logger.SetLogLevel(cfg.LogLevel)
	})

	log.Info().
		Str("version", buildinfo.Version).
		Str("config", appConfig.ConfigPath()).
		Msg("starting neoview-upscale")

	if err := appConfig.Config.ValidateBackendURL(); err != nil {
		return err
	}

	db, err := database.New(appConfig.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	conditionStore := models.NewConditionStore(db.Conn())
	scheduleStore := models.NewScheduleStore(db.Conn())

	backendClient, err := backend.NewClient(
		appConfig.Config.BackendURL,
		time.Duration(appConfig.Config.BackendTimeoutSeconds)*time.Second,
		appConfig.Config.BackendDialRetries,
	)
	if err != nil {
		return err
	}
	if err := backendClient.WaitReady(ctx); err != nil {
		log.Warn().Err(err).Msg("backend not reachable at startup, continuing anyway")
	}

	schedulerService := scheduler.NewService(backendClient, conditionStore, scheduleStore)
	if err := schedulerService.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	deps := api.Dependencies{
		Config:         appConfig.Config,
		Scheduler:      schedulerService,
		ConditionStore: conditionStore,
		ScheduleStore:  scheduleStore,
		Backend:        backendClient,
	}
	if appConfig.Config.MetricsEnabled {
		deps.Metrics = metrics.NewManager(schedulerService)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(appConfig.Config.Host, fmt.Sprint(appConfig.Config.Port)),
		Handler:           api.NewServer(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown failed")
		}

		schedulerService.Shutdown()
		return nil
	})

	return g.Wait()
}
