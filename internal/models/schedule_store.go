// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
)

// ScheduleStore persists the schedule settings and global upscale defaults
// (single-row tables).
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// GetScheduleConfig returns the stored config, or the defaults when none has
// been saved yet.
func (s *ScheduleStore) GetScheduleConfig(ctx context.Context) (ScheduleConfig, error) {
	var cfg ScheduleConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT auto_upscale_enabled, pre_upscale_enabled, preload_pages, background_concurrency,
		       progressive_enabled, progressive_dwell_seconds, progressive_max_pages
		FROM schedule_settings
		WHERE id = 1
	`).Scan(
		&cfg.AutoUpscaleEnabled,
		&cfg.PreUpscaleEnabled,
		&cfg.PreloadPages,
		&cfg.BackgroundConcurrency,
		&cfg.ProgressiveUpscaleEnabled,
		&cfg.ProgressiveDwellSeconds,
		&cfg.ProgressiveMaxPages,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultScheduleConfig(), nil
	}
	if err != nil {
		return ScheduleConfig{}, err
	}
	return cfg.Clamped(), nil
}

// SaveScheduleConfig upserts the config, clamping before the write.
func (s *ScheduleStore) SaveScheduleConfig(ctx context.Context, cfg ScheduleConfig) error {
	cfg = cfg.Clamped()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_settings (id, auto_upscale_enabled, pre_upscale_enabled, preload_pages,
		                               background_concurrency, progressive_enabled,
		                               progressive_dwell_seconds, progressive_max_pages, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			auto_upscale_enabled = excluded.auto_upscale_enabled,
			pre_upscale_enabled = excluded.pre_upscale_enabled,
			preload_pages = excluded.preload_pages,
			background_concurrency = excluded.background_concurrency,
			progressive_enabled = excluded.progressive_enabled,
			progressive_dwell_seconds = excluded.progressive_dwell_seconds,
			progressive_max_pages = excluded.progressive_max_pages,
			updated_at = CURRENT_TIMESTAMP
	`,
		cfg.AutoUpscaleEnabled,
		cfg.PreUpscaleEnabled,
		cfg.PreloadPages,
		cfg.BackgroundConcurrency,
		cfg.ProgressiveUpscaleEnabled,
		cfg.ProgressiveDwellSeconds,
		cfg.ProgressiveMaxPages,
	)
	return err
}

// GetUpscaleDefaults returns the stored global defaults, or the shipped
// defaults when none are saved.
func (s *ScheduleStore) GetUpscaleDefaults(ctx context.Context) (UpscaleDefaults, error) {
	var d UpscaleDefaults
	err := s.db.QueryRowContext(ctx, `
		SELECT model, scale, tile_size, noise_level, gpu_id, use_cache
		FROM upscale_defaults
		WHERE id = 1
	`).Scan(&d.Model, &d.Scale, &d.TileSize, &d.NoiseLevel, &d.GPUID, &d.UseCache)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultUpscaleDefaults(), nil
	}
	if err != nil {
		return UpscaleDefaults{}, err
	}
	return d, nil
}

// SaveUpscaleDefaults upserts the global defaults.
func (s *ScheduleStore) SaveUpscaleDefaults(ctx context.Context, d UpscaleDefaults) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO upscale_defaults (id, model, scale, tile_size, noise_level, gpu_id, use_cache, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			model = excluded.model,
			scale = excluded.scale,
			tile_size = excluded.tile_size,
			noise_level = excluded.noise_level,
			gpu_id = excluded.gpu_id,
			use_cache = excluded.use_cache,
			updated_at = CURRENT_TIMESTAMP
	`, d.Model, d.Scale, d.TileSize, d.NoiseLevel, d.GPUID, d.UseCache)
	return err
}
