// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HibernalGlow/neoview-upscale/internal/database"
	"github.com/HibernalGlow/neoview-upscale/internal/models"
	"github.com/HibernalGlow/neoview-upscale/internal/testdb"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(testdb.PathFromTemplate(t, "models", "models.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConditionStore_EnsureSeed(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := models.NewConditionStore(db.Conn())
	ctx := context.Background()

	require.NoError(t, store.EnsureSeed(ctx))

	conds, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, conds, 1)
	assert.Equal(t, "Small pages", conds[0].Name)
	assert.Equal(t, 0, conds[0].Priority)

	// Seeding again must not duplicate.
	require.NoError(t, store.EnsureSeed(ctx))
	conds, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, conds, 1)
}

func TestConditionStore_ReplaceAllRoundTrip(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := models.NewConditionStore(db.Conn())
	ctx := context.Background()

	maxWidth := 1200
	want := []*models.Condition{
		{
			ID:       "cond-b",
			Name:     "b",
			Enabled:  true,
			Priority: 5,
			Match: models.MatchSpec{
				MaxWidth:      &maxWidth,
				RegexBookPath: `artbook`,
				Metadata: map[string]models.Expression{
					"format": {Operator: models.OperatorEqual, Value: "png"},
				},
			},
			Action: models.UpscaleAction{Model: "realcugan-se", Scale: 2, UseCache: true},
		},
		{
			ID:       "cond-a",
			Name:     "a",
			Enabled:  false,
			Priority: 1,
			Match:    models.MatchSpec{ExcludeFromPreload: true},
			Action:   models.UpscaleAction{Skip: true},
		},
	}

	require.NoError(t, store.ReplaceAll(ctx, want))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Priorities come back dense, sorted by raw priority.
	assert.Equal(t, "cond-a", got[0].ID)
	assert.Equal(t, 0, got[0].Priority)
	assert.True(t, got[0].Action.Skip)
	assert.True(t, got[0].Match.ExcludeFromPreload)

	assert.Equal(t, "cond-b", got[1].ID)
	assert.Equal(t, 1, got[1].Priority)
	require.NotNil(t, got[1].Match.MaxWidth)
	assert.Equal(t, 1200, *got[1].Match.MaxWidth)
	assert.Equal(t, "png", got[1].Match.Metadata["format"].Value)
}

func TestConditionStore_Get(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := models.NewConditionStore(db.Conn())
	ctx := context.Background()

	require.NoError(t, store.EnsureSeed(ctx))
	conds, err := store.List(ctx)
	require.NoError(t, err)

	got, err := store.Get(ctx, conds[0].ID)
	require.NoError(t, err)
	assert.Equal(t, conds[0].Name, got.Name)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestConditionStore_Mutate(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := models.NewConditionStore(db.Conn())
	ctx := context.Background()

	require.NoError(t, store.EnsureSeed(ctx))

	extra := models.DefaultCondition()
	extra.Name = "extra"
	next, err := store.Mutate(ctx, func(conds []*models.Condition) ([]*models.Condition, error) {
		return models.AppendCondition(conds, extra), nil
	})
	require.NoError(t, err)
	require.Len(t, next, 2)

	stored, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "extra", stored[1].Name)
	assert.Equal(t, 1, stored[1].Priority)
}

func TestScheduleStore_Defaults(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := models.NewScheduleStore(db.Conn())
	ctx := context.Background()

	cfg, err := store.GetScheduleConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultScheduleConfig(), cfg)

	defaults, err := store.GetUpscaleDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultUpscaleDefaults(), defaults)
}

func TestScheduleStore_SaveAndClamp(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := models.NewScheduleStore(db.Conn())
	ctx := context.Background()

	cfg := models.ScheduleConfig{
		AutoUpscaleEnabled:        true,
		PreUpscaleEnabled:         false,
		PreloadPages:              -3,
		BackgroundConcurrency:     9,
		ProgressiveUpscaleEnabled: true,
		ProgressiveDwellSeconds:   0,
		ProgressiveMaxPages:       -1,
	}
	require.NoError(t, store.SaveScheduleConfig(ctx, cfg))

	got, err := store.GetScheduleConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, got.PreloadPages)
	assert.Equal(t, 4, got.BackgroundConcurrency)
	assert.Equal(t, 1, got.ProgressiveDwellSeconds)
	assert.Equal(t, -1, got.ProgressiveMaxPages)
	assert.True(t, got.ProgressiveUpscaleEnabled)
	assert.False(t, got.PreUpscaleEnabled)

	d := models.UpscaleDefaults{Model: "realesrgan-x4plus", Scale: 4, TileSize: 128, NoiseLevel: 1, GPUID: 1, UseCache: false}
	require.NoError(t, store.SaveUpscaleDefaults(ctx, d))

	gotDefaults, err := store.GetUpscaleDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, d, gotDefaults)
}
