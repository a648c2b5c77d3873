// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package upscale

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HibernalGlow/neoview-upscale/internal/models"
)

func TestResolve_NoMatchFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	defaults := models.DefaultUpscaleDefaults()
	spec := Resolve(nil, defaults)

	assert.False(t, spec.Skip)
	assert.Empty(t, spec.ConditionID)
	assert.Equal(t, defaults.Model, spec.Model)
	assert.Equal(t, defaults.Scale, spec.Scale)
	assert.Equal(t, defaults.NoiseLevel, spec.NoiseLevel)
	assert.Equal(t, defaults.UseCache, spec.UseCache)
}

func TestResolve_SkipShortCircuits(t *testing.T) {
	t.Parallel()

	cond := &models.Condition{
		ID:     "skip-large",
		Name:   "skip-large",
		Action: models.UpscaleAction{Skip: true},
	}

	spec := Resolve(cond, models.DefaultUpscaleDefaults())
	assert.True(t, spec.Skip)
	assert.Equal(t, "skip-large", spec.ConditionID)
	assert.Empty(t, spec.Model)
}

func TestResolve_MatchedActionCopiedVerbatim(t *testing.T) {
	t.Parallel()

	cond := &models.Condition{
		ID:   "anime-4x",
		Name: "anime-4x",
		Action: models.UpscaleAction{
			Model:      "realesrgan-x4plus-anime",
			Scale:      4,
			TileSize:   256,
			NoiseLevel: 2,
			GPUID:      1,
			UseCache:   false,
		},
	}

	spec := Resolve(cond, models.DefaultUpscaleDefaults())
	assert.Equal(t, "anime-4x", spec.ConditionID)
	assert.Equal(t, "realesrgan-x4plus-anime", spec.Model)
	assert.Equal(t, 4, spec.Scale)
	assert.Equal(t, 256, spec.TileSize)
	assert.Equal(t, 2, spec.NoiseLevel)
	assert.Equal(t, 1, spec.GPUID)
	assert.False(t, spec.UseCache)
	assert.False(t, spec.Skip)
}
