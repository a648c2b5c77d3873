// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package upscale

import (
	"github.com/HibernalGlow/neoview-upscale/internal/models"
)

// JobSpec is the resolved, immutable job description for one page.
type JobSpec struct {
	Model      string `json:"model"`
	Scale      int    `json:"scale"`
	TileSize   int    `json:"tileSize"`
	NoiseLevel int    `json:"noiseLevel"`
	GPUID      int    `json:"gpuId"`
	UseCache   bool   `json:"useCache"`
	Skip       bool   `json:"skip,omitempty"`

	// ConditionID is the matched condition, empty when defaults applied.
	ConditionID string `json:"conditionId,omitempty"`
}

// Resolve turns a match outcome into a job spec. No match falls back to the
// global defaults; a matched skip action short-circuits to a skip spec whose
// remaining fields are meaningless.
func Resolve(matched *models.Condition, defaults models.UpscaleDefaults) JobSpec {
	if matched == nil {
		return JobSpec{
			Model:      defaults.Model,
			Scale:      defaults.Scale,
			TileSize:   defaults.TileSize,
			NoiseLevel: defaults.NoiseLevel,
			GPUID:      defaults.GPUID,
			UseCache:   defaults.UseCache,
		}
	}

	if matched.Action.Skip {
		return JobSpec{Skip: true, ConditionID: matched.ID}
	}

	return JobSpec{
		Model:       matched.Action.Model,
		Scale:       matched.Action.Scale,
		TileSize:    matched.Action.TileSize,
		NoiseLevel:  matched.Action.NoiseLevel,
		GPUID:       matched.Action.GPUID,
		UseCache:    matched.Action.UseCache,
		ConditionID: matched.ID,
	}
}
