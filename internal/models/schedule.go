// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

const (
	minBackgroundConcurrency = 1
	maxBackgroundConcurrency = 4
)

// ScheduleConfig drives the background controllers. Mutated by the settings
// UI; controllers always work from a snapshot, never a shared reference.
type ScheduleConfig struct {
	AutoUpscaleEnabled        bool `json:"autoUpscaleEnabled"`
	PreUpscaleEnabled         bool `json:"preUpscaleEnabled"`
	PreloadPages              int  `json:"preloadPages"`
	BackgroundConcurrency     int  `json:"backgroundConcurrency"`
	ProgressiveUpscaleEnabled bool `json:"progressiveUpscaleEnabled"`
	ProgressiveDwellSeconds   int  `json:"progressiveDwellSeconds"`
	// ProgressiveMaxPages <= 0 means "all remaining pages".
	ProgressiveMaxPages int `json:"progressiveMaxPages"`
}

// DefaultScheduleConfig mirrors the viewer's shipped defaults.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		AutoUpscaleEnabled:        true,
		PreUpscaleEnabled:         true,
		PreloadPages:              3,
		BackgroundConcurrency:     2,
		ProgressiveUpscaleEnabled: false,
		ProgressiveDwellSeconds:   5,
		ProgressiveMaxPages:       10,
	}
}

// Clamped returns a copy with out-of-range values pulled back to safe
// minimums instead of rejected.
func (c ScheduleConfig) Clamped() ScheduleConfig {
	if c.BackgroundConcurrency < minBackgroundConcurrency {
		c.BackgroundConcurrency = minBackgroundConcurrency
	}
	if c.BackgroundConcurrency > maxBackgroundConcurrency {
		c.BackgroundConcurrency = maxBackgroundConcurrency
	}
	if c.PreloadPages < 0 {
		c.PreloadPages = 0
	}
	if c.ProgressiveDwellSeconds < 1 {
		c.ProgressiveDwellSeconds = 1
	}
	return c
}

// UpscaleDefaults is the globally configured action used when no condition
// matches a page.
type UpscaleDefaults struct {
	Model      string `json:"model"`
	Scale      int    `json:"scale"`
	TileSize   int    `json:"tileSize"`
	NoiseLevel int    `json:"noiseLevel"`
	GPUID      int    `json:"gpuId"`
	UseCache   bool   `json:"useCache"`
}

// DefaultUpscaleDefaults matches the viewer's shipped model configuration.
func DefaultUpscaleDefaults() UpscaleDefaults {
	return UpscaleDefaults{
		Model:      "realcugan-se",
		Scale:      2,
		TileSize:   0,
		NoiseLevel: -1,
		GPUID:      0,
		UseCache:   true,
	}
}
