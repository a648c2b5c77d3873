// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package backend talks to the upscale worker process over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"

	"github.com/HibernalGlow/neoview-upscale/internal/scheduler"
)

// Client implements scheduler.Executor against the worker's HTTP API.
type Client struct {
	baseURL     string
	http        *http.Client
	dialRetries uint
}

func NewClient(baseURL string, timeout time.Duration, dialRetries int) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if dialRetries < 1 {
		dialRetries = 1
	}
	return &Client{
		baseURL:     baseURL,
		http:        &http.Client{Timeout: timeout},
		dialRetries: uint(dialRetries),
	}, nil
}

// WaitReady polls the worker health endpoint until it responds, with
// exponential backoff. Called once at startup.
func (c *Client) WaitReady(ctx context.Context) error {
	return retry.Do(
		func() error {
			return c.health(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(c.dialRetries),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("attempt", n+1).Msg("backend: health check failed, retrying")
		}),
	)
}

func (c *Client) health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health returned %d", resp.StatusCode)
	}
	return nil
}

type upscaleRequest struct {
	BookPath   string `json:"bookPath"`
	ImagePath  string `json:"imagePath"`
	ImageHash  string `json:"imageHash,omitempty"`
	Model      string `json:"model"`
	Scale      int    `json:"scale"`
	TileSize   int    `json:"tileSize"`
	NoiseLevel int    `json:"noiseLevel"`
	GPUID      int    `json:"gpuId"`
	UseCache   bool   `json:"useCache"`
}

type upscaleResponse struct {
	CachePath string `json:"cachePath"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Error     string `json:"error,omitempty"`
}

// ExecuteUpscale runs one job on the worker. The worker handles cache
// lookups itself when useCache is set; a hit still returns the cache path.
func (c *Client) ExecuteUpscale(ctx context.Context, job *scheduler.Job) (*scheduler.Result, error) {
	body, err := json.Marshal(upscaleRequest{
		BookPath:   job.BookPath,
		ImagePath:  job.ImagePath,
		ImageHash:  job.ImageHash,
		Model:      job.Spec.Model,
		Scale:      job.Spec.Scale,
		TileSize:   job.Spec.TileSize,
		NoiseLevel: job.Spec.NoiseLevel,
		GPUID:      job.Spec.GPUID,
		UseCache:   job.Spec.UseCache,
	})
	if err != nil {
		return nil, fmt.Errorf("encode upscale request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upscale", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}

	var decoded upscaleResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode backend response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != "" {
			return nil, fmt.Errorf("backend returned %d: %s", resp.StatusCode, decoded.Error)
		}
		return nil, fmt.Errorf("backend returned %d", resp.StatusCode)
	}

	return &scheduler.Result{
		CachePath: decoded.CachePath,
		Width:     decoded.Width,
		Height:    decoded.Height,
	}, nil
}
