// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HibernalGlow/neoview-upscale/internal/scheduler"
	"github.com/HibernalGlow/neoview-upscale/internal/upscale"
)

func testJob() *scheduler.Job {
	return &scheduler.Job{
		ID:        "job-1",
		BookPath:  "/library/book.zip",
		PageIndex: 3,
		ImagePath: "p3.png",
		ImageHash: "abc123",
		Spec: upscale.JobSpec{
			Model:      "realcugan-se",
			Scale:      2,
			NoiseLevel: -1,
			UseCache:   true,
		},
	}
}

func TestClient_ExecuteUpscale(t *testing.T) {
	t.Parallel()

	var got upscaleRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upscale", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(upscaleResponse{
			CachePath: "/cache/abc123.png",
			Width:     1600,
			Height:    2400,
		})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, 5*time.Second, 1)
	require.NoError(t, err)

	res, err := client.ExecuteUpscale(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, "/cache/abc123.png", res.CachePath)
	assert.Equal(t, 1600, res.Width)
	assert.Equal(t, 2400, res.Height)

	assert.Equal(t, "/library/book.zip", got.BookPath)
	assert.Equal(t, "p3.png", got.ImagePath)
	assert.Equal(t, "abc123", got.ImageHash)
	assert.Equal(t, "realcugan-se", got.Model)
	assert.Equal(t, 2, got.Scale)
	assert.Equal(t, -1, got.NoiseLevel)
	assert.True(t, got.UseCache)
}

func TestClient_ExecuteUpscale_BackendError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(upscaleResponse{Error: "model not loaded"})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, 5*time.Second, 1)
	require.NoError(t, err)

	_, err = client.ExecuteUpscale(context.Background(), testJob())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestClient_ExecuteUpscale_HonorsContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server watches the connection and cancels
		// r.Context() when the client gives up; otherwise this handler (and
		// srv.Close) would block forever.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, time.Minute, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.ExecuteUpscale(ctx, testJob())
	require.Error(t, err)
}

func TestClient_WaitReadyRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, 5*time.Second, 5)
	require.NoError(t, err)

	require.NoError(t, client.WaitReady(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNewClient_RejectsBadRetries(t *testing.T) {
	t.Parallel()

	client, err := NewClient("http://127.0.0.1:7860", time.Second, 0)
	require.NoError(t, err)
	assert.Equal(t, uint(1), client.dialRetries)
}
