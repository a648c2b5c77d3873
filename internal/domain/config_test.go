// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBackendURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{name: "http accepted", url: "http://127.0.0.1:7860"},
		{name: "https accepted", url: "https://upscaler.local"},
		{name: "empty rejected", url: "", wantErr: "required"},
		{name: "blank rejected", url: "   ", wantErr: "required"},
		{name: "missing host rejected", url: "http://", wantErr: "missing host"},
		{name: "wrong scheme rejected", url: "ftp://example.com", wantErr: "scheme"},
		{name: "bare host rejected", url: "localhost:7860", wantErr: "scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{BackendURL: tt.url}
			err := cfg.ValidateBackendURL()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
