// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package domain holds the application configuration model.
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`
	DatabasePath  string `toml:"databasePath" mapstructure:"databasePath"`

	MetricsEnabled bool `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	PprofEnabled   bool `toml:"pprofEnabled" mapstructure:"pprofEnabled"`

	// Native super-resolution sidecar. The scheduler treats it as an opaque
	// executor; only the base URL and call budget are configured here.
	BackendURL            string `toml:"backendUrl" mapstructure:"backendUrl"`
	BackendTimeoutSeconds int    `toml:"backendTimeoutSeconds" mapstructure:"backendTimeoutSeconds"`
	BackendDialRetries    int    `toml:"backendDialRetries" mapstructure:"backendDialRetries"`
}

// ValidateBackendURL checks that the configured executor endpoint is usable.
func (c *Config) ValidateBackendURL() error {
	raw := strings.TrimSpace(c.BackendURL)
	if raw == "" {
		return errors.New("backendUrl is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid backendUrl %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backendUrl %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid backendUrl %q: missing host", raw)
	}
	return nil
}
