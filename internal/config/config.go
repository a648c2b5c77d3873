// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads and watches the TOML application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/HibernalGlow/neoview-upscale/internal/domain"
	"github.com/HibernalGlow/neoview-upscale/pkg/debounce"
)

const envPrefix = "NEOVIEW"

// AppConfig wraps the active configuration and its viper instance.
type AppConfig struct {
	Config *domain.Config

	v          *viper.Viper
	configPath string
	mu         sync.RWMutex
	onReload   []func(*domain.Config)
	debouncer  *debounce.Debouncer
}

// New loads the configuration from configDir (creating a default config file
// on first run) and starts watching it for changes.
func New(configDir string, version string) (*AppConfig, error) {
	c := &AppConfig{
		v:         viper.New(),
		debouncer: debounce.New(500 * time.Millisecond),
	}

	c.setDefaults()
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	c.v.AutomaticEnv()

	if err := c.resolveConfigFile(configDir); err != nil {
		return nil, err
	}

	cfg := &domain.Config{Version: version}
	if err := c.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Config = cfg

	c.watch()

	return c, nil
}

func (c *AppConfig) setDefaults() {
	c.v.SetDefault("host", "127.0.0.1")
	c.v.SetDefault("port", 7575)
	c.v.SetDefault("baseUrl", "/")
	c.v.SetDefault("logLevel", "INFO")
	c.v.SetDefault("logMaxSize", 50)
	c.v.SetDefault("logMaxBackups", 3)
	c.v.SetDefault("metricsEnabled", false)
	c.v.SetDefault("pprofEnabled", false)
	c.v.SetDefault("backendUrl", "http://127.0.0.1:7860")
	c.v.SetDefault("backendTimeoutSeconds", 120)
	c.v.SetDefault("backendDialRetries", 3)
}

func (c *AppConfig) resolveConfigFile(configDir string) error {
	if configDir == "" {
		configDir = defaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	c.configPath = filepath.Join(configDir, "config.toml")
	c.v.SetConfigFile(c.configPath)
	c.v.SetConfigType("toml")

	if _, err := os.Stat(c.configPath); os.IsNotExist(err) {
		if err := c.writeDefaultConfig(); err != nil {
			return err
		}
	}

	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", c.configPath, err)
	}
	return nil
}

func (c *AppConfig) writeDefaultConfig() error {
	var sb strings.Builder
	sb.WriteString("# neoview-upscale configuration\n\n")
	sb.WriteString("# Hostname / IP for the local API\n")
	sb.WriteString("host = \"127.0.0.1\"\n\n")
	sb.WriteString("port = 7575\n\n")
	sb.WriteString("# Log level: ERROR, WARN, INFO, DEBUG, TRACE\n")
	sb.WriteString("logLevel = \"INFO\"\n\n")
	sb.WriteString("# Optional log file (rotated). Empty logs to stderr only.\n")
	sb.WriteString("#logPath = \"log/neoview-upscale.log\"\n\n")
	sb.WriteString("# Native super-resolution sidecar\n")
	sb.WriteString("backendUrl = \"http://127.0.0.1:7860\"\n")

	if err := os.WriteFile(c.configPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write default config %s: %w", c.configPath, err)
	}
	log.Info().Str("path", c.configPath).Msg("config: wrote default config file")
	return nil
}

// watch reloads the config on file changes. Editors tend to emit bursts of
// write events, so reloads go through the debouncer.
func (c *AppConfig) watch() {
	c.v.OnConfigChange(func(e fsnotify.Event) {
		c.debouncer.Trigger(func() {
			c.reload()
		})
	})
	c.v.WatchConfig()
}

func (c *AppConfig) reload() {
	cfg := &domain.Config{Version: c.Config.Version}
	if err := c.v.Unmarshal(cfg); err != nil {
		log.Warn().Err(err).Msg("config: reload failed, keeping previous config")
		return
	}

	c.mu.Lock()
	c.Config = cfg
	handlers := make([]func(*domain.Config), len(c.onReload))
	copy(handlers, c.onReload)
	c.mu.Unlock()

	log.Debug().Str("path", c.configPath).Msg("config: reloaded")
	for _, h := range handlers {
		h(cfg)
	}
}

// OnReload registers a callback invoked with the new config after a reload.
func (c *AppConfig) OnReload(fn func(*domain.Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReload = append(c.onReload, fn)
}

// DatabasePath returns the configured database path, defaulting to a file
// next to the config file.
func (c *AppConfig) DatabasePath() string {
	if c.Config.DatabasePath != "" {
		return c.Config.DatabasePath
	}
	if c.Config.DataDir != "" {
		return filepath.Join(c.Config.DataDir, "neoview-upscale.db")
	}
	return filepath.Join(filepath.Dir(c.configPath), "neoview-upscale.db")
}

// ConfigPath returns the path of the loaded config file.
func (c *AppConfig) ConfigPath() string {
	return c.configPath
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "neoview-upscale")
	}
	return "."
}
