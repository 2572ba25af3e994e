// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// graphwatch.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Graph hub endpoint and credentials
//   - StreamConfig: WebSocket client tuning
//   - MetricsConfig: Aggregator tuning
//   - Watcher: fsnotify-based hot reload of the config file
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (GRAPHWATCH_*)
//   - ~/.graphwatch/config.toml
//   - ~/.graphwatch/config.json
//   - Built-in defaults
//
// There is no package-level config singleton: Load returns a value and the
// application wires it through explicitly.
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	base := cfg.Server.BaseURL
//	flush := cfg.Stream.FlushInterval()
package config
