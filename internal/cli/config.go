// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration command handlers for graphwatch.
package cli

import (
	"fmt"

	"github.com/jeranaias/graphwatch/internal/config"
)

// LoadConfigForCLI loads the configuration honoring the global flags:
// --config selects the file, --server/--token/--record override values.
// Flags beat environment variables, which beat the file.
func LoadConfigForCLI(args Args) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if args.ServerURL != "" {
		cfg.Server.BaseURL = args.ServerURL
	}
	if args.AuthToken != "" {
		cfg.Server.AuthToken = args.AuthToken
	}
	if args.Record {
		cfg.Recording.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HandleConfig handles the "config" command (show, set, path).
func HandleConfig(args Args) error {
	switch args.Subcommand {
	case "", "show":
		return handleConfigShow(args)
	case "set":
		return handleConfigSet(args)
	case "path":
		return handleConfigPath(args)
	default:
		return HandleError(NewValidationErrorWithExample(
			"subcommand", args.Subcommand, "unknown config subcommand",
			"graphwatch config [show|set|path]"), args.JSON)
	}
}

// handleConfigShow displays the current configuration.
func handleConfigShow(args Args) error {
	cfg, err := LoadConfigForCLI(args)
	if err != nil {
		return HandleError(WrapError(err, "failed to load configuration"), args.JSON)
	}

	path := args.ConfigPath
	if path == "" {
		path, _ = config.ConfigPathTOML()
	}

	data := ConfigData{
		Server: ConfigServerInfo{
			BaseURL:  cfg.Server.BaseURL,
			TokenSet: cfg.Server.AuthToken != "",
		},
		Stream: ConfigStreamInfo{
			FlushIntervalMs:      cfg.Stream.FlushIntervalMs,
			PingIntervalSecs:     cfg.Stream.PingIntervalSecs,
			ConnectTimeoutSecs:   cfg.Stream.ConnectTimeoutSecs,
			MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
		},
		Metrics: ConfigMetricsInfo{
			SampleIntervalSecs: cfg.Metrics.SampleIntervalSecs,
			HistorySize:        cfg.Metrics.HistorySize,
			TrendWindow:        cfg.Metrics.TrendWindow,
		},
		Monitor: ConfigMonitorInfo{
			MetricsListenAddr: cfg.Monitor.MetricsListenAddr,
			Theme:             cfg.Monitor.Theme,
		},
		Recording: ConfigRecordingInfo{
			Enabled:     cfg.Recording.Enabled,
			Dir:         cfg.Recording.Dir,
			MaxSessions: cfg.Recording.MaxSessions,
		},
		Path: path,
	}

	if args.JSON {
		return NewJSONResponse("config", data).Print()
	}

	fmt.Println(TitleStyle.Render("graphwatch configuration"))
	fmt.Println(RenderSeparatorAdaptive())

	fmt.Println(SectionStyle.Render("Server"))
	fmt.Printf("%s %s\n", RenderLabel("base_url:"), ValueStyle.Render(data.Server.BaseURL))
	token := "(not set)"
	if data.Server.TokenSet {
		token = "(set)"
	}
	fmt.Printf("%s %s\n", RenderLabel("auth_token:"), DimStyle.Render(token))

	fmt.Println(SectionStyle.Render("Stream"))
	fmt.Printf("%s %s\n", RenderLabel("flush_interval_ms:"), ValueStyle.Render(fmt.Sprintf("%d", data.Stream.FlushIntervalMs)))
	fmt.Printf("%s %s\n", RenderLabel("ping_interval_secs:"), ValueStyle.Render(fmt.Sprintf("%d", data.Stream.PingIntervalSecs)))
	fmt.Printf("%s %s\n", RenderLabel("connect_timeout_secs:"), ValueStyle.Render(fmt.Sprintf("%d", data.Stream.ConnectTimeoutSecs)))
	fmt.Printf("%s %s\n", RenderLabel("max_reconnect_attempts:"), ValueStyle.Render(fmt.Sprintf("%d", data.Stream.MaxReconnectAttempts)))

	fmt.Println(SectionStyle.Render("Metrics"))
	fmt.Printf("%s %s\n", RenderLabel("sample_interval_secs:"), ValueStyle.Render(fmt.Sprintf("%d", data.Metrics.SampleIntervalSecs)))
	fmt.Printf("%s %s\n", RenderLabel("history_size:"), ValueStyle.Render(fmt.Sprintf("%d", data.Metrics.HistorySize)))
	fmt.Printf("%s %s\n", RenderLabel("trend_window:"), ValueStyle.Render(fmt.Sprintf("%d", data.Metrics.TrendWindow)))

	fmt.Println(SectionStyle.Render("Monitor"))
	listen := data.Monitor.MetricsListenAddr
	if listen == "" {
		listen = "(disabled)"
	}
	fmt.Printf("%s %s\n", RenderLabel("metrics_listen:"), ValueStyle.Render(listen))
	fmt.Printf("%s %s\n", RenderLabel("theme:"), ValueStyle.Render(data.Monitor.Theme))

	fmt.Println(SectionStyle.Render("Recording"))
	fmt.Printf("%s %s\n", RenderLabel("recording:"), ValueStyle.Render(fmt.Sprintf("%t", data.Recording.Enabled)))
	dir := data.Recording.Dir
	if dir == "" {
		dir = "(default: ~/.graphwatch/sessions)"
	}
	fmt.Printf("%s %s\n", RenderLabel("recording_dir:"), ValueStyle.Render(dir))
	fmt.Printf("%s %s\n", RenderLabel("max_sessions:"), ValueStyle.Render(fmt.Sprintf("%d", data.Recording.MaxSessions)))

	fmt.Println()
	fmt.Printf("%s %s\n", RenderLabel("Config file:"), DimStyle.Render(data.Path))
	return nil
}

// handleConfigSet sets a single configuration value and saves the file.
func handleConfigSet(args Args) error {
	if args.ConfigKey == "" {
		return HandleError(ErrMissingArgument("key",
			"graphwatch config set base_url http://hub.local:8420"), args.JSON)
	}
	if args.ConfigVal == "" {
		return HandleError(ErrMissingArgument("value",
			"graphwatch config set base_url http://hub.local:8420"), args.JSON)
	}

	var cfg *config.Config
	var err error
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return HandleError(WrapError(err, "failed to load configuration"), args.JSON)
	}

	if err := applyConfigKey(cfg, args.ConfigKey, args.ConfigVal); err != nil {
		return HandleError(err, args.JSON)
	}

	if err := cfg.Validate(); err != nil {
		return HandleError(WrapError(err, "invalid configuration"), args.JSON)
	}

	if args.ConfigPath != "" {
		err = config.SaveTOML(cfg, args.ConfigPath)
	} else {
		err = config.Save(cfg)
	}
	if err != nil {
		return HandleError(WrapError(err, "failed to save configuration"), args.JSON)
	}

	if args.JSON {
		return NewJSONResponse("config", map[string]string{
			"key":   args.ConfigKey,
			"value": args.ConfigVal,
		}).Print()
	}
	fmt.Printf("%s %s = %s\n", SuccessStyle.Render("[OK]"), args.ConfigKey, args.ConfigVal)
	return nil
}

// applyConfigKey maps a settable key name onto the config struct.
func applyConfigKey(cfg *config.Config, key, val string) error {
	switch key {
	case "base_url":
		cfg.Server.BaseURL = val
	case "auth_token":
		cfg.Server.AuthToken = val
	case "flush_interval_ms":
		n, err := ParseIntWithValidation(val, key)
		if err != nil {
			return NewValidationError(key, val, err.Error())
		}
		cfg.Stream.FlushIntervalMs = n
	case "ping_interval_secs":
		n, err := ParseIntWithValidation(val, key)
		if err != nil {
			return NewValidationError(key, val, err.Error())
		}
		cfg.Stream.PingIntervalSecs = n
	case "connect_timeout_secs":
		n, err := ParseIntWithValidation(val, key)
		if err != nil {
			return NewValidationError(key, val, err.Error())
		}
		cfg.Stream.ConnectTimeoutSecs = n
	case "max_reconnect_attempts":
		n, err := ParseIntWithValidation(val, key)
		if err != nil {
			return NewValidationError(key, val, err.Error())
		}
		cfg.Stream.MaxReconnectAttempts = n
	case "sample_interval_secs":
		n, err := ParseIntWithValidation(val, key)
		if err != nil {
			return NewValidationError(key, val, err.Error())
		}
		cfg.Metrics.SampleIntervalSecs = n
	case "history_size":
		n, err := ParseIntWithValidation(val, key)
		if err != nil {
			return NewValidationError(key, val, err.Error())
		}
		cfg.Metrics.HistorySize = n
	case "trend_window":
		n, err := ParseIntWithValidation(val, key)
		if err != nil {
			return NewValidationError(key, val, err.Error())
		}
		cfg.Metrics.TrendWindow = n
	case "metrics_listen":
		cfg.Monitor.MetricsListenAddr = val
	case "theme":
		cfg.Monitor.Theme = val
	case "recording":
		b, err := ParseBoolString(val)
		if err != nil {
			return NewValidationError(key, val, err.Error())
		}
		cfg.Recording.Enabled = b
	case "recording_dir":
		cfg.Recording.Dir = val
	case "max_sessions":
		n, err := ParseIntWithValidation(val, key)
		if err != nil {
			return NewValidationError(key, val, err.Error())
		}
		cfg.Recording.MaxSessions = n
	default:
		return NewNotFoundError("config key", key)
	}
	return nil
}

// handleConfigPath prints the config file path.
func handleConfigPath(args Args) error {
	path := args.ConfigPath
	if path == "" {
		var err error
		path, err = config.ConfigPathTOML()
		if err != nil {
			return HandleError(err, args.JSON)
		}
	}

	if args.JSON {
		return NewJSONResponse("config", map[string]string{"path": path}).Print()
	}
	fmt.Println(path)
	return nil
}
