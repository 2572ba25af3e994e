// graphwatch - Live terminal dashboard for a streaming graph hub.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/jeranaias/graphwatch/internal/cli"
	"github.com/jeranaias/graphwatch/internal/config"
	"github.com/jeranaias/graphwatch/internal/console"
	"github.com/jeranaias/graphwatch/internal/graphws"
	"github.com/jeranaias/graphwatch/internal/metrics"
	"github.com/jeranaias/graphwatch/internal/sched"
	"github.com/jeranaias/graphwatch/internal/storage"
	"github.com/jeranaias/graphwatch/internal/telemetry"
	"github.com/jeranaias/graphwatch/internal/ui/monitor"
)

// Version information (set at build time)
var (
	Version   = "0.4.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdMonitor:
		if err := runStream(args, false); err != nil {
			cli.HandleErrorAndExit(err, args.JSON)
		}
	case cli.CmdConsole:
		if err := runStream(args, true); err != nil {
			cli.HandleErrorAndExit(err, args.JSON)
		}
	case cli.CmdStatus:
		if err := cli.HandleStatus(args); err != nil {
			cli.HandleErrorAndExit(err, args.JSON)
		}
	case cli.CmdConfig:
		if err := cli.HandleConfig(args); err != nil {
			cli.HandleErrorAndExit(err, args.JSON)
		}
	case cli.CmdSessions:
		if err := cli.HandleSessions(args); err != nil {
			cli.HandleErrorAndExit(err, args.JSON)
		}
	case cli.CmdVersion:
		cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		if err := runStream(args, false); err != nil {
			cli.HandleErrorAndExit(err, args.JSON)
		}
	}
}

// runStream wires the shared stream stack and hands it to the dashboard
// or the console. Both front ends share the same client, scheduler, and
// metrics service; only the presentation differs.
func runStream(args cli.Args, repl bool) error {
	cfg, err := cli.LoadConfigForCLI(args)
	if err != nil {
		return err
	}

	scheduler := sched.NewScheduler()
	defer scheduler.Stop()

	svc := metrics.NewService(scheduler, metrics.Options{
		SampleInterval: cfg.Metrics.SampleInterval(),
		HistorySize:    cfg.Metrics.HistorySize,
		TrendWindow:    cfg.Metrics.TrendWindow,
	})
	svc.Start()
	defer svc.Stop()

	client, err := graphws.NewClient(scheduler, graphws.Options{
		BaseURL:              cfg.Server.BaseURL,
		AuthToken:            cfg.Server.AuthToken,
		ConnectTimeout:       cfg.Stream.ConnectTimeout(),
		PingInterval:         cfg.Stream.PingInterval(),
		FlushInterval:        cfg.Stream.FlushInterval(),
		MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
		OnPingRTT: svc.RecordRTT,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	// Attention efficiency rides the stream while it flows; the sampler
	// falls back to synthesized data when the feed goes quiet.
	attnSub := client.SubscribeUpdates(func(b graphws.Batch) {
		if v, ok := b.MeanActivation(); ok {
			svc.RecordAttention(v)
		}
	})
	defer attnSub.Cancel()

	stopWatcher := watchConfig(args, cfg, client)
	defer stopWatcher()

	var store *storage.SessionStore
	if cfg.Recording.Enabled {
		store, err = storage.NewSessionStore(cfg.Recording.Dir, cfg.Recording.MaxSessions)
		if err != nil {
			// Recording is best-effort; the stream still runs without it
			log.Printf("WARNING: session recording disabled: %v", err)
			store = nil
		}
	}

	stopMetricsServer := startMetricsServer(cfg)
	defer stopMetricsServer()

	if repl {
		return console.New(cfg, client, svc, store).Run(args.Quiet)
	}
	return monitor.Run(cfg, client, svc, store)
}

// watchConfig hot-reloads the config file while a stream front end runs.
// Only the auth token can be applied to a live stack; other changes are
// logged as needing a restart. Returns a stop function.
func watchConfig(args cli.Args, cfg *config.Config, client *graphws.Client) func() {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return func() {}
		}
		path = p
	}

	// prev is only touched from the watcher's reload goroutine
	prev := cfg
	w, err := config.NewWatcher(path, func(next *config.Config) {
		if next.Server.AuthToken != prev.Server.AuthToken {
			client.SetAuthToken(next.Server.AuthToken)
			log.Printf("auth token updated; applies on the next reconnect")
		}
		if next.Server.BaseURL != prev.Server.BaseURL {
			log.Printf("WARNING: server.base_url changed; restart to apply")
		}
		if next.Stream != prev.Stream {
			log.Printf("WARNING: stream settings changed; restart to apply")
		}
		prev = next
	})
	if err != nil {
		log.Printf("WARNING: config watch unavailable: %v", err)
		return func() {}
	}
	if err := w.Watch(); err != nil {
		log.Printf("WARNING: config watch unavailable: %v", err)
		w.Close()
		return func() {}
	}
	return func() { w.Close() }
}

// startMetricsServer serves Prometheus /metrics when an address is
// configured. Returns a no-op stop function when disabled.
func startMetricsServer(cfg *config.Config) func() {
	addr := cfg.Monitor.MetricsListenAddr
	if addr == "" {
		return func() {}
	}

	telemetry.SetBuildInfo(Version, GitCommit)

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "WARNING: metrics server failed: %v\n", err)
		}
	}()

	return func() { srv.Close() }
}
