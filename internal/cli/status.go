// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - One-shot connection check against the configured hub.
package cli

import (
	"fmt"
	"time"

	"github.com/jeranaias/graphwatch/internal/graphws"
	"github.com/jeranaias/graphwatch/internal/sched"
)

// HandleStatus handles the "status" command. It dials the hub once,
// reports whether the stream endpoint is reachable, and exits without
// entering the reconnect loop.
func HandleStatus(args Args) error {
	cfg, err := LoadConfigForCLI(args)
	if err != nil {
		return HandleError(WrapError(err, "failed to load configuration"), args.JSON)
	}

	scheduler := sched.NewScheduler()
	defer scheduler.Stop()

	client, err := graphws.NewClient(scheduler, graphws.Options{
		BaseURL:        cfg.Server.BaseURL,
		AuthToken:      cfg.Server.AuthToken,
		ConnectTimeout: cfg.Stream.ConnectTimeout(),
		PingInterval:   cfg.Stream.PingInterval(),
		FlushInterval:  cfg.Stream.FlushInterval(),
	})
	if err != nil {
		return HandleError(WrapError(err, "invalid server URL"), args.JSON)
	}
	defer client.Close()

	stateCh := make(chan graphws.StateEvent, 16)
	sub := client.SubscribeState(func(e graphws.StateEvent) {
		stateCh <- e
	})
	defer sub.Cancel()

	client.Connect()

	// Wait for the first definitive outcome: connected, or the first
	// failure. A one-shot check does not ride the backoff schedule.
	reachable := false
	var lastErr error
	deadline := time.After(cfg.Stream.ConnectTimeout() + 2*time.Second)
loop:
	for {
		select {
		case e := <-stateCh:
			switch e.Current {
			case graphws.StateConnected:
				reachable = true
				break loop
			case graphws.StateReconnecting, graphws.StateError:
				if e.Err != nil {
					lastErr = e.Err
				} else {
					lastErr = client.LastError()
				}
				break loop
			}
		case <-deadline:
			lastErr = fmt.Errorf("timed out waiting for connection")
			break loop
		}
	}

	state := client.State()
	rtt := client.RTT()
	client.Disconnect()

	data := StatusData{
		Connection: StatusConnectionInfo{
			ServerURL: cfg.Server.BaseURL,
			State:     state.String(),
			Reachable: reachable,
			Attempts:  client.Attempts(),
		},
		Stream: StatusStreamInfo{
			FlushIntervalMs:      cfg.Stream.FlushIntervalMs,
			PingIntervalSecs:     cfg.Stream.PingIntervalSecs,
			ConnectTimeoutSecs:   cfg.Stream.ConnectTimeoutSecs,
			MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
			TokenConfigured:      cfg.Server.AuthToken != "",
		},
	}
	if rtt > 0 {
		data.Connection.RTTMs = float64(rtt.Microseconds()) / 1000.0
	}
	if lastErr != nil {
		data.Connection.LastError = lastErr.Error()
	}

	if args.JSON {
		resp := NewJSONResponse("status", data)
		resp.Success = reachable
		return resp.Print()
	}

	printStatusHuman(data)

	if !reachable {
		if lastErr != nil {
			return fmt.Errorf("hub unreachable: %w", lastErr)
		}
		return fmt.Errorf("hub unreachable")
	}
	return nil
}

// printStatusHuman renders the status report for a terminal.
func printStatusHuman(data StatusData) {
	fmt.Println(TitleStyle.Render("graphwatch status"))
	fmt.Println(RenderSeparatorAdaptive())

	status := "fail"
	if data.Connection.Reachable {
		status = "ok"
	}
	fmt.Printf("%s %s\n", RenderLabel("Hub:"), ValueStyle.Render(data.Connection.ServerURL))
	fmt.Printf("%s %s %s\n", RenderLabel("Connection:"), RenderStatus(status),
		DimStyle.Render(data.Connection.State))
	if data.Connection.RTTMs > 0 {
		fmt.Printf("%s %s\n", RenderLabel("Ping RTT:"),
			ValueStyle.Render(fmt.Sprintf("%.1f ms", data.Connection.RTTMs)))
	}
	if data.Connection.LastError != "" {
		fmt.Printf("%s %s\n", RenderLabel("Last error:"), ErrorStyle.Render(data.Connection.LastError))
	}

	fmt.Println()
	fmt.Println(SectionStyle.Render("Stream settings"))
	fmt.Printf("%s %s\n", RenderLabel("Flush interval:"),
		ValueStyle.Render(fmt.Sprintf("%d ms", data.Stream.FlushIntervalMs)))
	fmt.Printf("%s %s\n", RenderLabel("Ping interval:"),
		ValueStyle.Render(fmt.Sprintf("%d s", data.Stream.PingIntervalSecs)))
	fmt.Printf("%s %s\n", RenderLabel("Connect timeout:"),
		ValueStyle.Render(fmt.Sprintf("%d s", data.Stream.ConnectTimeoutSecs)))
	fmt.Printf("%s %s\n", RenderLabel("Max reconnects:"),
		ValueStyle.Render(fmt.Sprintf("%d", data.Stream.MaxReconnectAttempts)))
	token := "not configured"
	if data.Stream.TokenConfigured {
		token = "configured"
	}
	fmt.Printf("%s %s\n", RenderLabel("Auth token:"), DimStyle.Render(token))
}
