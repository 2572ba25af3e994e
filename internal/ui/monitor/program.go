// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// program.go - Dashboard program lifecycle and stream wiring.
package monitor

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/graphwatch/internal/config"
	"github.com/jeranaias/graphwatch/internal/graphws"
	"github.com/jeranaias/graphwatch/internal/metrics"
	"github.com/jeranaias/graphwatch/internal/storage"
)

// Run starts the dashboard and blocks until the user quits. The caller
// owns the client's lifecycle; Run connects and disconnects but does
// not Close it. store may be nil to disable recording.
func Run(cfg *config.Config, client *graphws.Client, svc *metrics.Service, store *storage.SessionStore) error {
	var recorder *storage.Recorder
	if cfg.Recording.Enabled && store != nil {
		recorder = storage.NewRecorder(store, cfg.Server.BaseURL)
	}

	m := New(cfg, client, svc, recorder)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Stream subscriptions feed the program from the client's dispatch
	// goroutine; p.Send is safe for concurrent use.
	stateSub := client.SubscribeState(func(e graphws.StateEvent) {
		if recorder != nil {
			recorder.RecordState(e)
		}
		p.Send(StateMsg(e))
	})
	defer stateSub.Cancel()

	updateSub := client.SubscribeUpdates(func(b graphws.Batch) {
		if recorder != nil {
			recorder.RecordBatch(b)
		}
		p.Send(BatchMsg(b))
	})
	defer updateSub.Cancel()

	client.Connect()
	defer client.Disconnect()

	_, err := p.Run()

	if recorder != nil {
		if svc != nil {
			recorder.RecordSnapshot(svc.Snapshot(false))
		}
		if _, saveErr := recorder.Stop(); saveErr != nil && err == nil {
			err = saveErr
		}
	}
	return err
}
