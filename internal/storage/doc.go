// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides session recording persistence for graphwatch.
//
// This package handles saving and loading recorded observation sessions
// (stream events plus metric snapshots), with listing, pruning, and
// export.
//
// # Key Types
//
//   - SessionStore: One-JSON-file-per-session store with retention
//   - Session: Serializable session timeline
//   - Recorder: In-memory accumulator wired to live subscriptions
//
// # Usage
//
// Record a live session:
//
//	store, err := storage.NewSessionStore("", 20)
//	rec := storage.NewRecorder(store, cfg.Server.BaseURL)
//	client.SubscribeUpdates(rec.RecordBatch)
//	client.SubscribeState(rec.RecordState)
//	...
//	id, err := rec.Stop()
//
// List and load sessions:
//
//	metas, err := store.List()
//	sess, err := store.Load(metas[0].ID)
//
// # Storage Location
//
// Sessions are stored in ~/.graphwatch/sessions/ as JSON files.
package storage
