// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// defaultDebounce coalesces the editor write/rename/chmod burst into one
// reload.
const defaultDebounce = 250 * time.Millisecond

// Watcher reloads a config file on change and hands the validated result
// to a callback. Invalid intermediate states (half-written files, bad
// values) are logged and skipped; the previous config stays in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload func(*Config)

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending time.Time
}

// NewWatcher creates a watcher for the given config file path. onReload is
// invoked with each successfully reloaded config.
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:     path,
		debounce: defaultDebounce,
		onReload: onReload,
		watcher:  fsw,
		ctx:      ctx,
		cancel:   cancel,
	}
	return w, nil
}

// Watch starts watching for config changes.
func (w *Watcher) Watch() error {
	// Watch the directory, not the file: editors replace files by rename,
	// which drops a file-level watch.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.processEvents()
	go w.processPending()

	return nil
}

// processEvents marks the config as dirty on relevant events.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("WARNING: config watcher: %v", err)
		}
	}
}

// processPending reloads once the change burst settles.
func (w *Watcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			dirty := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if dirty {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if dirty {
				w.reload()
			}
		}
	}
}

// reload re-reads and validates the config file.
func (w *Watcher) reload() {
	cfg, err := LoadFromPath(w.path)
	if err != nil {
		log.Printf("WARNING: config reload skipped: %v", err)
		return
	}
	log.Printf("config reloaded from %s", w.path)
	w.onReload(cfg)
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}
