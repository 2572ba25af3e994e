// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// console.go - Interactive console (REPL) for a live graph stream.
package console

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/graphwatch/internal/cli"
	"github.com/jeranaias/graphwatch/internal/config"
	"github.com/jeranaias/graphwatch/internal/graphws"
	"github.com/jeranaias/graphwatch/internal/metrics"
	"github.com/jeranaias/graphwatch/internal/storage"
)

// commandTimeout bounds outbound commands (query, subscribe, layout).
const commandTimeout = 5 * time.Second

// =============================================================================
// INPUT HISTORY
// =============================================================================

// inputLine provides input history and line editing for the console.
// Supports arrow keys for history navigation.
type inputLine struct {
	line        *liner.State
	historyFile string
}

// newInputLine creates a liner with persistent history in the config dir.
func newInputLine() *inputLine {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		// Fallback to temp directory if config dir unavailable
		configDir = os.TempDir()
	}
	historyFile := filepath.Join(configDir, "console_history")

	in := &inputLine{
		line:        line,
		historyFile: historyFile,
	}
	in.loadHistory()
	return in
}

func (in *inputLine) loadHistory() {
	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
}

// readInput reads a line of input with the given prompt.
func (in *inputLine) readInput(prompt string) (string, error) {
	input, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		in.line.AppendHistory(input)
	}
	return input, nil
}

// saveHistory persists command history with secure permissions.
func (in *inputLine) saveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	in.line.WriteHistory(f)
}

func (in *inputLine) close() {
	in.saveHistory()
	in.line.Close()
}

// =============================================================================
// CONSOLE
// =============================================================================

// Console is the interactive REPL over a live stream client. It prints
// connection transitions as they happen, optionally echoes update
// batches, and exposes the outbound commands (query, subscribe,
// layout) plus recording control.
type Console struct {
	cfg     *config.Config
	client  *graphws.Client
	metrics *metrics.Service
	store   *storage.SessionStore

	input *inputLine
	quiet bool

	// echo controls whether incoming batches are printed
	echo atomic.Bool

	// Stream counters since console start
	batches int64
	updates int64

	mu       sync.Mutex
	recorder *storage.Recorder
}

// New creates a console over an already-constructed client and metrics
// service. The caller owns the client's lifecycle; Run connects and
// disconnects but does not Close it.
func New(cfg *config.Config, client *graphws.Client, svc *metrics.Service, store *storage.SessionStore) *Console {
	c := &Console{
		cfg:     cfg,
		client:  client,
		metrics: svc,
		store:   store,
	}
	c.echo.Store(true)
	return c
}

// Run starts the REPL and blocks until the user exits.
func (c *Console) Run(quiet bool) error {
	if err := cli.RequiresTTY("run the console"); err != nil {
		return err
	}
	c.quiet = quiet
	c.input = newInputLine()
	defer c.input.close()

	stateSub := c.client.SubscribeState(c.onState)
	defer stateSub.Cancel()
	updateSub := c.client.SubscribeUpdates(c.onBatch)
	defer updateSub.Cancel()

	if c.cfg.Recording.Enabled {
		c.startRecording()
	}

	c.client.Connect()
	defer func() {
		c.stopRecording()
		c.client.Disconnect()
	}()

	if !quiet {
		c.printWelcome()
	}

	// First Ctrl+C at the prompt aborts the line; liner reports it as
	// ErrPromptAborted. SIGTERM exits the loop via the prompt error.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		input, err := c.input.readInput(promptStyle.Render("graphwatch> "))
		if err != nil {
			// Ctrl+C (ErrPromptAborted) or Ctrl+D (EOF): exit gracefully
			fmt.Println()
			c.printExitSummary()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		keep, err := c.dispatch(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
		if !keep {
			c.printExitSummary()
			return nil
		}
	}
}

// dispatch runs one console command. Returns false when the console
// should exit.
func (c *Console) dispatch(input string) (bool, error) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	rest := fields[1:]

	switch cmd {
	case "exit", "quit", "q":
		return false, nil

	case "help", "?":
		c.printHelp()
		return true, nil

	case "status":
		c.printStatus()
		return true, nil

	case "query":
		if len(rest) == 0 {
			return true, fmt.Errorf("usage: query <cypher>")
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		query := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))
		if err := c.client.SendQuery(ctx, query, nil); err != nil {
			return true, err
		}
		fmt.Println(dimStyle.Render("query sent; results arrive on the stream"))
		return true, nil

	case "subscribe", "sub":
		if len(rest) == 0 {
			return true, fmt.Errorf("usage: subscribe <node-id> [node-id...]")
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := c.client.SubscribeNodes(ctx, rest); err != nil {
			return true, err
		}
		fmt.Printf("%s subscribed to %d node(s)\n", okStyle.Render("[OK]"), len(rest))
		return true, nil

	case "layout":
		if len(rest) == 0 {
			return true, fmt.Errorf("usage: layout <algorithm>")
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := c.client.RequestLayout(ctx, rest[0], nil); err != nil {
			return true, err
		}
		fmt.Printf("%s layout %q requested\n", okStyle.Render("[OK]"), rest[0])
		return true, nil

	case "watch":
		return true, c.handleWatch(rest)

	case "trends", "metrics":
		c.printTrends()
		return true, nil

	case "record":
		return true, c.handleRecord(rest)

	case "sessions":
		return true, c.printSessions()

	default:
		return true, fmt.Errorf("unknown command %q (try: help)", cmd)
	}
}

// handleWatch toggles batch echo.
func (c *Console) handleWatch(args []string) error {
	if len(args) == 0 {
		state := "off"
		if c.echo.Load() {
			state = "on"
		}
		fmt.Printf("watch is %s\n", state)
		return nil
	}
	switch strings.ToLower(args[0]) {
	case "on":
		c.echo.Store(true)
	case "off":
		c.echo.Store(false)
	default:
		return fmt.Errorf("usage: watch [on|off]")
	}
	return nil
}

// handleRecord starts or stops session recording.
func (c *Console) handleRecord(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: record [start|stop]")
	}
	switch strings.ToLower(args[0]) {
	case "start":
		c.mu.Lock()
		active := c.recorder != nil
		c.mu.Unlock()
		if active {
			return fmt.Errorf("already recording")
		}
		if err := c.ensureStore(); err != nil {
			return fmt.Errorf("session store unavailable: %w", err)
		}
		c.startRecording()
		c.mu.Lock()
		id := ""
		if c.recorder != nil {
			id = c.recorder.ID()
		}
		c.mu.Unlock()
		fmt.Printf("%s recording %s\n", okStyle.Render("[OK]"), id)
		return nil

	case "stop":
		id, err := c.stopRecording()
		if err != nil {
			return err
		}
		if id == "" {
			return fmt.Errorf("not recording")
		}
		fmt.Printf("%s saved %s\n", okStyle.Render("[OK]"), id)
		return nil

	default:
		return fmt.Errorf("usage: record [start|stop]")
	}
}

// ensureStore lazily opens the session store so "record start" works
// even when recording was not enabled at startup. Commands run on the
// REPL goroutine only, so the store field needs no lock.
func (c *Console) ensureStore() error {
	if c.store != nil {
		return nil
	}
	store, err := storage.NewSessionStore(c.cfg.Recording.Dir, c.cfg.Recording.MaxSessions)
	if err != nil {
		return err
	}
	c.store = store
	return nil
}

// startRecording begins a new recorder if the store is available.
func (c *Console) startRecording() {
	if c.store == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recorder != nil {
		return
	}
	c.recorder = storage.NewRecorder(c.store, c.cfg.Server.BaseURL)
}

// stopRecording persists and clears the active recorder. Returns the
// saved session ID, or empty when nothing was recording.
func (c *Console) stopRecording() (string, error) {
	c.mu.Lock()
	rec := c.recorder
	c.recorder = nil
	c.mu.Unlock()
	if rec == nil {
		return "", nil
	}
	if c.metrics != nil {
		rec.RecordSnapshot(c.metrics.Snapshot(false))
	}
	return rec.Stop()
}

// printSessions lists stored sessions.
func (c *Console) printSessions() error {
	if c.store == nil {
		return fmt.Errorf("session store unavailable")
	}
	metas, err := c.store.List()
	if err != nil {
		return err
	}
	fmt.Print(storage.FormatSessionList(metas))
	return nil
}

// =============================================================================
// STREAM CALLBACKS
// =============================================================================

// onState prints connection transitions and feeds the recorder.
func (c *Console) onState(e graphws.StateEvent) {
	c.mu.Lock()
	rec := c.recorder
	c.mu.Unlock()
	if rec != nil {
		rec.RecordState(e)
	}

	line := fmt.Sprintf("%s -> %s", e.Previous, e.Current)
	if e.Attempt > 0 {
		line += fmt.Sprintf(" (attempt %d)", e.Attempt)
	}
	if e.Err != nil {
		line += ": " + e.Err.Error()
	}
	if e.Terminal {
		line += " [giving up]"
	}

	switch e.Current {
	case graphws.StateConnected:
		fmt.Fprintf(os.Stderr, "\r%s %s\n", okStyle.Render("[state]"), line)
	case graphws.StateError:
		fmt.Fprintf(os.Stderr, "\r%s %s\n", errorStyle.Render("[state]"), line)
	default:
		fmt.Fprintf(os.Stderr, "\r%s %s\n", dimStyle.Render("[state]"), line)
	}
}

// onBatch counts and optionally echoes a delivered batch.
func (c *Console) onBatch(batch graphws.Batch) {
	atomic.AddInt64(&c.batches, 1)
	atomic.AddInt64(&c.updates, int64(len(batch)))

	c.mu.Lock()
	rec := c.recorder
	c.mu.Unlock()
	if rec != nil {
		rec.RecordBatch(batch)
	}

	if !c.echo.Load() {
		return
	}
	for _, line := range formatBatch(batch, 8) {
		fmt.Fprintf(os.Stderr, "\r%s\n", line)
	}
}
