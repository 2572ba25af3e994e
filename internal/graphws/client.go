// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graphws provides the streaming WebSocket client for the agent
// graph service.
package graphws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/jeranaias/graphwatch/internal/sched"
	"github.com/jeranaias/graphwatch/internal/telemetry"
)

// Configuration constants for the graph stream client.
const (
	// DefaultConnectTimeout bounds one transport dial attempt.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultPingInterval is the keep-alive cadence while connected.
	DefaultPingInterval = 30 * time.Second

	// DefaultMaxReconnectAttempts is the retry budget. Exceeding it is a
	// terminal failure surfaced through state, not an error return.
	DefaultMaxReconnectAttempts = 10

	// backoffCapSeconds caps the exponential reconnect delay.
	backoffCapSeconds = 30

	// wsEndpointPath is the graph stream endpoint on the hub.
	wsEndpointPath = "/api/v1/graph/ws"

	// userAgent identifies this client to the hub.
	userAgent = "graph-client"

	// Outbound command pacing. Keep-alive pings are exempt.
	defaultCommandRate  = rate.Limit(10)
	defaultCommandBurst = 20

	// stateEventBuffer bounds the state-event dispatch queue.
	stateEventBuffer = 64
)

// Client errors.
var (
	ErrNotConnected   = errors.New("not connected")
	errConnectTimeout = errors.New("connect timeout")
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Client. Zero values select defaults.
type Options struct {
	// BaseURL is the hub base URL (http(s):// or ws(s)://); the graph
	// stream path is appended.
	BaseURL string

	// AuthToken, when set, is sent as an Authorization bearer header.
	AuthToken string

	// ConnectTimeout bounds one dial attempt (default 10s).
	ConnectTimeout time.Duration

	// PingInterval is the keep-alive cadence (default 30s).
	PingInterval time.Duration

	// FlushInterval is the update batching cadence (default 100ms).
	FlushInterval time.Duration

	// MaxReconnectAttempts is the retry budget (default 10).
	MaxReconnectAttempts int

	// OnPingRTT, when set, receives each measured ping round-trip time.
	OnPingRTT func(time.Duration)
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	return opts
}

// =============================================================================
// SESSION
// =============================================================================

// session is one live transport connection. The closed flag is the read
// loop's cancellation token: checked at the top of every loop iteration,
// set exactly once on teardown.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

func (s *session) write(raw []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

func (s *session) close() {
	if s.closed.Swap(true) {
		return
	}
	s.conn.Close()
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the reconnecting WebSocket client for the graph stream.
//
// Construct with NewClient, wire subscribers, then Connect(). All failures
// are absorbed at this boundary: transport errors drive the reconnect state
// machine, protocol errors drop the offending message, and nothing here
// ever panics the process.
type Client struct {
	opts      Options
	scheduler *sched.Scheduler
	emitter   *emitter
	batcher   *Batcher
	limiter   *rate.Limiter
	dialer    *websocket.Dialer
	wsURL     string

	// mu guards the connection state machine below
	mu       sync.Mutex
	state    ConnectionState
	lastErr  error
	terminal bool
	attempts int

	// epoch invalidates stale dial results, timeouts, and read loops.
	// Incremented on every transition into connecting and on disconnect,
	// so no two connect attempts can ever interleave.
	epoch uint64

	sess          *session
	connectTask   *sched.Task
	reconnectTask *sched.Task
	pingTask      *sched.Task

	lastPingSent time.Time
	rtt          time.Duration

	// stateEvents feeds the dispatch goroutine so listeners never run
	// under mu
	stateEvents chan StateEvent
	dispatchWG  sync.WaitGroup
	closed      atomic.Bool

	// backoffUnit scales the reconnect delay; tests shrink it
	backoffUnit time.Duration
}

// NewClient creates a client bound to the given scheduler. The scheduler
// is injected (not owned): the caller decides shutdown ordering.
func NewClient(scheduler *sched.Scheduler, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	wsURL, err := endpointURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		opts:      opts,
		scheduler: scheduler,
		emitter:   newEmitter(),
		limiter:   rate.NewLimiter(defaultCommandRate, defaultCommandBurst),
		wsURL:     wsURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.ConnectTimeout,
		},
		stateEvents: make(chan StateEvent, stateEventBuffer),
		backoffUnit: time.Second,
	}
	c.batcher = NewBatcher(scheduler, opts.FlushInterval, c.emitter.emitBatch)
	c.batcher.Start()

	c.dispatchWG.Add(1)
	go c.dispatchStateEvents()

	telemetry.ConnectionState.Set(float64(StateDisconnected))
	return c, nil
}

// endpointURL derives the ws(s) stream URL from a base URL.
func endpointURL(base string) (string, error) {
	if base == "" {
		return "", errors.New("base URL is required")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid base URL scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + wsEndpointPath
	return u.String(), nil
}

// SetAuthToken replaces the bearer token used on subsequent dials. The
// active connection is unaffected; the new token takes effect on the
// next connect or reconnect. Wired to config hot reload so a rotated
// token does not require a restart.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.opts.AuthToken = token
	c.mu.Unlock()
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// SubscribeState registers a listener for connection state transitions.
func (c *Client) SubscribeState(fn func(StateEvent)) *Subscription {
	return c.emitter.subscribeState(fn)
}

// SubscribeUpdates registers a listener for flushed update batches.
// Within one batch, updates arrive in enqueue order.
func (c *Client) SubscribeUpdates(fn func(Batch)) *Subscription {
	return c.emitter.subscribeBatches(fn)
}

// =============================================================================
// STATE ACCESSORS
// =============================================================================

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent failure, if any.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Terminal reports whether the retry budget is exhausted. Only an explicit
// Connect() re-arms the client from this condition.
func (c *Client) Terminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminal
}

// Attempts returns the consecutive-failure counter.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// RTT returns the last measured keep-alive round-trip time.
func (c *Client) RTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtt
}

// Pending returns the number of accumulated updates awaiting the next
// batch flush.
func (c *Client) Pending() int {
	return c.batcher.Depth()
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Connect starts the connection state machine. It is idempotent: calling
// while already connecting or connected is a no-op, so the transport is
// opened at most once per attempt. An explicit Connect also clears a
// terminal error condition and resets the retry budget.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnecting || c.state == StateConnected {
		return
	}

	// Re-arm after terminal failure or plain disconnect
	c.terminal = false
	c.attempts = 0
	if c.reconnectTask != nil {
		c.reconnectTask.Cancel()
		c.reconnectTask = nil
	}

	c.beginConnectLocked()
}

// Disconnect tears down the transport, cancels every scheduled task, and
// resets the attempt counter. Valid from any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.epoch++

	c.cancelTimersLocked()

	sess := c.sess
	c.sess = nil
	c.attempts = 0
	c.terminal = false
	c.lastPingSent = time.Time{}
	c.setStateLocked(StateDisconnected, nil)
	c.mu.Unlock()

	if sess != nil {
		sess.close()
	}
}

// Close shuts the client down entirely: disconnects, stops the batcher,
// and releases the event dispatcher. The client is unusable afterwards.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.Disconnect()
	c.batcher.Stop()
	close(c.stateEvents)
	c.dispatchWG.Wait()
}

// cancelTimersLocked cancels connect-timeout, reconnect, and ping tasks.
func (c *Client) cancelTimersLocked() {
	if c.connectTask != nil {
		c.connectTask.Cancel()
		c.connectTask = nil
	}
	if c.reconnectTask != nil {
		c.reconnectTask.Cancel()
		c.reconnectTask = nil
	}
	if c.pingTask != nil {
		c.pingTask.Cancel()
		c.pingTask = nil
	}
}

// =============================================================================
// CONNECT / RECONNECT MACHINERY
// =============================================================================

// beginConnectLocked transitions to connecting and launches one dial
// attempt. Caller holds mu.
func (c *Client) beginConnectLocked() {
	c.epoch++
	epoch := c.epoch

	c.setStateLocked(StateConnecting, nil)

	c.connectTask = c.scheduler.After("connect-timeout", c.opts.ConnectTimeout, func() {
		c.onConnectTimeout(epoch)
	})

	go c.dial(epoch)
}

// dial performs one transport dial and hands the result to the state
// machine. A stale epoch means the attempt was superseded (disconnect or
// timeout won the race); its connection, if any, is discarded.
func (c *Client) dial(epoch uint64) {
	c.mu.Lock()
	token := c.opts.AuthToken
	c.mu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", userAgent)
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.Dial(c.wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	if c.epoch != epoch || c.state != StateConnecting {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		c.failLocked(fmt.Errorf("dial: %w", err))
		c.mu.Unlock()
		return
	}

	if c.connectTask != nil {
		c.connectTask.Cancel()
		c.connectTask = nil
	}

	sess := &session{conn: conn}
	c.sess = sess
	c.attempts = 0
	c.setStateLocked(StateConnected, nil)

	c.pingTask = c.scheduler.Every("keep-alive", c.opts.PingInterval, func() {
		c.sendPing(epoch)
	})
	c.mu.Unlock()

	go c.readLoop(sess, epoch)
}

// onConnectTimeout fires when a dial attempt outlives ConnectTimeout.
// A no-op if the state already left connecting.
func (c *Client) onConnectTimeout(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch || c.state != StateConnecting {
		return
	}
	c.failLocked(errConnectTimeout)
}

// failLocked records one connection failure and either schedules a
// backoff reconnect or, once the retry budget is exhausted, parks the
// client in a terminal error state. Caller holds mu.
func (c *Client) failLocked(err error) {
	c.attempts++

	if sess := c.sess; sess != nil {
		c.sess = nil
		go sess.close()
	}
	if c.pingTask != nil {
		c.pingTask.Cancel()
		c.pingTask = nil
	}
	if c.connectTask != nil {
		c.connectTask.Cancel()
		c.connectTask = nil
	}
	c.lastPingSent = time.Time{}

	if c.attempts > c.opts.MaxReconnectAttempts {
		c.terminal = true
		c.setStateLocked(StateError, err)
		log.Printf("WARNING: graph stream: retry budget exhausted after %d attempts: %v", c.attempts-1, err)
		return
	}

	c.setStateLocked(StateError, err)

	delay := backoffDelay(c.attempts, c.backoffUnit)
	c.setStateLocked(StateReconnecting, err)
	telemetry.ReconnectsTotal.Inc()
	log.Printf("graph stream: reconnect %d/%d in %v: %v", c.attempts, c.opts.MaxReconnectAttempts, delay, err)

	c.reconnectTask = c.scheduler.After("reconnect", delay, c.onReconnect)
}

// onReconnect fires after the backoff delay.
func (c *Client) onReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReconnecting {
		// Disconnect (or an explicit Connect) superseded this retry
		return
	}
	c.beginConnectLocked()
}

// backoffDelay is the exponential reconnect delay before attempt n:
// min(2^n, 30) seconds (unit-scaled for tests).
func backoffDelay(attempt int, unit time.Duration) time.Duration {
	if attempt > 5 {
		// 2^5 = 32 already exceeds the cap
		return backoffCapSeconds * unit
	}
	secs := 1 << uint(attempt)
	if secs > backoffCapSeconds {
		secs = backoffCapSeconds
	}
	return time.Duration(secs) * unit
}

// =============================================================================
// READ LOOP
// =============================================================================

// readLoop re-arms itself after every frame until the session's
// cancellation flag flips or the transport fails.
func (c *Client) readLoop(sess *session, epoch uint64) {
	for {
		if sess.closed.Load() {
			return
		}

		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			c.onTransportError(sess, epoch, err)
			return
		}

		c.handleFrame(raw)
	}
}

// onTransportError routes a read/write failure into the state machine,
// unless the session was already superseded.
func (c *Client) onTransportError(sess *session, epoch uint64, err error) {
	sess.close()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch || c.sess != sess {
		// Stale session: a disconnect or newer attempt already owns
		// the state machine
		return
	}
	c.failLocked(fmt.Errorf("transport: %w", err))
}

// handleFrame decodes and dispatches one inbound frame. Decode failures
// drop the message and touch nothing else.
func (c *Client) handleFrame(raw []byte) {
	frame, err := DecodeFrame(raw)
	if err != nil {
		telemetry.DecodeErrorsTotal.Inc()
		log.Printf("WARNING: graph stream: dropping message: %v", err)
		return
	}

	telemetry.MessagesTotal.WithLabelValues(frame.Type).Inc()
	if frame.Skipped > 0 {
		log.Printf("WARNING: graph stream: bulk_update skipped %d undecodable entries", frame.Skipped)
	}

	switch frame.Type {
	case msgConnectionEstablished:
		log.Printf("graph stream: connection established")

	case msgPong:
		c.recordPong()

	case msgError:
		log.Printf("WARNING: graph stream: server error: %s", frame.ErrorMessage)

	default:
		c.batcher.Enqueue(frame.Updates...)
	}
}

// recordPong measures RTT from the last ping send.
func (c *Client) recordPong() {
	c.mu.Lock()
	if c.lastPingSent.IsZero() {
		c.mu.Unlock()
		return
	}
	rtt := time.Since(c.lastPingSent)
	c.lastPingSent = time.Time{}
	c.rtt = rtt
	c.mu.Unlock()

	telemetry.PingRTT.Observe(rtt.Seconds())
	if c.opts.OnPingRTT != nil {
		c.opts.OnPingRTT(rtt)
	}
}

// sendPing emits one keep-alive ping. Exempt from command rate limiting.
func (c *Client) sendPing(epoch uint64) {
	c.mu.Lock()
	sess := c.sess
	if sess == nil || c.state != StateConnected || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.lastPingSent = time.Now()
	c.mu.Unlock()

	raw, err := EncodePing()
	if err != nil {
		log.Printf("WARNING: graph stream: encode ping: %v", err)
		return
	}
	if err := sess.write(raw); err != nil {
		c.onTransportError(sess, epoch, err)
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

// SendQuery submits a graph_query command.
func (c *Client) SendQuery(ctx context.Context, query string, parameters map[string]interface{}) error {
	raw, err := EncodeGraphQuery(query, parameters)
	if err != nil {
		return err
	}
	return c.sendCommand(ctx, raw)
}

// SubscribeNodes submits a subscribe_nodes command for targeted updates.
func (c *Client) SubscribeNodes(ctx context.Context, nodeIDs []string) error {
	raw, err := EncodeSubscribeNodes(nodeIDs)
	if err != nil {
		return err
	}
	return c.sendCommand(ctx, raw)
}

// RequestLayout submits a layout_request command.
func (c *Client) RequestLayout(ctx context.Context, algorithm string, parameters map[string]interface{}) error {
	raw, err := EncodeLayoutRequest(algorithm, parameters)
	if err != nil {
		return err
	}
	return c.sendCommand(ctx, raw)
}

// sendCommand paces and writes one outbound command frame.
func (c *Client) sendCommand(ctx context.Context, raw []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	sess := c.sess
	epoch := c.epoch
	if sess == nil || c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.mu.Unlock()

	if err := sess.write(raw); err != nil {
		c.onTransportError(sess, epoch, err)
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// =============================================================================
// STATE EVENTS
// =============================================================================

// setStateLocked applies one state transition and queues the event for
// dispatch. Caller holds mu; listeners run on the dispatch goroutine so
// they may freely call back into the client.
func (c *Client) setStateLocked(next ConnectionState, err error) {
	prev := c.state
	c.state = next
	if err != nil {
		c.lastErr = err
	}

	telemetry.ConnectionState.Set(float64(next))

	event := StateEvent{
		Previous: prev,
		Current:  next,
		Err:      err,
		Attempt:  c.attempts,
		Terminal: c.terminal,
	}

	select {
	case c.stateEvents <- event:
	default:
		// Queue full; drop rather than stall the state machine
		log.Printf("WARNING: graph stream: state event queue full, dropped %s -> %s", prev, next)
	}
}

// dispatchStateEvents delivers state events to listeners in order.
func (c *Client) dispatchStateEvents() {
	defer c.dispatchWG.Done()
	for event := range c.stateEvents {
		c.emitter.emitState(event)
	}
}
