// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package graphws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/graphwatch/internal/sched"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// startHub runs a WebSocket hub that upgrades connections on the graph
// stream path and hands each connection to handler.
func startHub(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wsEndpointPath {
			http.NotFound(w, r)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestClient builds a client with fast timers against the given base URL.
func newTestClient(t *testing.T, s *sched.Scheduler, baseURL string, opts Options) *Client {
	t.Helper()
	opts.BaseURL = baseURL
	if opts.FlushInterval == 0 {
		opts.FlushInterval = 5 * time.Millisecond
	}
	client, err := NewClient(s, opts)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	client.backoffUnit = time.Millisecond
	t.Cleanup(client.Close)
	return client
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// stateRecorder accumulates state events for assertions.
type stateRecorder struct {
	mu     sync.Mutex
	events []StateEvent
}

func (r *stateRecorder) record(e StateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *stateRecorder) count(state ConnectionState) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Current == state {
			n++
		}
	}
	return n
}

func TestConnectDeliversUpdates(t *testing.T) {
	var gotAuth, gotAgent atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		gotAgent.Store(r.Header.Get("User-Agent"))
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"connection_established","data":{},"timestamp":1}`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"node_added","data":{"id":"n1","name":"planner","type":"agent"},"timestamp":2}`))
		// Hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	s := sched.NewScheduler()
	defer s.Stop()

	client := newTestClient(t, s, srv.URL, Options{AuthToken: "sekrit"})

	col := &collector{}
	client.SubscribeUpdates(col.deliver)
	client.Connect()

	waitFor(t, 2*time.Second, "connected state", func() bool {
		return client.State() == StateConnected
	})
	waitFor(t, 2*time.Second, "node update delivery", func() bool {
		return len(col.all()) == 1
	})

	got := col.all()[0]
	if got.Kind != UpdateNodeAdded || got.Node == nil || got.Node.ID != "n1" {
		t.Fatalf("unexpected update: %+v", got)
	}

	if auth, _ := gotAuth.Load().(string); auth != "Bearer sekrit" {
		t.Errorf("expected bearer header, got %q", auth)
	}
	if agent, _ := gotAgent.Load().(string); agent != "graph-client" {
		t.Errorf("expected User-Agent graph-client, got %q", agent)
	}
}

func TestConnectIdempotent(t *testing.T) {
	var upgrades atomic.Int32

	srv := startHub(t, func(conn *websocket.Conn) {
		upgrades.Add(1)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := sched.NewScheduler()
	defer s.Stop()

	client := newTestClient(t, s, srv.URL, Options{})
	client.Connect()
	client.Connect()
	client.Connect()

	waitFor(t, 2*time.Second, "connected state", func() bool {
		return client.State() == StateConnected
	})
	client.Connect() // connected: still a no-op

	time.Sleep(50 * time.Millisecond)
	if n := upgrades.Load(); n != 1 {
		t.Errorf("transport opened %d times, want 1", n)
	}
}

func TestPingPongMeasuresRTT(t *testing.T) {
	srv := startHub(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame, err := DecodeFrame(raw)
			if err == nil && frame.Type == "ping" {
				conn.WriteMessage(websocket.TextMessage,
					[]byte(`{"type":"pong","data":{},"timestamp":1}`))
			}
		}
	})

	s := sched.NewScheduler()
	defer s.Stop()

	var sampled atomic.Int64
	client := newTestClient(t, s, srv.URL, Options{
		PingInterval: 20 * time.Millisecond,
		OnPingRTT:    func(d time.Duration) { sampled.Store(int64(d)) },
	})
	client.Connect()

	waitFor(t, 3*time.Second, "rtt measurement", func() bool {
		return client.RTT() > 0
	})
	if sampled.Load() <= 0 {
		t.Error("OnPingRTT hook should have observed a sample")
	}
}

func TestBulkDeliveredAsOneBatch(t *testing.T) {
	bulk := `{"type":"bulk_update","data":{"updates":[
		{"type":"node_added","data":{"id":"n1","name":"a","type":"agent"}},
		{"type":"mystery","data":{}},
		{"type":"node_added","data":{"id":"n2","name":"b","type":"agent"}},
		{"type":"node_added","data":{"id":"n3","name":"c","type":"agent"}}
	]},"timestamp":3}`

	srv := startHub(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(bulk))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := sched.NewScheduler()
	defer s.Stop()

	client := newTestClient(t, s, srv.URL, Options{})
	col := &collector{}
	client.SubscribeUpdates(col.deliver)
	client.Connect()

	waitFor(t, 2*time.Second, "bulk delivery", func() bool {
		return col.batchCount() > 0
	})

	col.mu.Lock()
	first := col.batches[0]
	col.mu.Unlock()

	if len(first) != 3 {
		t.Fatalf("expected one batch of 3 decoded updates, got %d", len(first))
	}
	for i, want := range []string{"n1", "n2", "n3"} {
		if first[i].Node == nil || first[i].Node.ID != want {
			t.Errorf("batch[%d]: want node %s, got %+v", i, want, first[i].Node)
		}
	}
}

func TestMalformedFrameDoesNotDropConnection(t *testing.T) {
	srv := startHub(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{broken`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"node_added","data":{"id":"after","name":"x","type":"agent"},"timestamp":1}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := sched.NewScheduler()
	defer s.Stop()

	client := newTestClient(t, s, srv.URL, Options{})
	col := &collector{}
	client.SubscribeUpdates(col.deliver)
	client.Connect()

	waitFor(t, 2*time.Second, "update after bad frame", func() bool {
		return len(col.all()) == 1
	})
	if client.State() != StateConnected {
		t.Errorf("decode error must not affect connection state, got %s", client.State())
	}
}

func TestReconnectExhaustionIsTerminal(t *testing.T) {
	// Grab a port that refuses connections.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	deadAddr := ln.Addr().String()
	ln.Close()

	s := sched.NewScheduler()
	defer s.Stop()

	client := newTestClient(t, s, "http://"+deadAddr, Options{})
	rec := &stateRecorder{}
	client.SubscribeState(rec.record)
	client.Connect()

	// 11 consecutive failures: 10 scheduled reconnects, then terminal.
	waitFor(t, 10*time.Second, "terminal error state", func() bool {
		return client.Terminal()
	})

	if client.State() != StateError {
		t.Errorf("expected error state, got %s", client.State())
	}
	if got := client.Attempts(); got != DefaultMaxReconnectAttempts+1 {
		t.Errorf("expected %d recorded failures, got %d", DefaultMaxReconnectAttempts+1, got)
	}

	// Settle, then confirm no 11th reconnect was scheduled.
	time.Sleep(100 * time.Millisecond)
	if n := rec.count(StateReconnecting); n != DefaultMaxReconnectAttempts {
		t.Errorf("expected %d reconnecting transitions, got %d", DefaultMaxReconnectAttempts, n)
	}
	if client.LastError() == nil {
		t.Error("terminal state should expose the last failure")
	}
}

func TestDisconnectResetsStateMachine(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	deadAddr := ln.Addr().String()
	ln.Close()

	s := sched.NewScheduler()
	defer s.Stop()

	client := newTestClient(t, s, "http://"+deadAddr, Options{})
	client.Connect()

	// Let at least one failure land
	waitFor(t, 5*time.Second, "first failure", func() bool {
		return client.Attempts() > 0
	})

	client.Disconnect()

	if client.State() != StateDisconnected {
		t.Errorf("expected disconnected, got %s", client.State())
	}
	if client.Attempts() != 0 {
		t.Errorf("disconnect must reset the attempt counter, got %d", client.Attempts())
	}

	// No background retry may revive the connection attempt
	time.Sleep(100 * time.Millisecond)
	if client.State() != StateDisconnected {
		t.Errorf("state drifted after disconnect: %s", client.State())
	}
}

func TestSetAuthTokenAppliesOnNextDial(t *testing.T) {
	var mu sync.Mutex
	var auths []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	s := sched.NewScheduler()
	defer s.Stop()

	client := newTestClient(t, s, srv.URL, Options{AuthToken: "alpha"})
	client.Connect()
	waitFor(t, 2*time.Second, "first connection", func() bool {
		return client.State() == StateConnected
	})

	client.Disconnect()
	client.SetAuthToken("beta")
	client.Connect()
	waitFor(t, 2*time.Second, "second connection", func() bool {
		return client.State() == StateConnected
	})

	mu.Lock()
	defer mu.Unlock()
	if len(auths) != 2 {
		t.Fatalf("expected 2 dials, got %d", len(auths))
	}
	if auths[0] != "Bearer alpha" || auths[1] != "Bearer beta" {
		t.Errorf("rotated token not applied: %v", auths)
	}
}

func TestSendRequiresConnection(t *testing.T) {
	s := sched.NewScheduler()
	defer s.Stop()

	client := newTestClient(t, s, "http://127.0.0.1:1", Options{})

	err := client.SendQuery(context.Background(), "MATCH (n) RETURN n", nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestBackoffDelaySchedule(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{6, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := backoffDelay(tc.attempt, time.Second); got != tc.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"http://hub.local:8080", "ws://hub.local:8080/api/v1/graph/ws", false},
		{"https://hub.local", "wss://hub.local/api/v1/graph/ws", false},
		{"ws://hub.local/", "ws://hub.local/api/v1/graph/ws", false},
		{"wss://hub.local/base/", "wss://hub.local/base/api/v1/graph/ws", false},
		{"ftp://hub.local", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := endpointURL(tc.base)
		if tc.wantErr {
			if err == nil {
				t.Errorf("endpointURL(%q): expected error", tc.base)
			}
			continue
		}
		if err != nil {
			t.Errorf("endpointURL(%q): %v", tc.base, err)
			continue
		}
		if got != tc.want {
			t.Errorf("endpointURL(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}
