// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Tests for the event emitter:
// - Fan-out to multiple listeners
// - Cancellation (including double-cancel)
// - Concurrent subscribe/emit safety
package graphws

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmitter_FanOut(t *testing.T) {
	e := newEmitter()

	var a, b int
	e.subscribeState(func(StateEvent) { a++ })
	e.subscribeState(func(StateEvent) { b++ })

	e.emitState(StateEvent{Previous: StateDisconnected, Current: StateConnecting})
	e.emitState(StateEvent{Previous: StateConnecting, Current: StateConnected})

	require.Equal(t, 2, a)
	require.Equal(t, 2, b)
}

func TestEmitter_CancelRemovesListener(t *testing.T) {
	e := newEmitter()

	var calls int
	sub := e.subscribeBatches(func(Batch) { calls++ })

	e.emitBatch(Batch{{Kind: UpdateNodeAdded}})
	sub.Cancel()
	e.emitBatch(Batch{{Kind: UpdateNodeAdded}})

	require.Equal(t, 1, calls)
}

func TestEmitter_DoubleCancelIsSafe(t *testing.T) {
	e := newEmitter()

	sub := e.subscribeState(func(StateEvent) {})
	sub.Cancel()
	require.NotPanics(t, sub.Cancel)

	// Cancelling a nil subscription is a no-op too
	var nilSub *Subscription
	require.NotPanics(t, nilSub.Cancel)
}

func TestEmitter_IndependentChannels(t *testing.T) {
	e := newEmitter()

	var states, batches int
	e.subscribeState(func(StateEvent) { states++ })
	e.subscribeBatches(func(Batch) { batches++ })

	e.emitState(StateEvent{Current: StateConnected})
	require.Equal(t, 1, states)
	require.Equal(t, 0, batches)

	e.emitBatch(Batch{{Kind: UpdateEdgeAdded}})
	require.Equal(t, 1, states)
	require.Equal(t, 1, batches)
}

// TestEmitter_ConcurrentSubscribeEmit exercises subscribe, cancel, and
// emit racing from many goroutines.
func TestEmitter_ConcurrentSubscribeEmit(t *testing.T) {
	e := newEmitter()

	var delivered atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := e.subscribeState(func(StateEvent) { delivered.Add(1) })
			time.Sleep(time.Millisecond)
			sub.Cancel()
		}()
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.emitState(StateEvent{Current: StateConnected})
		}()
	}
	wg.Wait()

	// No assertion on the exact count; the test is for the race detector
	// and for not panicking.
	require.GreaterOrEqual(t, delivered.Load(), int64(0))
}
