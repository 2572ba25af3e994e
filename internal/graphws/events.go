// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graphws provides the streaming WebSocket client for the agent
// graph service.
package graphws

import "sync"

// =============================================================================
// EVENT EMITTER
// =============================================================================

// Subscription is a handle to a registered listener.
type Subscription struct {
	cancel func()
	once   sync.Once
}

// Cancel removes the listener. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// emitter fans typed events out to registered listeners.
//
// Consumers own their own scheduling: listeners are invoked synchronously
// on the emitting goroutine (the batching goroutine for update batches,
// the state-machine goroutine for state events) and must hand off to their
// own context if they need one.
type emitter struct {
	mu        sync.RWMutex
	nextID    int64
	stateSubs map[int64]func(StateEvent)
	batchSubs map[int64]func(Batch)
}

func newEmitter() *emitter {
	return &emitter{
		stateSubs: make(map[int64]func(StateEvent)),
		batchSubs: make(map[int64]func(Batch)),
	}
}

// subscribeState registers a connection state listener.
func (e *emitter) subscribeState(fn func(StateEvent)) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.stateSubs[id] = fn

	return &Subscription{cancel: func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.stateSubs, id)
	}}
}

// subscribeBatches registers an update batch listener.
func (e *emitter) subscribeBatches(fn func(Batch)) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.batchSubs[id] = fn

	return &Subscription{cancel: func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.batchSubs, id)
	}}
}

// emitState delivers a state transition to all state listeners.
func (e *emitter) emitState(event StateEvent) {
	e.mu.RLock()
	listeners := make([]func(StateEvent), 0, len(e.stateSubs))
	for _, fn := range e.stateSubs {
		listeners = append(listeners, fn)
	}
	e.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// emitBatch delivers a flushed batch to all batch listeners.
func (e *emitter) emitBatch(batch Batch) {
	e.mu.RLock()
	listeners := make([]func(Batch), 0, len(e.batchSubs))
	for _, fn := range e.batchSubs {
		listeners = append(listeners, fn)
	}
	e.mu.RUnlock()

	for _, fn := range listeners {
		fn(batch)
	}
}
