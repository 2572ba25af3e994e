// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graphws provides the streaming WebSocket client for the agent
// graph service.
package graphws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/graphwatch/internal/sched"
	"github.com/jeranaias/graphwatch/internal/telemetry"
)

// =============================================================================
// UPDATE BATCHER
// =============================================================================

// DefaultFlushInterval is the batching cadence. High-volume streams (e.g.
// per-token layout updates) are coalesced to this fixed cadence regardless
// of input burstiness, so downstream consumers see a bounded event rate.
const DefaultFlushInterval = 100 * time.Millisecond

// Batcher accumulates decoded updates and flushes them on a fixed interval.
//
// Single-writer discipline: the pending slice is owned exclusively by the
// run goroutine. Producers hand updates over a channel; the flush tick is
// likewise posted as a message into the same goroutine, so the
// copy-and-clear on flush can never overlap an append.
type Batcher struct {
	interval  time.Duration
	scheduler *sched.Scheduler
	deliver   func(Batch)

	in       chan []Update
	flushSig chan struct{}
	stop     chan struct{}

	stopped atomic.Bool
	depth   atomic.Int64
	tick    *sched.Task
	wg      sync.WaitGroup
}

// NewBatcher creates a batcher that delivers flushed batches via deliver.
// interval <= 0 selects DefaultFlushInterval.
func NewBatcher(scheduler *sched.Scheduler, interval time.Duration, deliver func(Batch)) *Batcher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Batcher{
		interval:  interval,
		scheduler: scheduler,
		deliver:   deliver,
		in:        make(chan []Update, 256),
		flushSig:  make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
}

// Start launches the accumulation goroutine and the flush tick.
func (b *Batcher) Start() {
	b.wg.Add(1)
	go b.run()

	b.tick = b.scheduler.Every("batch-flush", b.interval, b.requestFlush)
}

// Stop cancels the flush tick and drains the accumulator. Pending updates
// are flushed once on the way out so nothing decoded is silently lost.
func (b *Batcher) Stop() {
	if b.stopped.Swap(true) {
		return
	}
	if b.tick != nil {
		b.tick.Cancel()
	}
	close(b.stop)
	b.wg.Wait()
}

// Enqueue appends updates to the pending sequence. Updates handed to a
// single Enqueue call stay contiguous and ordered within the next batch.
// Blocks only when the accumulator is saturated (backpressure on the
// network reader, by far the lesser evil versus unbounded growth).
func (b *Batcher) Enqueue(updates ...Update) {
	if len(updates) == 0 || b.stopped.Load() {
		return
	}
	select {
	case b.in <- updates:
	case <-b.stop:
	}
}

// Depth returns the number of accumulated, not-yet-flushed updates.
func (b *Batcher) Depth() int {
	return int(b.depth.Load())
}

// requestFlush posts a flush request into the run goroutine. Coalesces:
// if a request is already pending, the tick is a no-op.
func (b *Batcher) requestFlush() {
	select {
	case b.flushSig <- struct{}{}:
	default:
	}
}

// run is the single goroutine that owns the pending slice.
func (b *Batcher) run() {
	defer b.wg.Done()

	var pending []Update

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := Batch(pending)
		pending = nil
		b.depth.Store(0)
		telemetry.PendingUpdates.Set(0)

		telemetry.BatchesTotal.Inc()
		telemetry.BatchSize.Observe(float64(len(batch)))
		b.deliver(batch)
	}

	for {
		select {
		case updates := <-b.in:
			pending = append(pending, updates...)
			b.depth.Store(int64(len(pending)))
			telemetry.PendingUpdates.Set(float64(len(pending)))

		case <-b.flushSig:
			flush()

		case <-b.stop:
			// Drain whatever producers managed to hand over, then
			// deliver the final batch.
			for {
				select {
				case updates := <-b.in:
					pending = append(pending, updates...)
					continue
				default:
				}
				break
			}
			flush()
			return
		}
	}
}
