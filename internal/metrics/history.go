// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics maintains bounded rolling histories of scalar samples
// and derives trend labels from windowed averages.
package metrics

import (
	"sync"
	"time"
)

// DefaultHistoryCap is the bound on each rolling history buffer. When the
// cap is exceeded the oldest sample is evicted (FIFO). Nothing here is
// persisted.
const DefaultHistoryCap = 100

// Sample is one timestamped scalar observation.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// History is a bounded, ordered sequence of samples. Safe for concurrent
// use.
type History struct {
	mu      sync.Mutex
	cap     int
	samples []Sample
}

// NewHistory creates a history bounded at cap samples. cap <= 0 selects
// DefaultHistoryCap.
func NewHistory(cap int) *History {
	if cap <= 0 {
		cap = DefaultHistoryCap
	}
	return &History{cap: cap}
}

// Append records a sample, evicting the oldest entry when full.
func (h *History) Append(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, s)
	if len(h.samples) > h.cap {
		// Shift rather than re-slice so the backing array never grows
		// past cap+1
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:h.cap]
	}
}

// Record appends a value stamped with the current time.
func (h *History) Record(value float64) {
	h.Append(Sample{Timestamp: time.Now(), Value: value})
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}

// Cap returns the buffer bound.
func (h *History) Cap() int {
	return h.cap
}

// Latest returns the most recent sample, or false when empty.
func (h *History) Latest() (Sample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// Samples returns a copy of the retained samples, oldest first.
func (h *History) Samples() []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

// Values returns a copy of the retained values, oldest first.
func (h *History) Values() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]float64, len(h.samples))
	for i, s := range h.samples {
		out[i] = s.Value
	}
	return out
}
