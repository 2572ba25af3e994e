// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/graphwatch/internal/sched"
	"github.com/jeranaias/graphwatch/internal/telemetry"
)

// DefaultSampleInterval is the aggregation cadence.
const DefaultSampleInterval = 2 * time.Second

// Series names tracked by the aggregator.
const (
	SeriesAttention = "attention_efficiency"
	SeriesMemory    = "memory_mb"
	SeriesRTT       = "ping_rtt_ms"
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	// SampleInterval is the aggregation cadence (default 2s).
	SampleInterval time.Duration

	// HistorySize bounds each series buffer (default 100).
	HistorySize int

	// TrendWindow is the samples-per-window for trend derivation
	// (default 10).
	TrendWindow int

	// AttentionSource, when set, supplies attention-efficiency samples.
	// When nil the service synthesizes a bounded random walk, matching
	// the behavior when no agent runtime is attached.
	AttentionSource func() float64
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistoryCap
	}
	if opts.TrendWindow <= 0 {
		opts.TrendWindow = DefaultTrendWindow
	}
	return opts
}

// SeriesSnapshot is the point-in-time view of one series.
type SeriesSnapshot struct {
	Name    string   `json:"name"`
	Latest  float64  `json:"latest"`
	Count   int      `json:"count"`
	Trend   Trend    `json:"trend"`
	Samples []Sample `json:"samples,omitempty"`
}

// Snapshot is the point-in-time view of every series, sorted by name.
type Snapshot struct {
	TakenAt time.Time        `json:"taken_at"`
	Series  []SeriesSnapshot `json:"series"`
}

// Service samples metric series on a fixed interval and maintains their
// bounded histories. Attention efficiency and memory usage are sampled by
// the interval task; ping RTT is fed externally via RecordRTT.
type Service struct {
	opts      Options
	scheduler *sched.Scheduler

	mu        sync.Mutex
	histories map[string]*History
	task      *sched.Task

	// stream-fed attention samples (latest wins); the walk below takes
	// over once these go stale
	streamAttention   float64
	streamAttentionAt time.Time

	// synthesized attention random-walk state
	walk float64
	rng  *rand.Rand
}

// NewService creates an aggregator bound to the given scheduler.
func NewService(scheduler *sched.Scheduler, opts Options) *Service {
	opts = opts.withDefaults()
	s := &Service{
		opts:      opts,
		scheduler: scheduler,
		histories: make(map[string]*History),
		walk:      0.75,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, name := range []string{SeriesAttention, SeriesMemory, SeriesRTT} {
		s.histories[name] = NewHistory(opts.HistorySize)
	}
	return s
}

// Start begins interval sampling. Idempotent.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil && !s.task.IsTerminal() {
		return
	}
	s.task = s.scheduler.Every("metrics-sample", s.opts.SampleInterval, s.sample)
}

// Stop halts interval sampling. Histories are retained.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil {
		s.task.Cancel()
		s.task = nil
	}
}

// sample pulls one observation per interval-driven series.
func (s *Service) sample() {
	s.record(SeriesAttention, s.attentionSample())

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.record(SeriesMemory, float64(ms.HeapAlloc)/(1024*1024))
}

// attentionStaleFactor bounds how long a stream-fed attention sample
// stands in for the live graph, in sample intervals.
const attentionStaleFactor = 3

// attentionSample pulls from the injected source, the stream feed, or
// the synthesized walk, in that order of preference.
func (s *Service) attentionSample() float64 {
	if s.opts.AttentionSource != nil {
		return s.opts.AttentionSource()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.streamAttentionAt.IsZero() &&
		time.Since(s.streamAttentionAt) < attentionStaleFactor*s.opts.SampleInterval {
		return s.streamAttention
	}

	// Disconnected or idle stream: bounded random walk, matching the
	// demo data shown when no agent runtime is attached
	s.walk += (s.rng.Float64() - 0.5) * 0.05
	if s.walk < 0 {
		s.walk = 0
	}
	if s.walk > 1 {
		s.walk = 1
	}
	return s.walk
}

// RecordAttention feeds one stream-derived attention sample. Wire this
// to the stream client's update batches; while samples keep arriving the
// interval sampler reports them instead of the synthetic walk.
func (s *Service) RecordAttention(v float64) {
	s.mu.Lock()
	s.streamAttention = v
	s.streamAttentionAt = time.Now()
	s.mu.Unlock()
}

// RecordRTT feeds one keep-alive round-trip measurement. Wire this to the
// stream client's OnPingRTT hook.
func (s *Service) RecordRTT(d time.Duration) {
	s.record(SeriesRTT, float64(d.Milliseconds()))
}

func (s *Service) record(name string, value float64) {
	s.mu.Lock()
	h := s.histories[name]
	s.mu.Unlock()
	if h == nil {
		return
	}
	h.Record(value)
	telemetry.SeriesValue.WithLabelValues(name).Set(value)
}

// History returns the named series buffer, or nil if unknown.
func (s *Service) History(name string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.histories[name]
}

// Snapshot captures every series with its trend. When includeSamples is
// set, each snapshot carries a copy of the full buffer (for recording);
// otherwise only latest/count/trend (for display).
func (s *Service) Snapshot(includeSamples bool) Snapshot {
	s.mu.Lock()
	names := make([]string, 0, len(s.histories))
	for name := range s.histories {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	snap := Snapshot{TakenAt: time.Now()}
	for _, name := range names {
		h := s.History(name)
		ss := SeriesSnapshot{
			Name:  name,
			Count: h.Len(),
			Trend: h.Trend(s.opts.TrendWindow),
		}
		if latest, ok := h.Latest(); ok {
			ss.Latest = latest.Value
		}
		if includeSamples {
			ss.Samples = h.Samples()
		}
		snap.Series = append(snap.Series, ss)
	}
	return snap
}
