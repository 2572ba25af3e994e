// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/jeranaias/graphwatch/internal/sched"
)

func TestHistoryCapEvictsOldestFirst(t *testing.T) {
	h := NewHistory(100)

	for i := 0; i < 150; i++ {
		h.Record(float64(i))
	}

	if h.Len() != 100 {
		t.Fatalf("expected size pinned at cap 100, got %d", h.Len())
	}

	values := h.Values()
	if values[0] != 50 {
		t.Errorf("expected oldest surviving sample 50, got %v", values[0])
	}
	if values[len(values)-1] != 149 {
		t.Errorf("expected newest sample 149, got %v", values[len(values)-1])
	}
	for i := 1; i < len(values); i++ {
		if values[i] != values[i-1]+1 {
			t.Fatalf("order broken at %d: %v after %v", i, values[i], values[i-1])
		}
	}
}

func TestHistoryLatestAndCopy(t *testing.T) {
	h := NewHistory(10)
	if _, ok := h.Latest(); ok {
		t.Error("empty history should report no latest sample")
	}

	h.Record(1)
	h.Record(2)
	latest, ok := h.Latest()
	if !ok || latest.Value != 2 {
		t.Fatalf("latest = %v, %v", latest, ok)
	}

	// Samples returns a copy: mutating it must not touch the buffer
	samples := h.Samples()
	samples[0].Value = 999
	if h.Values()[0] != 1 {
		t.Error("Samples must return a defensive copy")
	}
}

func TestTrendUpTenPercent(t *testing.T) {
	// Prior window averages 100, recent window averages 110
	var values []float64
	for i := 0; i < 10; i++ {
		values = append(values, 100)
	}
	for i := 0; i < 10; i++ {
		values = append(values, 110)
	}

	trend := ComputeTrend(values, 10)
	if trend.Direction != TrendUp {
		t.Fatalf("expected up, got %s", trend.Direction)
	}
	if math.Abs(trend.Magnitude-0.10) > 1e-9 {
		t.Errorf("expected magnitude 0.10, got %v", trend.Magnitude)
	}
}

func TestTrendDown(t *testing.T) {
	var values []float64
	for i := 0; i < 10; i++ {
		values = append(values, 200)
	}
	for i := 0; i < 10; i++ {
		values = append(values, 150)
	}

	trend := ComputeTrend(values, 10)
	if trend.Direction != TrendDown {
		t.Fatalf("expected down, got %s", trend.Direction)
	}
	if math.Abs(trend.Magnitude-0.25) > 1e-9 {
		t.Errorf("expected magnitude 0.25, got %v", trend.Magnitude)
	}
}

func TestTrendStableUnderThreshold(t *testing.T) {
	cases := []struct {
		name  string
		prior float64
		next  float64
		want  TrendDirection
	}{
		{"identical halves", 100, 100, TrendStable},
		{"just under 1% up", 100, 100.9, TrendStable},
		{"at 1% up", 100, 101, TrendUp},
		{"just under 1% down", 100, 99.1, TrendStable},
		{"at 1% down", 100, 99, TrendDown},
	}
	for _, tc := range cases {
		var values []float64
		for i := 0; i < 10; i++ {
			values = append(values, tc.prior)
		}
		for i := 0; i < 10; i++ {
			values = append(values, tc.next)
		}
		if got := ComputeTrend(values, 10).Direction; got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestTrendNeedsTwoFullWindows(t *testing.T) {
	values := make([]float64, 19)
	for i := range values {
		values[i] = float64(i * 100)
	}
	if got := ComputeTrend(values, 10).Direction; got != TrendStable {
		t.Errorf("19 samples cannot fill two windows, expected stable, got %s", got)
	}
}

func TestTrendUsesTrailingWindows(t *testing.T) {
	// Old noise beyond the two trailing windows must not matter.
	values := []float64{1e6, -1e6, 42}
	for i := 0; i < 10; i++ {
		values = append(values, 100)
	}
	for i := 0; i < 10; i++ {
		values = append(values, 110)
	}

	trend := ComputeTrend(values, 10)
	if trend.Direction != TrendUp || math.Abs(trend.Magnitude-0.10) > 1e-9 {
		t.Errorf("expected up 0.10 from trailing windows, got %s %v", trend.Direction, trend.Magnitude)
	}
}

func TestServiceSamplesOnInterval(t *testing.T) {
	s := sched.NewScheduler()
	defer s.Stop()

	calls := 0
	svc := NewService(s, Options{
		SampleInterval:  5 * time.Millisecond,
		AttentionSource: func() float64 { calls++; return 0.5 },
	})
	svc.Start()
	defer svc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for svc.History(SeriesAttention).Len() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("sampler never accumulated 3 attention samples")
		}
		time.Sleep(2 * time.Millisecond)
	}

	if svc.History(SeriesMemory).Len() == 0 {
		t.Error("memory series should be sampled on the same cadence")
	}
	if latest, ok := svc.History(SeriesAttention).Latest(); !ok || latest.Value != 0.5 {
		t.Errorf("injected attention source not used: %v %v", latest, ok)
	}
}

func TestServiceRecordRTT(t *testing.T) {
	s := sched.NewScheduler()
	defer s.Stop()

	svc := NewService(s, Options{})
	svc.RecordRTT(42 * time.Millisecond)

	latest, ok := svc.History(SeriesRTT).Latest()
	if !ok || latest.Value != 42 {
		t.Fatalf("expected rtt sample 42ms, got %v %v", latest, ok)
	}
}

func TestServiceSnapshot(t *testing.T) {
	s := sched.NewScheduler()
	defer s.Stop()

	svc := NewService(s, Options{TrendWindow: 2})
	for i := 0; i < 4; i++ {
		svc.RecordRTT(time.Duration(10+i*10) * time.Millisecond)
	}

	snap := svc.Snapshot(false)
	if len(snap.Series) != 3 {
		t.Fatalf("expected 3 series, got %d", len(snap.Series))
	}

	var rtt *SeriesSnapshot
	for i := range snap.Series {
		if snap.Series[i].Name == SeriesRTT {
			rtt = &snap.Series[i]
		}
		if snap.Series[i].Samples != nil {
			t.Errorf("%s: display snapshot must not carry samples", snap.Series[i].Name)
		}
	}
	if rtt == nil {
		t.Fatal("rtt series missing from snapshot")
	}
	if rtt.Count != 4 || rtt.Latest != 40 {
		t.Errorf("rtt snapshot: count=%d latest=%v", rtt.Count, rtt.Latest)
	}
	// windows (10,20) vs (30,40): up by 133%
	if rtt.Trend.Direction != TrendUp {
		t.Errorf("expected rising rtt trend, got %s", rtt.Trend.Direction)
	}

	full := svc.Snapshot(true)
	for _, ss := range full.Series {
		if ss.Name == SeriesRTT && len(ss.Samples) != 4 {
			t.Errorf("recording snapshot should carry samples, got %d", len(ss.Samples))
		}
	}
}

func TestHistoryConcurrentAppend(t *testing.T) {
	h := NewHistory(50)
	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				h.Record(float64(g*1000 + i))
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}
	if h.Len() != 50 {
		t.Errorf("expected cap 50 after concurrent writes, got %d", h.Len())
	}
}

func TestAttentionPrefersStreamSamples(t *testing.T) {
	s := sched.NewScheduler()
	defer s.Stop()

	svc := NewService(s, Options{SampleInterval: 10 * time.Millisecond})

	svc.RecordAttention(0.42)
	for i := 0; i < 5; i++ {
		if got := svc.attentionSample(); got != 0.42 {
			t.Fatalf("fresh stream sample ignored: got %v", got)
		}
	}
}

func TestAttentionFallsBackWhenStale(t *testing.T) {
	s := sched.NewScheduler()
	defer s.Stop()

	svc := NewService(s, Options{SampleInterval: 10 * time.Millisecond})

	svc.RecordAttention(0.42)
	svc.mu.Lock()
	svc.streamAttentionAt = time.Now().Add(-time.Minute)
	svc.mu.Unlock()

	// A stale feed must not pin the sampler to the last stream value;
	// the walk resumes from its own state.
	stuck := true
	for i := 0; i < 20; i++ {
		if svc.attentionSample() != 0.42 {
			stuck = false
			break
		}
	}
	if stuck {
		t.Error("sampler still reporting the stale stream value")
	}
}

func TestAttentionSourceOverridesStream(t *testing.T) {
	s := sched.NewScheduler()
	defer s.Stop()

	svc := NewService(s, Options{
		SampleInterval:  10 * time.Millisecond,
		AttentionSource: func() float64 { return 0.99 },
	})

	svc.RecordAttention(0.42)
	if got := svc.attentionSample(); got != 0.99 {
		t.Errorf("injected source must win over the stream feed, got %v", got)
	}
}
