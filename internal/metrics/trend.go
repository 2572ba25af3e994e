// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import "math"

// Trend parameters. The heuristic compares the mean of the most recent
// window against the mean of the preceding window; a relative change
// below the threshold is stable. Deliberately naive: two adjacent
// windowed averages, nothing more.
const (
	// DefaultTrendWindow is the number of samples per comparison window.
	DefaultTrendWindow = 10

	// stableThreshold is the relative-change cutoff below which the
	// trend is reported as stable.
	stableThreshold = 0.01
)

// TrendDirection labels the derived direction of a metric series.
type TrendDirection int

const (
	TrendStable TrendDirection = iota
	TrendUp
	TrendDown
)

// String returns the display label.
func (d TrendDirection) String() string {
	switch d {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "stable"
	}
}

// Trend is the derived direction plus the relative magnitude of the
// change (e.g. 0.10 for a 10% move). Magnitude is zero for stable.
type Trend struct {
	Direction TrendDirection `json:"direction"`
	Magnitude float64        `json:"magnitude"`
}

// ComputeTrend compares the mean of the last window samples against the
// mean of the window before it. With fewer than 2*window samples there
// is no prior window to compare, so the result is stable.
func ComputeTrend(values []float64, window int) Trend {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	if len(values) < 2*window {
		return Trend{Direction: TrendStable}
	}

	recent := mean(values[len(values)-window:])
	prior := mean(values[len(values)-2*window : len(values)-window])

	if prior == 0 {
		// No baseline to express a relative change against
		if recent == 0 {
			return Trend{Direction: TrendStable}
		}
		if recent > 0 {
			return Trend{Direction: TrendUp, Magnitude: math.Inf(1)}
		}
		return Trend{Direction: TrendDown, Magnitude: math.Inf(1)}
	}

	change := (recent - prior) / math.Abs(prior)
	if math.Abs(change) < stableThreshold {
		return Trend{Direction: TrendStable}
	}
	if change > 0 {
		return Trend{Direction: TrendUp, Magnitude: change}
	}
	return Trend{Direction: TrendDown, Magnitude: -change}
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Trend computes the trend of this history with the given window.
func (h *History) Trend(window int) Trend {
	return ComputeTrend(h.Values(), window)
}
