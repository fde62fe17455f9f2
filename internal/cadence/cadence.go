// Package cadence measures frame delivery rate and regularity.
package cadence

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the largest FPS standard deviation, as a
	// fraction of mean FPS, for a stable cadence.
	// Example: 60 FPS mean → stable if stddev < 9 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the largest mean jitter, as a fraction of the
	// expected inter-frame interval, for a stable cadence.
	// Example: 60 FPS (16.7ms interval) → stable if jitter < 3.3ms
	jitterStabilityThreshold = 0.20
)

// Stats summarizes frame arrival times over a window.
type Stats struct {
	Frames       int
	Window       time.Duration
	FPSMean      float64
	FPSStdDev    float64
	FPSMin       float64
	FPSMax       float64
	JitterMean   float64 // seconds
	JitterStdDev float64 // seconds
	JitterMax    float64 // seconds
	Stable       bool
}

// Analyze computes cadence statistics from arrival times observed during
// window. Fewer than two arrivals, or a non-positive window, yield an
// unstable result with only Frames and FPSMean filled in.
func Analyze(arrivals []time.Time, window time.Duration) Stats {
	st := Stats{Frames: len(arrivals), Window: window}
	if st.Frames == 0 || window <= 0 {
		return st
	}
	st.FPSMean = float64(st.Frames) / window.Seconds()

	intervals := make([]float64, 0, st.Frames-1)
	for i := 1; i < len(arrivals); i++ {
		if d := arrivals[i].Sub(arrivals[i-1]).Seconds(); d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return st
	}

	rates := make([]float64, len(intervals))
	for i, d := range intervals {
		rates[i] = 1 / d
	}
	st.FPSMin, st.FPSMax = bounds(rates)
	st.FPSStdDev = deviation(rates, st.FPSMean)

	expected := 1 / st.FPSMean
	jitter := make([]float64, len(intervals))
	for i, d := range intervals {
		jitter[i] = math.Abs(d - expected)
	}
	st.JitterMean = mean(jitter)
	st.JitterStdDev = deviation(jitter, st.JitterMean)
	_, st.JitterMax = bounds(jitter)

	st.Stable = st.FPSStdDev < st.FPSMean*fpsStabilityThreshold &&
		st.JitterMean < expected*jitterStabilityThreshold
	return st
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// deviation is the population standard deviation of xs around center.
func deviation(xs []float64, center float64) float64 {
	var sq float64
	for _, x := range xs {
		sq += (x - center) * (x - center)
	}
	return math.Sqrt(sq / float64(len(xs)))
}

func bounds(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}
