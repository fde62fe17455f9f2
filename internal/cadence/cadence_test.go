package cadence

import (
	"math/rand"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// arrivals generates n arrival times at fps with uniform jitter of ±fraction
// of the interval.
func arrivals(n int, fps, fraction float64) []time.Time {
	if n < 1 {
		return nil
	}
	interval := time.Duration(float64(time.Second) / fps)
	rng := rand.New(rand.NewSource(7))

	out := make([]time.Time, n)
	out[0] = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i < n; i++ {
		offset := time.Duration((rng.Float64()*2 - 1) * fraction * float64(interval))
		out[i] = out[i-1].Add(interval + offset)
	}
	return out
}

func TestAnalyze_RegularCadenceIsStable(t *testing.T) {
	st := Analyze(arrivals(120, 60, 0), 2*time.Second)

	assert.Equal(t, 120, st.Frames)
	assert.InDelta(t, 60, st.FPSMean, 0.01)
	assert.InDelta(t, 60, st.FPSMin, 0.01)
	assert.InDelta(t, 60, st.FPSMax, 0.01)
	assert.Less(t, st.FPSStdDev, 0.01)
	assert.Less(t, st.JitterMean, 0.0001)
	assert.True(t, st.Stable)
}

func TestAnalyze_HeavyJitterIsUnstable(t *testing.T) {
	st := Analyze(arrivals(120, 60, 0.6), 2*time.Second)

	assert.False(t, st.Stable, "fps stddev %.2f jitter %.4f", st.FPSStdDev, st.JitterMean)
	assert.GreaterOrEqual(t, st.JitterMax, st.JitterMean)
}

func TestAnalyze_EdgeCases(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		arrivals []time.Time
		window   time.Duration
		wantFPS  float64
	}{
		{name: "no frames", arrivals: nil, window: time.Second},
		{name: "one frame", arrivals: []time.Time{base}, window: time.Second, wantFPS: 1},
		{name: "zero window", arrivals: []time.Time{base, base.Add(time.Second)}, window: 0},
		{name: "identical timestamps", arrivals: []time.Time{base, base, base}, window: time.Second, wantFPS: 3},
		{
			name:     "two frames",
			arrivals: []time.Time{base, base.Add(time.Second)},
			window:   time.Second,
			wantFPS:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Analyze(tt.arrivals, tt.window)

			assert.Equal(t, len(tt.arrivals), st.Frames)
			assert.InDelta(t, tt.wantFPS, st.FPSMean, 1e-9)
			assert.False(t, st.Stable)
			assert.GreaterOrEqual(t, st.FPSStdDev, 0.0)
			assert.GreaterOrEqual(t, st.JitterMean, 0.0)
		})
	}
}

func TestAnalyze_BoundsProperty(t *testing.T) {
	f := func(fps float64, n uint8) bool {
		if fps < 1 || fps > 240 || n < 3 || n > 200 {
			return true
		}
		in := arrivals(int(n), fps, 0.1)
		window := in[len(in)-1].Sub(in[0]) + time.Duration(float64(time.Second)/fps)

		st := Analyze(in, window)
		return st.FPSMin <= st.FPSMax &&
			st.FPSStdDev >= 0 &&
			st.JitterMean >= 0 &&
			st.JitterMax >= st.JitterMean
	}

	require.NoError(t, quick.Check(f, &quick.Config{MaxCount: 200}))
}

func BenchmarkAnalyze(b *testing.B) {
	in := arrivals(600, 60, 0.1)
	for i := 0; i < b.N; i++ {
		_ = Analyze(in, 10*time.Second)
	}
}
