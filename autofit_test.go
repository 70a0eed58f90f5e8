package lcfit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var autoFitBounds = Interval[float64]{Min: 1e-6, Max: 10}

func TestThreePoints(t *testing.T) {
	got := ThreePoints(referenceModel2, 0.1, autoFitBounds)
	assert.InDeltaSlice(t, []float64{0.2, 0.3, 0.4}, got[:], 1e-15)

	// Both sides clamped to the midpoint towards the bound.
	got = ThreePoints(referenceModel2, 1, Interval[float64]{Min: 0.1, Max: 0.5})
	assert.InDeltaSlice(t, []float64{0.2, 0.3, 0.4}, got[:], 1e-15)

	got = ThreePoints(referenceModel2, referenceModel2.Delta(), autoFitBounds)
	assert.InDelta(t, (1e-6+0.3)/2, got[0], 1e-15)
	assert.Equal(t, 0.3, got[1])
	assert.InDelta(t, referenceModel2.InflectionT(), got[2], 1e-12)
}

func TestComputeWeights(t *testing.T) {
	w, maxLnl := ComputeWeights([]float64{-1, 0, -2}, 1)
	assert.Equal(t, 0.0, maxLnl)
	assert.InDeltaSlice(t, []float64{math.Exp(-1), 1, math.Exp(-2)}, w, 1e-15)

	w, maxLnl = ComputeWeights([]float64{-10, -3, -7}, 0)
	assert.Equal(t, -3.0, maxLnl)
	assert.Equal(t, []float64{1, 1, 1}, w)

	w, maxLnl = ComputeWeights([]float64{-4, -2}, 0.5)
	assert.Equal(t, -2.0, maxLnl)
	assert.InDeltaSlice(t, []float64{math.Exp(-1), 1}, w, 1e-15)

	w, maxLnl = ComputeWeights(nil, 1)
	assert.Nil(t, w)
	assert.True(t, math.IsInf(maxLnl, -1))
}

func TestNormalize(t *testing.T) {
	lnl := []float64{-105, -100, -110}
	Normalize(-100, lnl)

	assert.Equal(t, []float64{-5, 0, -10}, lnl)
}

func TestFitNormalized(t *testing.T) {
	ts := []float64{0.1, 0.3, 0.6, 1.0}

	lnl := make([]float64, len(ts))
	for i, tv := range ts {
		lnl[i] = referenceModel2.NormLogLike(tv)
	}

	model := BSM2{C: 1500, M: 1000, T0: 0.3, D2: -2000}
	require.NoError(t, FitNormalized(ts, lnl, &model, nil))

	assert.InDelta(t, 1200, model.C, 1e-6)
	assert.InDelta(t, 300, model.M, 1e-6)
}

func TestFitAutoRecoversModel(t *testing.T) {
	calls := 0
	logLike := func(t float64) float64 {
		calls++

		return referenceModel2.LogLike(t) - 5000
	}

	for _, start := range []BSM2{
		{C: 1500, M: 1000, T0: 0.3, D2: -2000},
		{C: 900, M: 200, T0: 0.3, D2: -2000},
	} {
		calls = 0
		model := start

		require.NoError(t, FitAuto(logLike, &model, autoFitBounds, 0, nil), "start %+v", start)

		assert.Equal(t, 9, calls)
		assert.InDelta(t, 1200, model.C, 1e-5)
		assert.InDelta(t, 300, model.M, 1e-5)
		assert.Equal(t, 0.3, model.T0)
		assert.Equal(t, -2000.0, model.D2)
	}
}

func TestFitAutoWeighted(t *testing.T) {
	logLike := func(t float64) float64 { return referenceModel2.LogLike(t) - 5000 }

	for _, alpha := range []float64{0.5, 1} {
		model := BSM2{C: 1500, M: 1000, T0: 0.3, D2: -2000}

		_ = FitAuto(logLike, &model, autoFitBounds, alpha, nil)

		assert.NoError(t, model.CheckAt(model.T0), "alpha %g", alpha)
		assert.True(t, model.validFor([]float64{autoFitBounds.Max}), "alpha %g", alpha)
	}
}

func TestFitAutoPreconditions(t *testing.T) {
	logLike := func(t float64) float64 { return -t }

	assert.ErrorIs(t, FitAuto(logLike, nil, autoFitBounds, 0, nil), ErrNilModel)

	model := referenceModel2
	assert.ErrorIs(t, FitAuto(logLike, &model, Interval[float64]{Min: 1, Max: 0.5}, 0, nil), ErrInvalidInterval)
	assert.Equal(t, referenceModel2, model)
}
