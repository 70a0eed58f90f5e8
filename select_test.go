package lcfit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceModel has its maximum at 0.3108256237659907.
var referenceModel = BSM{C: 1200, M: 300, R: 1, B: 0.2}

// referenceLogLike is referenceModel shifted by a constant.
func referenceLogLike(t float64) float64 {
	return referenceModel.LogLike(t) + referenceModel.M*math.Log(4)
}

func TestSelectPointsFromDecreasingSeed(t *testing.T) {
	start := EvaluatePoints(referenceLogLike, []float64{0.5, 1.0, 1.1})

	sel, err := SelectPoints(referenceLogLike, start, 8)
	require.NoError(t, err)

	assert.True(t, sel.Bracketed())
	assert.Equal(t, 1, sel.Evaluations)
	require.Equal(t, 4, sel.Points.Len())

	expected := []float64{0.05, 0.5, 1.0, 1.1}
	for i, want := range expected {
		assert.InDelta(t, want, sel.Points.At(i).T, 1e-12)
		assert.InDelta(t, referenceLogLike(want), sel.Points.At(i).LL, 1e-9)
	}

	assert.Equal(t, 3, start.Len(), "seed must not be modified")
}

func TestSelectPointsRefinesEnclosingSeed(t *testing.T) {
	start := EvaluatePoints(referenceLogLike, []float64{0.1, 0.5, 1.0})
	require.Equal(t, CurveEnclosesMaximum, start.Classify())

	sel, err := SelectPoints(referenceLogLike, start, 8)
	require.NoError(t, err)

	assert.Equal(t, CurveEnclosesMaximum, sel.Curve)
	assert.InDeltaSlice(t, []float64{0.1, 0.3, 0.5, 1.0}, sel.Points.Ts(), 1e-12)
}

func TestSelectPointsGrowsUpward(t *testing.T) {
	logLike := func(t float64) float64 { return -(t - 3) * (t - 3) }

	sel, err := SelectPoints(logLike, EvaluatePoints(logLike, []float64{0.1, 0.5, 1.0}), 8)
	require.NoError(t, err)

	assert.Equal(t, CurveEnclosesMaximum, sel.Curve)
	assert.Equal(t, 2, sel.Evaluations)
	assert.Equal(t, []float64{0.1, 0.5, 1.0, 2.0, 4.0}, sel.Points.Ts())
}

func TestSelectPointsBudgetExhausted(t *testing.T) {
	t.Run("decreasing", func(t *testing.T) {
		logLike := func(t float64) float64 { return -t }

		sel, err := SelectPoints(logLike, EvaluatePoints(logLike, []float64{0.1, 0.5, 1.0}), 8)
		require.ErrorIs(t, err, ErrBudgetExhausted)
		require.NotNil(t, sel)

		assert.False(t, sel.Bracketed())
		assert.Equal(t, CurveMonoDec, sel.Curve)
		assert.Equal(t, 8, sel.Points.Len())
		assert.Equal(t, 5, sel.Evaluations)
		assert.InDelta(t, 1e-6, sel.Points.First().T, 1e-18)
	})

	t.Run("increasing", func(t *testing.T) {
		logLike := func(t float64) float64 { return t }

		sel, err := SelectPoints(logLike, EvaluatePoints(logLike, []float64{0.1, 0.5, 1.0}), 8)
		require.ErrorIs(t, err, ErrBudgetExhausted)

		assert.Equal(t, CurveMonoInc, sel.Curve)
		assert.Equal(t, []float64{0.1, 0.5, 1, 2, 4, 8, 16, 32}, sel.Points.Ts())
	})
}

func TestSelectPointsUnhandledCurve(t *testing.T) {
	logLike := func(t float64) float64 { return (t - 0.5) * (t - 0.5) }

	sel, err := SelectPoints(logLike, EvaluatePoints(logLike, []float64{0.1, 0.5, 1.0}), 8)
	require.ErrorIs(t, err, ErrUnhandledCurve)
	assert.Nil(t, sel)
}

func TestSelectPointsEmptyStart(t *testing.T) {
	_, err := SelectPoints(referenceLogLike, nil, 8)
	require.ErrorIs(t, err, ErrNoPoints)

	_, err = SelectPoints(referenceLogLike, NewPoints(), 8)
	require.ErrorIs(t, err, ErrNoPoints)
}
