package lcfit

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModel(model BSM, ts []float64) []float64 {
	lls := make([]float64, len(ts))
	for i, t := range ts {
		lls[i] = model.LogLike(t)
	}

	return lls
}

func sumSquares(model BSM, ts, lls []float64) float64 {
	var sum float64

	for i, t := range ts {
		d := lls[i] - model.LogLike(t)
		sum += d * d
	}

	return sum
}

func TestLevenbergMarquardtRecoversModel(t *testing.T) {
	ts := []float64{0.05, 0.1, 0.3, 0.5, 1.0, 1.5}
	lls := sampleModel(referenceModel, ts)

	for _, start := range []BSM{
		DefaultBSM,
		{C: 1800, M: 400, R: 1, B: 0.5},
		{C: 1300, M: 350, R: 1.1, B: 0.25},
	} {
		model := start

		err := LevenbergMarquardt{}.Fit(ts, lls, nil, &model, 0)
		require.NoError(t, err, "start %+v", start)

		// The fit stops once its cost falls below 1e-20·Σy², which leaves
		// C and M a few 1e-6 off.
		assert.InDelta(t, 1200, model.C, 1e-4)
		assert.InDelta(t, 300, model.M, 1e-4)
		assert.InDelta(t, 1, model.R, 1e-7)
		assert.InDelta(t, 0.2, model.B, 1e-7)
		assert.InDelta(t, referenceModel.MLT(), model.MLT(), 1e-7)
	}
}

func TestNelderMeadImprovesFit(t *testing.T) {
	ts := []float64{0.05, 0.1, 0.3, 0.5, 1.0, 1.5}
	lls := sampleModel(referenceModel, ts)

	model := DefaultBSM
	before := sumSquares(model, ts, lls)

	err := NelderMead{}.Fit(ts, lls, nil, &model, 500)
	if err != nil {
		assert.True(t, errors.Is(err, ErrFitIterationLimit) || errors.Is(err, ErrFitNoProgress), "%v", err)
	}

	require.NoError(t, model.Validate())
	assert.True(t, model.validFor(ts))
	assert.Less(t, sumSquares(model, ts, lls), before)
}

func TestFitterPreconditions(t *testing.T) {
	ts := []float64{0.1, 0.5, 1.0}
	lls := sampleModel(referenceModel, ts)

	for name, fitter := range map[string]Fitter{"lm": LevenbergMarquardt{}, "nelder-mead": NelderMead{}} {
		t.Run(name, func(t *testing.T) {
			model := DefaultBSM

			assert.ErrorIs(t, fitter.Fit(ts, lls[:2], nil, &model, 0), ErrLengthMismatch)
			assert.ErrorIs(t, fitter.Fit(ts, lls, []float64{1, 1}, &model, 0), ErrLengthMismatch)
			assert.ErrorIs(t, fitter.Fit(ts, lls, []float64{1, -1, 1}, &model, 0), ErrInvalidWeight)
			assert.ErrorIs(t, fitter.Fit(ts, lls, []float64{1, math.NaN(), 1}, &model, 0), ErrInvalidWeight)
			assert.ErrorIs(t, fitter.Fit(nil, nil, nil, &model, 0), ErrTooFewPoints)
			assert.ErrorIs(t, fitter.Fit(ts, lls, nil, nil, 0), ErrNilModel)

			bad := BSM{C: 300, M: 1200, R: 1, B: 0.5}
			assert.ErrorIs(t, fitter.Fit(ts, lls, nil, &bad, 0), ErrInvalidModel)
			assert.Equal(t, BSM{C: 300, M: 1200, R: 1, B: 0.5}, bad, "rejected model must not change")

			assert.Equal(t, DefaultBSM, model)
		})
	}
}

func TestWeightedSolverRecoversBSM2(t *testing.T) {
	ts := []float64{0.1, 0.3, 0.6, 1.0}

	lnl := make([]float64, len(ts))
	for i, tv := range ts {
		lnl[i] = referenceModel2.NormLogLike(tv)
	}

	for _, start := range []BSM2{
		{C: 1500, M: 1000, T0: 0.3, D2: -2000},
		{C: 900, M: 200, T0: 0.3, D2: -2000},
	} {
		model := start

		require.NoError(t, LevenbergMarquardt{}.FitWeighted(ts, lnl, nil, &model))

		assert.InDelta(t, 1200, model.C, 1e-6)
		assert.InDelta(t, 300, model.M, 1e-6)
		assert.Equal(t, 0.3, model.T0)
		assert.Equal(t, -2000.0, model.D2)
	}
}

func TestWeightedSolverPreconditions(t *testing.T) {
	ts := []float64{0.1, 0.3, 0.6}
	lnl := []float64{-1, 0, -1}

	invalid := BSM2{C: 1200, M: 300, T0: 0.3, D2: 5}
	assert.ErrorIs(t, LevenbergMarquardt{}.FitWeighted(ts, lnl, nil, &invalid), ErrInvalidModel)
	assert.ErrorIs(t, NelderMead{}.FitWeighted(ts, lnl, nil, &invalid), ErrInvalidModel)

	model := referenceModel2
	assert.ErrorIs(t, LevenbergMarquardt{}.FitWeighted(ts, lnl[:1], nil, &model), ErrLengthMismatch)
	assert.ErrorIs(t, NelderMead{}.FitWeighted(ts, lnl, nil, nil), ErrNilModel)
}

func TestNelderMeadFitWeightedStaysValid(t *testing.T) {
	ts := []float64{0.1, 0.3, 0.6, 1.0}

	lnl := make([]float64, len(ts))
	for i, tv := range ts {
		lnl[i] = referenceModel2.NormLogLike(tv)
	}

	model := BSM2{C: 1500, M: 1000, T0: 0.3, D2: -2000}

	err := NelderMead{MaxIterations: 400}.FitWeighted(ts, lnl, nil, &model)
	if err != nil {
		assert.True(t, errors.Is(err, ErrFitIterationLimit) || errors.Is(err, ErrFitNoProgress), "%v", err)
	}

	assert.True(t, model.validFor(ts))
	assert.NoError(t, model.CheckAt(model.T0))
}
