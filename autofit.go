package lcfit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// autoFitPasses is the number of sample-and-fit passes of FitAuto.
const autoFitPasses = 2

// ThreePoints returns the branch lengths T0−delta, T0 and T0+delta. A point
// falling outside bounds is replaced by the midpoint between T0 and the
// bound it crossed.
func ThreePoints(model BSM2, delta float64, bounds Interval[float64]) [3]float64 {
	t0 := model.T0

	lo := t0 - delta
	if lo < bounds.Min {
		lo = (bounds.Min + t0) / 2
	}

	hi := t0 + delta
	if hi > bounds.Max {
		hi = (t0 + bounds.Max) / 2
	}

	return [3]float64{lo, t0, hi}
}

// ComputeWeights converts log-likelihoods to fit weights
// exp(lnl_i − max)^alpha, so the best sample weighs 1 and alpha sets how fast
// the weight falls off with the log-likelihood. It returns the weights and
// the maximum. An empty input yields no weights and −Inf.
func ComputeWeights(lnl []float64, alpha float64) ([]float64, float64) {
	if len(lnl) == 0 {
		return nil, math.Inf(-1)
	}

	maxLnl := floats.Max(lnl)

	w := make([]float64, len(lnl))
	for i, l := range lnl {
		w[i] = math.Pow(math.Exp(l-maxLnl), alpha)
	}

	return w, maxLnl
}

// Normalize subtracts maxLnl from every element of lnl in place.
func Normalize(maxLnl float64, lnl []float64) {
	floats.AddConst(-maxLnl, lnl)
}

// FitNormalized fits model to normalized log-likelihoods with all weights
// equal to one. A nil solver means LevenbergMarquardt.
func FitNormalized(ts, lnl []float64, model *BSM2, solver WeightedSolver) error {
	if solver == nil {
		solver = LevenbergMarquardt{}
	}

	return solver.FitWeighted(ts, lnl, uniformWeights(len(ts)), model)
}

// FitAuto fits the C and M of model to logLike, sampling where the model says
// the curve is informative.
//
// Each of the two passes samples four branch lengths: ThreePoints around T0
// spaced by the model's current Delta, plus bounds.Max. The samples are
// normalized against logLike(T0), weighted with ComputeWeights and handed to
// solver. The second pass resamples with the Delta of the refitted model.
//
// Parameters:
// - logLike: The log-likelihood to approximate
// - model: The model to refine. T0 and D2 are kept.
// - bounds: Valid branch lengths, used to clamp the samples
// - alpha: Weighting exponent; 0 weighs all samples equally
// - solver: Weighted solver; nil means LevenbergMarquardt
//
// Returns:
// - error: The solver's error from the last pass, or a precondition error.
// logLike is evaluated nine times in total.
//
// Usage example:
//
//	model := BSM2{C: 1500, M: 1000, T0: 0.3, D2: -2000}
//	err := FitAuto(logLike, &model, Interval[float64]{Min: 1e-6, Max: 10}, 0, nil)
func FitAuto(logLike LogLikeFunc, model *BSM2, bounds Interval[float64], alpha float64, solver WeightedSolver) error {
	if model == nil {
		return ErrNilModel
	}

	if !bounds.Valid() {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidInterval, bounds.Min, bounds.Max)
	}

	if solver == nil {
		solver = LevenbergMarquardt{}
	}

	maxLnl := logLike(model.T0)

	var err error

	for pass := 0; pass < autoFitPasses; pass++ {
		three := ThreePoints(*model, model.Delta(), bounds)
		ts := []float64{three[0], three[1], three[2], bounds.Max}

		lnl := make([]float64, len(ts))
		for i, t := range ts {
			lnl[i] = logLike(t)
		}

		Normalize(maxLnl, lnl)
		w, _ := ComputeWeights(lnl, alpha)

		err = solver.FitWeighted(ts, lnl, w, model)
	}

	return err
}
