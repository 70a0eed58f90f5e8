package lcfit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// DefaultFitIterations bounds a fit when the caller does not.
const DefaultFitIterations = 250

// Fitter fits a four-parameter BSM to weighted samples by nonlinear least
// squares, refining model in place.
//
// Implementations must leave model valid: on failure it holds either the
// input or the best valid parameters found. A non-nil error reports how the
// fit ended; the estimator logs it and reads the model regardless.
type Fitter interface {
	Fit(ts, lls, weights []float64, model *BSM, maxIter int) error
}

// WeightedSolver fits the C and M of a BSM2 to weighted normalized
// log-likelihoods, T0 and D2 held fixed.
type WeightedSolver interface {
	FitWeighted(ts, lnl, weights []float64, model *BSM2) error
}

//////
// Levenberg-Marquardt.
//////

// LevenbergMarquardt fits with damped Gauss-Newton steps using the models'
// analytic derivatives. The zero value is ready to use.
type LevenbergMarquardt struct {
	// MaxIterations bounds FitWeighted. Fit uses its maxIter argument.
	// Defaults to DefaultFitIterations.
	MaxIterations int
}

// Fit implements Fitter.
func (f LevenbergMarquardt) Fit(ts, lls, weights []float64, model *BSM, maxIter int) error {
	prob, err := bsmProblem(ts, lls, weights, model)
	if err != nil {
		return err
	}

	p := model.params()

	_, err = minimizeLM(prob, p, iterationsOr(maxIter))

	*model = bsmFromParams(p)

	return err
}

// FitWeighted implements WeightedSolver.
func (f LevenbergMarquardt) FitWeighted(ts, lnl, weights []float64, model *BSM2) error {
	prob, err := bsm2Problem(ts, lnl, weights, model)
	if err != nil {
		return err
	}

	p := []float64{model.C, model.M}

	_, err = minimizeLM(prob, p, iterationsOr(f.MaxIterations))

	model.C, model.M = p[0], p[1]

	return err
}

//////
// Nelder-Mead.
//////

// NelderMead fits by minimizing the weighted squared error with the
// derivative-free simplex method of gonum/optimize. Parameters are searched
// relative to their starting values, so the initial simplex spans a few
// percent of each.
type NelderMead struct {
	// MaxIterations bounds FitWeighted. Fit uses its maxIter argument.
	// Defaults to DefaultFitIterations.
	MaxIterations int
}

// Fit implements Fitter.
func (f NelderMead) Fit(ts, lls, weights []float64, model *BSM, maxIter int) error {
	prob, err := bsmProblem(ts, lls, weights, model)
	if err != nil {
		return err
	}

	p := model.params()
	err = minimizeSimplex(prob, p, iterationsOr(maxIter))
	*model = bsmFromParams(p)

	return err
}

// FitWeighted implements WeightedSolver.
func (f NelderMead) FitWeighted(ts, lnl, weights []float64, model *BSM2) error {
	prob, err := bsm2Problem(ts, lnl, weights, model)
	if err != nil {
		return err
	}

	p := []float64{model.C, model.M}
	err = minimizeSimplex(prob, p, iterationsOr(f.MaxIterations))
	model.C, model.M = p[0], p[1]

	return err
}

// minimizeSimplex runs Nelder-Mead on prob from p and writes the result
// back to p when it improves on the start.
func minimizeSimplex(prob *lmProblem, p []float64, maxIter int) error {
	scale := make([]float64, len(p))
	for i, v := range p {
		scale[i] = math.Abs(v)
		if scale[i] == 0 {
			scale[i] = 1
		}
	}

	toParams := func(x []float64, dst []float64) {
		for i := range x {
			dst[i] = x[i] * scale[i]
		}
	}

	trial := make([]float64, len(p))
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			toParams(x, trial)

			if !prob.valid(trial) {
				return math.Inf(1)
			}

			return prob.cost(trial)
		},
	}

	init := make([]float64, len(p))
	for i, v := range p {
		init[i] = v / scale[i]
	}

	start := prob.cost(p)

	result, err := optimize.Minimize(problem, init, &optimize.Settings{MajorIterations: maxIter}, &optimize.NelderMead{})
	if result != nil && result.X != nil && result.F < start {
		best := make([]float64, len(p))
		toParams(result.X, best)

		if prob.valid(best) {
			copy(p, best)
		}
	}

	switch {
	case err != nil:
		return fmt.Errorf("%w: %w", ErrFitNoProgress, err)
	case result.Status == optimize.IterationLimit:
		return fmt.Errorf("%w: cost %g after %d iterations", ErrFitIterationLimit, result.F, result.Stats.MajorIterations)
	}

	return nil
}

//////
// Problem construction.
//////

func iterationsOr(n int) int {
	if n <= 0 {
		return DefaultFitIterations
	}

	return n
}

// checkSamples validates parallel sample slices. nil weights are replaced by
// ones.
func checkSamples(ts, ys, weights []float64, minLen int) ([]float64, error) {
	if len(ys) != len(ts) {
		return nil, fmt.Errorf("%w: %d branch lengths, %d log-likelihoods", ErrLengthMismatch, len(ts), len(ys))
	}

	if len(ts) < minLen {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(ts))
	}

	if weights == nil {
		return uniformWeights(len(ts)), nil
	}

	if len(weights) != len(ts) {
		return nil, fmt.Errorf("%w: %d branch lengths, %d weights", ErrLengthMismatch, len(ts), len(weights))
	}

	for i, w := range weights {
		if !isFinite(w) || w < 0 {
			return nil, fmt.Errorf("%w: weights[%d]=%g", ErrInvalidWeight, i, w)
		}
	}

	return weights, nil
}

func bsmProblem(ts, lls, weights []float64, model *BSM) (*lmProblem, error) {
	if model == nil {
		return nil, ErrNilModel
	}

	ws, err := checkSamples(ts, lls, weights, 1)
	if err != nil {
		return nil, err
	}

	if !model.validFor(ts) {
		return nil, fmt.Errorf("%w: %+v undefined at the samples", ErrInvalidModel, *model)
	}

	return &lmProblem{
		ts: ts,
		ys: lls,
		ws: ws,
		eval: func(p []float64, t float64) float64 {
			return bsmFromParams(p).LogLike(t)
		},
		jac: func(p []float64, t float64, dst []float64) {
			bsmFromParams(p).jacobian(t, dst)
		},
		valid: func(p []float64) bool {
			return bsmFromParams(p).validFor(ts)
		},
	}, nil
}

func bsm2Problem(ts, lnl, weights []float64, model *BSM2) (*lmProblem, error) {
	if model == nil {
		return nil, ErrNilModel
	}

	ws, err := checkSamples(ts, lnl, weights, 1)
	if err != nil {
		return nil, err
	}

	if err := model.CheckAt(model.T0); err != nil {
		return nil, err
	}

	if !model.validFor(ts) {
		return nil, fmt.Errorf("%w: %+v undefined at the samples", ErrInvalidModel, *model)
	}

	withCM := func(p []float64) BSM2 {
		return BSM2{C: p[0], M: p[1], T0: model.T0, D2: model.D2}
	}

	return &lmProblem{
		ts: ts,
		ys: lnl,
		ws: ws,
		eval: func(p []float64, t float64) float64 {
			return withCM(p).NormLogLike(t)
		},
		jac: func(p []float64, t float64, dst []float64) {
			g := withCM(p).Gradient(t)
			dst[0], dst[1] = g[0], g[1]
		},
		valid: func(p []float64) bool {
			return withCM(p).validFor(ts)
		},
	}, nil
}
