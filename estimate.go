package lcfit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Progress phases.
const (
	PhaseBracketing = "bracketing"
	PhaseRefinement = "refinement"
)

// fitOffsetSpans is how many sample spreads below zero the best sample is
// moved when the log-likelihood has to be shifted before fitting.
const fitOffsetSpans = 50

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration.
func DefaultConfig() EstimatorConfig {
	return EstimatorConfig{
		Tolerance:        1e-3,
		MaxIterations:    30,
		DefaultStart:     []float64{0.1, 0.5, 1.0},
		DefaultMaxPoints: 8,
		FitIterations:    DefaultFitIterations,
		BoundaryFloor:    1e-8,
		Fitter:           LevenbergMarquardt{},
		ProgressChan:     nil, // Default to no progress updates.
	}
}

// EstimateMLT finds the branch length maximizing an expensive log-likelihood
// by fitting a BSM to a few samples and sampling where the model predicts
// the maximum, until prediction and best sample agree.
//
// Parameters:
// - config: EstimatorConfig controlling the estimation
// - logLike: The log-likelihood to maximize
// - ts: Initial branch lengths (len >= 3). On return, when the working set
// still has len(ts) samples, ts holds their branch lengths in order.
// - model: Starting model, refined in place
//
// Returns:
// - *Result: The estimate and how the estimation ended. A failed estimation
// is a Result with Success false and T NaN, not an error.
// - error: Precondition violations only: ErrTooFewPoints, ErrNilModel,
// ErrInvalidTolerance
//
// Usage example:
//
//	model := DefaultBSM
//	result, err := EstimateMLT(DefaultConfig(), logLike, []float64{0.1, 0.5, 1.0}, &model)
//	if err != nil {
//	    return err
//	}
//
//	if result.Success {
//	    tree.SetBranchLength(edge, result.T)
//	}
//
// How it works:
// 1. Evaluates logLike at ts. If the samples do not enclose a maximum, they
// are discarded and SelectPoints grows a bracket from config.DefaultStart.
// A bracket search ending on decreasing samples succeeds with the smallest
// branch length. Any other failed search fails the estimation.
// 2. Rescales the model through the best sample and fits it. Samples too
// close to zero for a BSM are fitted shifted by Result.Offset.
// 3. For each round, reads the model's maximizer ml_t:
//   - non-finite: fails
//   - within Tolerance of the best sample: succeeds with ml_t
//   - outside the best sample's neighbors: fails
//   - negative: succeeds with BoundaryFloor
//   - otherwise samples ml_t, keeps the len(ts) samples that still bracket
//     the maximum, and refits
//
// 4. Fails when MaxIterations rounds pass without convergence.
//
// Important notes:
// - Safe for concurrent use with separate models and configs
// - Fitter errors are logged and otherwise ignored: a bad fit surfaces as
// divergence or exhaustion
// - Every logLike call is counted in Result.Diagnostics and config.Counters
func EstimateMLT(config EstimatorConfig, logLike LogLikeFunc, ts []float64, model *BSM) (*Result, error) {
	if len(ts) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(ts))
	}

	if model == nil {
		return nil, ErrNilModel
	}

	if math.IsNaN(config.Tolerance) || config.Tolerance < 0 {
		return nil, fmt.Errorf("%w: %g", ErrInvalidTolerance, config.Tolerance)
	}

	config = config.withDefaults()
	logger := config.Logger

	n := len(ts)
	result := &Result{T: math.NaN()}

	var (
		points *Points
		offset float64
	)

	// Helper function to send progress updates.
	sendProgress := func(phase string, iteration, total int, mlt float64, estimate Point) {
		if config.ProgressChan == nil {
			return
		}

		update := ProgressUpdate{
			Phase:         phase,
			Iteration:     iteration,
			MaxIterations: total,
			MLT:           mlt,
			Estimate:      estimate.T,
			EstimateLL:    estimate.LL,
		}

		select {
		case config.ProgressChan <- update:
		default:
			// Skip update if channel is full.
		}
	}

	// mlLogLike and bracketLogLike count evaluations separately.
	mlLogLike := func(t float64) float64 {
		result.Diagnostics.MLCalls++

		return logLike(t)
	}

	bracketLogLike := func(t float64) float64 {
		result.Diagnostics.BracketCalls++

		ll := logLike(t)
		sendProgress(PhaseBracketing, result.Diagnostics.BracketCalls, config.DefaultMaxPoints, math.NaN(), Point{T: t, LL: ll})

		return ll
	}

	// finish records how the estimation ended.
	finish := func(outcome Outcome, t float64) (*Result, error) {
		result.Outcome = outcome
		result.Success = outcome.Success()

		if result.Success {
			result.T = t
		}

		if points != nil {
			result.Points = points.Slice()

			if points.Len() == len(ts) {
				copy(ts, points.Ts())
			}
		}

		if config.Counters != nil {
			config.Counters.AddBracketCalls(result.Diagnostics.BracketCalls)
			config.Counters.AddMLCalls(result.Diagnostics.MLCalls)
			config.Counters.ObserveOutcome(outcome)
		}

		logger.Debug("ending iterative fit",
			"outcome", outcome,
			"t", result.T,
			"iterations", result.Iterations,
			"bracket_calls", result.Diagnostics.BracketCalls,
			"ml_calls", result.Diagnostics.MLCalls,
		)

		return result, nil
	}

	fit := func() {
		fitTs, fitLLs := pointsToArrays(points.pts)
		floats.AddConst(-offset, fitLLs)

		if err := config.Fitter.Fit(fitTs, fitLLs, nil, model, config.FitIterations); err != nil {
			logger.Warn("fit did not converge", "error", err, "model", *model)
		}
	}

	// Phase 1: Bracketing.
	//
	// The caller's samples are used when they already enclose a maximum.
	// Otherwise a bracket is searched for from the default seed.
	points = EvaluatePoints(mlLogLike, ts)

	if curve := points.Classify(); curve != CurveEnclosesMaximum {
		logger.Debug("initial samples do not enclose a maximum, restarting",
			"curve", curve,
			"points", points,
		)

		seed := EvaluatePoints(mlLogLike, config.DefaultStart)

		sel, err := SelectPoints(bracketLogLike, seed, config.DefaultMaxPoints)

		switch {
		case errors.Is(err, ErrBudgetExhausted) && sel.Curve == CurveMonoDec:
			points = sel.Points

			return finish(OutcomeBoundary, points.First().T)
		case err != nil:
			logger.Debug("no bracket found", "error", err)

			if sel != nil {
				points = sel.Points
			}

			return finish(OutcomeNoBracket, math.NaN())
		}

		points = sel.Points

		if points.Len() > n {
			if err := points.Subset(n); err != nil {
				return finish(OutcomeNoBracket, math.NaN())
			}
		}

		// A bracket smaller than requested is kept whole.
		n = min(n, points.Len())
	}

	// Phase 2: Refinement.
	//
	// Fit, sample the model's maximizer, and keep the samples that still
	// bracket it.
	maxIdx := points.MaxIndex()
	maxPt := points.At(maxIdx)

	offset = fitOffset(points)
	result.Offset = offset

	model.Rescale(maxPt.T, maxPt.LL-offset)
	fit()

	logger.Debug("starting iterative fit", "points", points, "offset", offset, "model", *model)

	for iter := 0; iter < config.MaxIterations; iter++ {
		result.Iterations = iter + 1

		mlt := model.MLT()

		logger.Debug("refinement round",
			"iteration", iter+1,
			"ml_t", mlt,
			"estimate", maxPt.T,
			"estimate_ll", maxPt.LL,
		)

		sendProgress(PhaseRefinement, iter+1, config.MaxIterations, mlt, maxPt)

		switch {
		case !isFinite(mlt):
			return finish(OutcomeNonFinite, math.NaN())
		case math.Abs(mlt-maxPt.T) <= config.Tolerance:
			return finish(OutcomeConverged, mlt)
		case mlt < points.At(maxIdx-1).T || mlt > points.At(maxIdx+1).T:
			return finish(OutcomeDiverged, math.NaN())
		case mlt < 0:
			return finish(OutcomeBoundary, config.BoundaryFloor)
		}

		points.Insert(Point{T: mlt, LL: mlLogLike(mlt)})

		if points.Classify() != CurveEnclosesMaximum {
			return finish(OutcomeDiverged, math.NaN())
		}

		if err := points.Subset(n); err != nil {
			return finish(OutcomeDiverged, math.NaN())
		}

		fit()

		maxIdx = points.MaxIndex()
		maxPt = points.At(maxIdx)
	}

	return finish(OutcomeExhausted, math.NaN())
}

//////
// Helper functions.
//////

// fitOffset returns the constant subtracted from the log-likelihood before
// fitting. A BSM is negative everywhere and its curvature is bounded relative
// to its value, so it cannot follow samples whose best value lies within their
// spread of zero. Those are moved to fitOffsetSpans spreads below zero.
// Samples further below zero are fitted as they are.
func fitOffset(points *Points) float64 {
	_, lls := pointsToArrays(points.pts)

	best := floats.Max(lls)
	span := best - floats.Min(lls)

	if best+span < 0 {
		return 0
	}

	return best + fitOffsetSpans*span
}

// withDefaults fills zero-valued fields with their defaults.
func (c EstimatorConfig) withDefaults() EstimatorConfig {
	def := DefaultConfig()

	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}

	if len(c.DefaultStart) == 0 {
		c.DefaultStart = def.DefaultStart
	}

	if c.DefaultMaxPoints <= 0 {
		c.DefaultMaxPoints = def.DefaultMaxPoints
	}

	if c.FitIterations <= 0 {
		c.FitIterations = def.FitIterations
	}

	if c.Fitter == nil {
		c.Fitter = def.Fitter
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return c
}
