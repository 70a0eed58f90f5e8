package lcfit

import (
	"log/slog"

	"golang.org/x/exp/constraints"
)

// Point is a single sample of the likelihood profile: a branch length and the
// log-likelihood observed at that branch length.
//
// Fields:
// - T: Branch length (the parameter being optimized)
// - LL: Log-likelihood of the tree at branch length T
//
// Collections of points are kept sorted by increasing T whenever they are
// classified or grown, see Points.
type Point struct {
	// T is the branch length.
	T float64 `yaml:"t" json:"t"`

	// LL is the log-likelihood at T.
	LL float64 `yaml:"ll" json:"ll"`
}

// LogLikeFunc evaluates the true, expensive log-likelihood at a branch length.
// Any context the evaluation needs (a tree, an alignment, a site-pattern cache)
// is captured by the closure.
//
// Parameters:
// - t: Branch length at which to evaluate the likelihood
//
// Returns:
// - float64: Log-likelihood at t. Must be finite over the valid domain.
//
// Usage example:
//
//	tree := loadTree()
//	logLike := LogLikeFunc(func(t float64) float64 {
//	    tree.SetBranchLength(edge, t)
//	    return tree.LogLikelihood()
//	})
//
// Implementation notes:
// - Must be repeatable: the same t must always produce the same value
// - Must not depend on the state of the fit
// - Is assumed to be expensive; every call is counted in Diagnostics
type LogLikeFunc func(t float64) float64

// Curve is the shape of a set of samples sorted by branch length, determined
// solely by where the minimum and maximum log-likelihood fall.
type Curve int

const (
	// CurveUnknown means the shape could not be determined.
	CurveUnknown Curve = iota

	// CurveMonoInc means the log-likelihood increases with branch length.
	CurveMonoInc

	// CurveMonoDec means the log-likelihood decreases with branch length.
	CurveMonoDec

	// CurveEnclosesMinimum means the smallest log-likelihood is interior.
	CurveEnclosesMinimum

	// CurveEnclosesMaximum means the largest log-likelihood is interior: the
	// samples bracket a maximum.
	CurveEnclosesMaximum
)

var curveNames = map[Curve]string{
	CurveUnknown:         "unknown",
	CurveMonoInc:         "monotonic-increasing",
	CurveMonoDec:         "monotonic-decreasing",
	CurveEnclosesMinimum: "encloses-minimum",
	CurveEnclosesMaximum: "encloses-maximum",
}

func (c Curve) String() string {
	if name, ok := curveNames[c]; ok {
		return name
	}

	return "unknown"
}

// Interval defines the valid range of branch lengths used when sampling around
// a model's anchor point.
//
// Type Parameter:
//   - T: The floating-point type of the bounds
//
// Fields:
// - Min: The minimum (inclusive) branch length
// - Max: The maximum (inclusive) branch length
//
// Usage:
//
//	bounds := Interval[float64]{
//	    Min: 1e-6,
//	    Max: 10,
//	}
//
// Validation:
// - Min must be less than or equal to Max
type Interval[T constraints.Float] struct {
	// Min defines the smallest allowed branch length (inclusive).
	Min T `yaml:"min" mapstructure:"min"`

	// Max defines the largest allowed branch length (inclusive).
	Max T `yaml:"max" mapstructure:"max"`
}

// Contains reports whether v lies within the interval.
func (i Interval[T]) Contains(v T) bool {
	return v >= i.Min && v <= i.Max
}

// Valid reports whether the interval is well formed.
func (i Interval[T]) Valid() bool {
	return i.Min <= i.Max
}

// Outcome describes how an ML estimation ended.
type Outcome int

const (
	// OutcomeConverged means the model's maximizer agreed with the working
	// estimate within the tolerance.
	OutcomeConverged Outcome = iota

	// OutcomeBoundary means the optimum lies at or below the sampled range:
	// either the samples decrease monotonically, or the model put the
	// maximizer below zero. Counts as a success.
	OutcomeBoundary

	// OutcomeNoBracket means no set of samples enclosing a maximum was found.
	OutcomeNoBracket

	// OutcomeNonFinite means the model's maximizer was NaN or infinite.
	OutcomeNonFinite

	// OutcomeDiverged means the model's maximizer left the current bracket, or
	// the refined samples stopped enclosing a maximum.
	OutcomeDiverged

	// OutcomeExhausted means the round budget ran out before convergence.
	OutcomeExhausted
)

var outcomeNames = map[Outcome]string{
	OutcomeConverged: "converged",
	OutcomeBoundary:  "boundary",
	OutcomeNoBracket: "no-bracket",
	OutcomeNonFinite: "non-finite",
	OutcomeDiverged:  "diverged",
	OutcomeExhausted: "exhausted",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}

	return "unknown"
}

// Success reports whether the outcome yields a usable branch length.
func (o Outcome) Success() bool {
	return o == OutcomeConverged || o == OutcomeBoundary
}

// ProgressUpdate represents the current state of an ML estimation.
type ProgressUpdate struct {
	// Phase is "bracketing" while samples are grown to enclose a maximum and
	// "refinement" during the fit-and-sample rounds.
	Phase string

	// Iteration is the current round number, starting at 1. While
	// bracketing it counts likelihood evaluations instead.
	Iteration int

	// MaxIterations is the round budget, or the sample budget while
	// bracketing.
	MaxIterations int

	// MLT is the model's maximizer at this round. NaN while bracketing.
	MLT float64

	// Estimate is the branch length of the working estimate, the best sample
	// so far. While bracketing it is the latest sample.
	Estimate float64

	// EstimateLL is the log-likelihood at Estimate.
	EstimateLL float64
}

// EstimatorConfig holds all configuration parameters for the ML estimation.
// It controls the convergence criterion, the bounds on how many likelihood
// evaluations an estimation may perform, and the collaborators it reports to.
//
// Fields explanation:
// - Tolerance: Convergence threshold on |ml_t - working estimate|
// - MaxIterations: Number of fit-and-sample rounds before giving up
// - DefaultStart: Branch lengths used when the caller's samples do not bracket
// - DefaultMaxPoints: Sample budget of the bracketing search
// - FitIterations: Iteration bound passed to the Fitter
// - BoundaryFloor: Value returned when the model's maximizer is negative
// - Fitter: Nonlinear least-squares fitter for the BSM
// - Counters: Collaborator receiving likelihood-call counts
// - Logger: Structured logger
// - ProgressChan: Optional progress updates
//
// Usage example:
//
//	config := DefaultConfig()
//	config.Tolerance = 1e-6
//	config.Logger = slog.Default()
//
//	result, err := EstimateMLT(config, logLike, []float64{0.1, 0.5, 1.0}, &model)
//
// Note:
// - Create separate configs for concurrent estimations that use ProgressChan.
type EstimatorConfig struct {
	// Tolerance is the convergence threshold: the estimation stops once the
	// model's maximizer is within Tolerance of the best sample.
	Tolerance float64

	// MaxIterations is the number of fit-and-sample rounds.
	MaxIterations int

	// DefaultStart holds the branch lengths the bracketing search restarts
	// from when the caller's samples do not enclose a maximum.
	DefaultStart []float64

	// DefaultMaxPoints is the bracketing search's sample budget.
	DefaultMaxPoints int

	// FitIterations bounds each call into the Fitter.
	FitIterations int

	// BoundaryFloor is returned as the estimate when the model's maximizer
	// falls below zero.
	BoundaryFloor float64

	// Fitter fits the BSM to samples. If nil, LevenbergMarquardt is used.
	Fitter Fitter

	// Counters receives likelihood-call counts. If nil, counts are only
	// reported through Result.Diagnostics.
	Counters Counters

	// Logger receives debug traces of the estimation. If nil, nothing is
	// logged.
	Logger *slog.Logger

	// ProgressChan is used to send progress updates during estimation.
	// If nil, no updates will be sent
	ProgressChan chan<- ProgressUpdate
}

// Result holds the outcome of an ML estimation.
type Result struct {
	// T is the estimated maximum-likelihood branch length, or NaN on failure.
	T float64

	// Success reports whether T is usable.
	Success bool

	// Outcome tells how the estimation ended.
	Outcome Outcome

	// Iterations is the number of fit-and-sample rounds performed.
	Iterations int

	// Points are the samples in use when the estimation ended, sorted by T.
	Points []Point

	// Offset was subtracted from the log-likelihood before fitting, so the
	// refined model describes logLike(t) - Offset. Zero unless the samples
	// lie too close to zero for a BSM.
	Offset float64

	// Diagnostics holds the likelihood-call counts of this estimation.
	Diagnostics Diagnostics
}
