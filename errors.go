package lcfit

import "errors"

// Precondition violations. These signal programmer errors in the arguments,
// not a failure of the estimation itself: estimation failures are reported
// through Result.
var (
	ErrNoPoints         = errors.New("no points")
	ErrUnsorted         = errors.New("points not sorted by branch length")
	ErrNotEnclosing     = errors.New("points do not enclose a maximum")
	ErrSubsetSize       = errors.New("subset size out of range")
	ErrTooFewPoints     = errors.New("at least three points are required")
	ErrInvalidTolerance = errors.New("tolerance must be a non-negative number")
	ErrNilModel         = errors.New("model is nil")
	ErrInvalidModel     = errors.New("invalid model")
	ErrLengthMismatch   = errors.New("length mismatch")
	ErrInvalidInterval  = errors.New("invalid interval")
	ErrInvalidWeight    = errors.New("weights must be finite and non-negative")
)

// Bracketing search.
var (
	// ErrUnhandledCurve is returned when the search meets a classification it
	// has no rule to grow from.
	ErrUnhandledCurve = errors.New("no growth rule for curve")

	// ErrBudgetExhausted is returned together with the grown samples when the
	// budget is reached before they enclose a maximum.
	ErrBudgetExhausted = errors.New("point budget exhausted before enclosing a maximum")
)

// Fitter status.
var (
	ErrFitNoProgress     = errors.New("fit made no progress")
	ErrFitIterationLimit = errors.New("fit reached iteration limit")
)
