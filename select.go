package lcfit

import "fmt"

// Selection is the result of a bracketing search.
type Selection struct {
	// Points are the grown samples, sorted by branch length.
	Points *Points

	// Curve is the classification of Points when the search stopped.
	Curve Curve

	// Evaluations is the number of likelihood evaluations the search made.
	Evaluations int
}

// Bracketed reports whether the samples enclose a maximum.
func (s *Selection) Bracketed() bool {
	return s != nil && s.Curve == CurveEnclosesMaximum
}

// SelectPoints grows a set of samples until it encloses a maximum of the
// log-likelihood, or until maxPts samples have been taken.
//
// Each round looks at the current classification and adds one sample:
//   - CurveMonoInc: doubles the largest branch length
//   - CurveMonoDec: divides the smallest branch length by ten
//   - CurveEnclosesMaximum: adds the midpoint of the two smallest branch
//     lengths. Only reachable in the first round, when the seed already
//     brackets a maximum; it refines the lower side of the bracket.
//
// Parameters:
// - logLike: The log-likelihood to sample
// - start: Seed samples, sorted (len > 0). Not modified.
// - maxPts: Sample budget, including the seed samples
//
// Returns:
// - *Selection: The grown samples and their classification
// - error: ErrUnhandledCurve (with a nil Selection) when the samples reach a
// shape there is no rule for: CurveUnknown or CurveEnclosesMinimum.
// ErrBudgetExhausted (with the grown Selection) when the budget is reached
// before the samples enclose a maximum.
//
// Usage example:
//
//	seed := EvaluatePoints(logLike, []float64{0.1, 0.5, 1.0})
//	sel, err := SelectPoints(logLike, seed, 8)
//	if errors.Is(err, ErrBudgetExhausted) && sel.Curve == CurveMonoDec {
//	    // the optimum lies below the smallest sample
//	}
func SelectPoints(logLike LogLikeFunc, start *Points, maxPts int) (*Selection, error) {
	if start == nil || start.Len() == 0 {
		return nil, ErrNoPoints
	}

	points := start.Clone()
	sel := &Selection{Points: points}
	curve := points.Classify()

	for {
		var t float64

		switch curve {
		case CurveEnclosesMaximum:
			first, second := points.At(0), points.At(1)
			t = first.T + (second.T-first.T)/2
		case CurveMonoInc:
			t = points.Last().T * 2
		case CurveMonoDec:
			t = points.First().T / 10
		default:
			return nil, fmt.Errorf("%w: %s after %d samples", ErrUnhandledCurve, curve, points.Len())
		}

		points.Insert(Point{T: t, LL: logLike(t)})
		sel.Evaluations++

		curve = points.Classify()
		sel.Curve = curve

		if curve == CurveEnclosesMaximum {
			return sel, nil
		}

		if points.Len() >= maxPts {
			return sel, fmt.Errorf("%w: %d samples classified as %s", ErrBudgetExhausted, points.Len(), curve)
		}
	}
}
