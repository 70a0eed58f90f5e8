package lcfit

import "fmt"

// ClassifyCurve determines the shape of a set of samples from the positions of
// their smallest and largest log-likelihood.
//
// Parameters:
// - points: Samples sorted by increasing branch length (len > 0)
//
// Returns:
// - Curve: The classification
// - error: ErrNoPoints for an empty set, ErrUnsorted if points are out of order
//
// Rules, with end = len(points)-1 and first-occurrence ties:
//   - min at 0, max at end: CurveMonoInc
//   - min at end, max at 0: CurveMonoDec
//   - min interior, max at a boundary: CurveEnclosesMinimum
//   - max interior, min at a boundary: CurveEnclosesMaximum
//   - anything else: CurveUnknown
//
// Usage example:
//
//	curve, err := ClassifyCurve([]Point{{0.1, -10}, {0.5, -8}, {1.0, -9}})
//	// curve == CurveEnclosesMaximum
func ClassifyCurve(points []Point) (Curve, error) {
	if len(points) == 0 {
		return CurveUnknown, ErrNoPoints
	}

	for i := 1; i < len(points); i++ {
		if points[i].T < points[i-1].T {
			return CurveUnknown, fmt.Errorf("%w: t[%d]=%g < t[%d]=%g",
				ErrUnsorted, i, points[i].T, i-1, points[i-1].T)
		}
	}

	return classify(points), nil
}

// classify is ClassifyCurve without the precondition checks.
func classify(points []Point) Curve {
	mini, maxi := minMaxIndex(len(points), func(i int) float64 { return points[i].LL })
	end := len(points) - 1

	switch {
	case mini == 0 && maxi == end:
		return CurveMonoInc
	case mini == end && maxi == 0:
		return CurveMonoDec
	case mini != 0 && mini != end && (maxi == 0 || maxi == end):
		return CurveEnclosesMinimum
	case maxi != 0 && maxi != end && (mini == 0 || mini == end):
		return CurveEnclosesMaximum
	}

	return CurveUnknown
}
