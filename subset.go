package lcfit

import "fmt"

// SubsetPoints chooses k of the samples while keeping them enclosing a
// maximum.
//
// The sample with the largest log-likelihood and its immediate neighbors are
// always kept, which preserves the bracket. The remaining k-3 slots go to the
// other samples with the largest log-likelihoods.
//
// Parameters:
// - points: Samples sorted by branch length, enclosing a maximum
// - k: Number of samples to keep, 3 <= k <= len(points)
//
// Returns:
// - []Point: A new slice of exactly k samples sorted by branch length, still
// enclosing a maximum. The input is not modified.
// - error: ErrNotEnclosing or ErrUnsorted if the precondition does not hold,
// ErrSubsetSize if k is out of range
//
// Usage example:
//
//	pts := []Point{{0.1, 0.4}, {0.2, 0.5}, {0.3, 0.6}, {0.4, 0.8}, {0.45, 0.74}, {0.5, 0.6}}
//	kept, _ := SubsetPoints(pts, 4)
//	// kept: {0.3, 0.6}, {0.4, 0.8}, {0.45, 0.74}, {0.5, 0.6}
func SubsetPoints(points []Point, k int) ([]Point, error) {
	curve, err := ClassifyCurve(points)
	if err != nil {
		return nil, err
	}

	if curve != CurveEnclosesMaximum {
		return nil, fmt.Errorf("%w: classified as %s", ErrNotEnclosing, curve)
	}

	n := len(points)
	if k < 3 || k > n {
		return nil, fmt.Errorf("%w: k=%d, n=%d", ErrSubsetSize, k, n)
	}

	out := make([]Point, 0, n)

	if k == n {
		return append(out, points...), nil
	}

	maxIdx := argMax(n, func(i int) float64 { return points[i].LL })

	// The bracket goes first, everything else after it.
	out = append(out, points[maxIdx-1:maxIdx+2]...)
	out = append(out, points[:maxIdx-1]...)
	out = append(out, points[maxIdx+2:]...)

	SortByLike(out[3:])

	out = out[:k]
	SortByT(out)

	return out, nil
}
