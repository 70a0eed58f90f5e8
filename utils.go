package lcfit

import (
	"math"

	"golang.org/x/exp/constraints"
)

//////
// Helper functions.
//////

// minMaxIndex scans n values once and returns the indices of the smallest and
// largest. Ties resolve to the first occurrence.
//
// Parameters:
// - n: Number of values (must be > 0)
// - at: Accessor returning the i-th value
//
// Returns:
// - mini: Index of the first minimum
// - maxi: Index of the first maximum
func minMaxIndex[T constraints.Ordered](n int, at func(int) T) (mini, maxi int) {
	for i := 1; i < n; i++ {
		v := at(i)

		if v > at(maxi) {
			maxi = i
		}

		if v < at(mini) {
			mini = i
		}
	}

	return mini, maxi
}

// argMax returns the index of the first largest of n values.
func argMax[T constraints.Ordered](n int, at func(int) T) int {
	_, maxi := minMaxIndex(n, at)

	return maxi
}

// isFinite reports whether x is neither NaN nor infinite.
func isFinite[T constraints.Float](x T) bool {
	f := float64(x)

	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// pointsToArrays splits points into parallel slices of branch lengths and
// log-likelihoods, which is the layout the fitters consume.
//
// Important notes:
// - Creates new slices; doesn't modify the input
// - Preserves order of elements
func pointsToArrays(points []Point) (ts, lls []float64) {
	ts = make([]float64, len(points))
	lls = make([]float64, len(points))

	for i, p := range points {
		ts[i] = p.T
		lls[i] = p.LL
	}

	return ts, lls
}

// uniformWeights returns n weights all equal to one.
func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}

	return w
}
