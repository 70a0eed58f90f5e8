package lcfit

import (
	"fmt"
	"sort"
)

// Points is an ordered set of samples, always sorted by increasing branch
// length. It is the working buffer of the bracketing search and the ML
// estimator: samples are inserted at their sorted position instead of being
// appended and re-sorted by the caller.
//
// The zero value is an empty set ready to use. A Points value is owned by the
// operation using it and is not safe for concurrent use.
type Points struct {
	pts []Point
}

// NewPoints returns a set holding a copy of pts, sorted by branch length.
func NewPoints(pts ...Point) *Points {
	p := &Points{pts: make([]Point, len(pts))}
	copy(p.pts, pts)
	SortByT(p.pts)

	return p
}

// EvaluatePoints evaluates logLike at every branch length in ts and returns
// the resulting samples, sorted by branch length.
func EvaluatePoints(logLike LogLikeFunc, ts []float64) *Points {
	pts := make([]Point, len(ts))
	for i, t := range ts {
		pts[i] = Point{T: t, LL: logLike(t)}
	}

	return NewPoints(pts...)
}

// Len returns the number of samples.
func (p *Points) Len() int { return len(p.pts) }

// At returns the i-th sample in branch-length order.
func (p *Points) At(i int) Point { return p.pts[i] }

// First returns the sample with the smallest branch length.
func (p *Points) First() Point { return p.pts[0] }

// Last returns the sample with the largest branch length.
func (p *Points) Last() Point { return p.pts[len(p.pts)-1] }

// Slice returns a copy of the samples in branch-length order.
func (p *Points) Slice() []Point {
	out := make([]Point, len(p.pts))
	copy(out, p.pts)

	return out
}

// Ts returns the branch lengths in order.
func (p *Points) Ts() []float64 {
	ts, _ := pointsToArrays(p.pts)

	return ts
}

// Clone returns an independent copy of the set.
func (p *Points) Clone() *Points {
	return &Points{pts: p.Slice()}
}

// Insert adds pt at its sorted position and returns that position. A sample
// whose branch length equals existing ones is placed after them.
func (p *Points) Insert(pt Point) int {
	i := sort.Search(len(p.pts), func(i int) bool { return p.pts[i].T > pt.T })

	p.pts = append(p.pts, Point{})
	copy(p.pts[i+1:], p.pts[i:])
	p.pts[i] = pt

	return i
}

// MaxIndex returns the index of the sample with the largest log-likelihood,
// first occurrence on ties.
//
// Panics if the set is empty.
func (p *Points) MaxIndex() int {
	if len(p.pts) == 0 {
		panic("lcfit: MaxIndex of empty Points")
	}

	return argMax(len(p.pts), func(i int) float64 { return p.pts[i].LL })
}

// Max returns the sample with the largest log-likelihood.
func (p *Points) Max() Point {
	return p.pts[p.MaxIndex()]
}

// Classify returns the shape of the samples. An empty set is CurveUnknown.
func (p *Points) Classify() Curve {
	if len(p.pts) == 0 {
		return CurveUnknown
	}

	return classify(p.pts)
}

// Subset reduces the set to k samples while keeping it enclosing a maximum.
// See SubsetPoints.
func (p *Points) Subset(k int) error {
	out, err := SubsetPoints(p.pts, k)
	if err != nil {
		return err
	}

	p.pts = out

	return nil
}

func (p *Points) String() string {
	return fmt.Sprintf("%v", p.pts)
}

// SortByT sorts points by increasing branch length.
func SortByT(points []Point) {
	sort.SliceStable(points, func(i, j int) bool { return points[i].T < points[j].T })
}

// SortByLike sorts points by decreasing log-likelihood.
func SortByLike(points []Point) {
	sort.SliceStable(points, func(i, j int) bool { return points[i].LL > points[j].LL })
}
