package lcfit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	lmInitialLambda = 1e-3
	lmMinLambda     = 1e-12
	lmMaxLambda     = 1e16

	// lmRelCost and lmRelStep stop the iteration once an accepted step
	// barely changes the cost or the parameters.
	lmRelCost = 1e-15
	lmRelStep = 1e-12

	// lmCostFloor is the cost, relative to Σ w·y², below which the model is
	// considered to interpolate the samples.
	lmCostFloor = 1e-20
)

// lmProblem is a weighted nonlinear least-squares problem:
//
//	minimize Σ w_i·(y_i − f(p, t_i))²
type lmProblem struct {
	ts, ys, ws []float64

	// eval returns f(p, t).
	eval func(p []float64, t float64) float64

	// jac writes ∂f(p, t)/∂p into dst.
	jac func(p []float64, t float64, dst []float64)

	// valid reports whether f is defined at every t_i for p.
	valid func(p []float64) bool
}

func (prob *lmProblem) cost(p []float64) float64 {
	var sum float64

	for i, t := range prob.ts {
		d := prob.ys[i] - prob.eval(p, t)
		sum += prob.ws[i] * d * d
	}

	return sum
}

// scale returns Σ w·y².
func (prob *lmProblem) scale() float64 {
	var sum float64

	for i, y := range prob.ys {
		sum += prob.ws[i] * y * y
	}

	return sum
}

// lmStats summarizes a minimization.
type lmStats struct {
	Iterations int
	Cost       float64
}

// minimizeLM minimizes prob starting from p, which is updated in
// place with the best parameters found. A trial step is accepted only when
// the parameters stay valid and the cost decreases; otherwise the damping is
// increased tenfold.
//
// Returns ErrFitNoProgress when no acceptable step exists before
// convergence and ErrFitIterationLimit when maxIter is reached. In both cases
// p holds the best parameters found.
func minimizeLM(prob *lmProblem, p []float64, maxIter int) (lmStats, error) {
	n, k := len(prob.ts), len(p)

	var (
		jac    = mat.NewDense(n, k, nil)
		res    = mat.NewVecDense(n, nil)
		damped = mat.NewSymDense(k, nil)
		normal mat.SymDense
		grad   mat.VecDense
		step   mat.VecDense
		row    = make([]float64, k)
		trial  = make([]float64, k)
	)

	cur := prob.cost(p)
	floor := lmCostFloor * prob.scale()
	lambda := lmInitialLambda
	stats := lmStats{Cost: cur}

	if cur <= floor {
		return stats, nil
	}

	for it := 0; it < maxIter; it++ {
		stats.Iterations = it + 1

		// Rows of J and r scaled by √w, so that JᵀJ = JᵀWJ and Jᵀr = JᵀWr.
		for i, t := range prob.ts {
			sw := math.Sqrt(prob.ws[i])

			prob.jac(p, t, row)
			floats.Scale(sw, row)
			jac.SetRow(i, row)
			res.SetVec(i, sw*(prob.ys[i]-prob.eval(p, t)))
		}

		normal.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), res)

		accepted, converged := false, false

		for lambda < lmMaxLambda {
			damped.CopySym(&normal)

			for i := 0; i < k; i++ {
				aii := normal.At(i, i)
				damped.SetSym(i, i, aii+lambda*math.Max(aii, 1e-300))
			}

			if err := step.SolveVec(damped, &grad); err != nil && !solved(err) {
				lambda *= 10

				continue
			}

			for i := range trial {
				trial[i] = p[i] + step.AtVec(i)
			}

			if prob.valid(trial) {
				if next := prob.cost(trial); next < cur {
					converged = cur-next <= lmRelCost*cur || relativeStep(step.RawVector().Data, trial) < lmRelStep

					copy(p, trial)
					cur = next
					lambda = math.Max(lambda/10, lmMinLambda)
					accepted = true

					break
				}
			}

			lambda *= 10
		}

		stats.Cost = cur

		switch {
		case converged || cur <= floor:
			return stats, nil
		case !accepted:
			return stats, fmt.Errorf("%w: cost %g after %d iterations", ErrFitNoProgress, cur, stats.Iterations)
		}
	}

	return stats, fmt.Errorf("%w: cost %g after %d iterations", ErrFitIterationLimit, cur, stats.Iterations)
}

// solved reports whether a solve error still produced a usable result: an
// ill-conditioned but non-singular system.
func solved(err error) bool {
	var cond mat.Condition

	return errors.As(err, &cond) && !math.IsInf(float64(cond), 1)
}

// relativeStep returns max_i |d_i| / (|p_i| + 1e-12).
func relativeStep(d, p []float64) float64 {
	var out float64

	for i := range d {
		out = math.Max(out, math.Abs(d[i])/(math.Abs(p[i])+1e-12))
	}

	return out
}
