package lcfit

import (
	"fmt"
	"math"
)

// BSM is the four-parameter binary symmetric model surrogate of a branch
// length log-likelihood:
//
//	l(t) = c·ln((1+e^{−r(t+b)})/2) + m·ln((1−e^{−r(t+b)})/2)
//
// Fields:
// - C: Weight of the "constant site" term
// - M: Weight of the "mutated site" term
// - R: Rate
// - B: Offset added to the branch length
//
// A model has an interior maximum only when C > M > 0 and R > 0.
type BSM struct {
	C float64 `yaml:"c" json:"c" mapstructure:"c"`
	M float64 `yaml:"m" json:"m" mapstructure:"m"`
	R float64 `yaml:"r" json:"r" mapstructure:"r"`
	B float64 `yaml:"b" json:"b" mapstructure:"b"`
}

// DefaultBSM is a reasonable starting model for a fit.
var DefaultBSM = BSM{C: 1500, M: 1000, R: 1, B: 0.5}

func (m BSM) expTerm(t float64) float64 {
	return math.Exp(-m.R * (t + m.B))
}

// LogLike evaluates the model at branch length t.
func (m BSM) LogLike(t float64) float64 {
	e := m.expTerm(t)

	return m.C*math.Log((1+e)/2) + m.M*math.Log((1-e)/2)
}

// MLT returns the branch length maximizing the model. It is +Inf when the
// model has no interior maximum (C <= M).
func (m BSM) MLT() float64 {
	if m.C <= m.M {
		return math.Inf(1)
	}

	return math.Log((m.C+m.M)/(m.C-m.M))/m.R - m.B
}

// ScaleFactor returns the factor by which C and M must be multiplied for the
// model to pass through (t, l).
func (m BSM) ScaleFactor(t, l float64) float64 {
	return l / m.LogLike(t)
}

// Rescale scales C and M so that the model passes through (t, l). R and B,
// and therefore the maximizer, are unchanged.
func (m *BSM) Rescale(t, l float64) {
	s := m.ScaleFactor(t, l)

	m.C *= s
	m.M *= s
}

// Validate checks that the model has an interior maximum.
func (m BSM) Validate() error {
	if !isFinite(m.C) || !isFinite(m.M) || !isFinite(m.R) || !isFinite(m.B) {
		return fmt.Errorf("%w: non-finite parameter in %+v", ErrInvalidModel, m)
	}

	if !(m.C > m.M && m.M > 0) {
		return fmt.Errorf("%w: need c > m > 0, got c=%g m=%g", ErrInvalidModel, m.C, m.M)
	}

	if m.R <= 0 {
		return fmt.Errorf("%w: need r > 0, got r=%g", ErrInvalidModel, m.R)
	}

	return nil
}

// validFor reports whether the model is valid and its log-likelihood defined
// at every branch length in ts. B may be negative as long as t+B stays
// positive.
func (m BSM) validFor(ts []float64) bool {
	if m.Validate() != nil {
		return false
	}

	for _, t := range ts {
		if m.R*(t+m.B) <= 1e-10 {
			return false
		}
	}

	return true
}

func (m BSM) params() []float64 {
	return []float64{m.C, m.M, m.R, m.B}
}

func bsmFromParams(p []float64) BSM {
	return BSM{C: p[0], M: p[1], R: p[2], B: p[3]}
}

// jacobian writes the partial derivatives of LogLike(t) with respect to
// (C, M, R, B) into dst.
func (m BSM) jacobian(t float64, dst []float64) {
	e := m.expTerm(t)
	dfdE := m.C/(1+e) - m.M/(1-e)

	dst[0] = math.Log((1 + e) / 2)
	dst[1] = math.Log((1 - e) / 2)
	dst[2] = dfdE * (-(t + m.B) * e)
	dst[3] = dfdE * (-m.R * e)
}
