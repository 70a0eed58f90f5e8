package lcfit

import (
	"errors"
	"fmt"
	"math"
)

// BSM2 is the two-parameter reformulation of the BSM anchored at a known
// point: the curve's maximizer T0 and its second derivative D2 there are
// fixed, and only C and M are fitted.
//
// Fields:
// - C, M: Model weights, C > M > 0
// - T0: Branch length of the maximum
// - D2: Second derivative of the log-likelihood at T0, negative
//
// All derived quantities (Z, R, ThetaTilde, ...) are pure functions of the
// fields and recomputed on every call.
type BSM2 struct {
	C  float64 `yaml:"c" json:"c" mapstructure:"c"`
	M  float64 `yaml:"m" json:"m" mapstructure:"m"`
	T0 float64 `yaml:"t0" json:"t0" mapstructure:"t0"`
	D2 float64 `yaml:"d2" json:"d2" mapstructure:"d2"`
}

// Z returns −D2·C·M/(C+M).
func (m BSM2) Z() float64 {
	return -m.D2 * m.C * m.M / (m.C + m.M)
}

// R returns the rate of the equivalent four-parameter model.
func (m BSM2) R() float64 {
	return 2 * math.Sqrt(m.Z()) / (m.C - m.M)
}

// ThetaTilde returns exp(R·(t−T0)). It is 1 at T0.
func (m BSM2) ThetaTilde(t float64) float64 {
	return math.Exp(m.R() * (t - m.T0))
}

// Theta returns ((C+M)/(C−M))·ThetaTilde(t).
func (m BSM2) Theta(t float64) float64 {
	return (m.C + m.M) / (m.C - m.M) * m.ThetaTilde(t)
}

// V returns (C−M)/ThetaTilde(t).
func (m BSM2) V(t float64) float64 {
	return (m.C - m.M) / m.ThetaTilde(t)
}

// B returns the offset of the equivalent four-parameter model. It may be
// slightly negative from rounding; ToBSM clamps it.
func (m BSM2) B() float64 {
	return -m.T0 + math.Log((m.C+m.M)/(m.C-m.M))/m.R()
}

// InflectionT returns the branch length of the curve's inflection point
// above T0.
func (m BSM2) InflectionT() float64 {
	return -m.B() + math.Log((m.C+m.M+2*math.Sqrt(m.C*m.M))/(m.C-m.M))/m.R()
}

// Delta returns the distance from T0 to the inflection point. It sets the
// spacing of the auto-fit samples.
func (m BSM2) Delta() float64 {
	return m.InflectionT() - m.T0
}

// D1F returns the first derivative of the curve at t.
func (m BSM2) D1F(t float64) float64 {
	r := m.R()
	theta := m.Theta(t)

	return -m.C*r/(theta+1) + m.M*r/(theta-1)
}

// D2F returns the second derivative of the curve at t.
func (m BSM2) D2F(t float64) float64 {
	r := m.R()
	theta := m.Theta(t)

	return m.C*r*r*theta/((theta+1)*(theta+1)) - m.M*r*r*theta/((theta-1)*(theta-1))
}

// LogLike returns the model's log-likelihood at t.
func (m BSM2) LogLike(t float64) float64 {
	v := m.V(t)

	return m.C*math.Log(m.C+m.M+v) + m.M*math.Log(m.C+m.M-v) - (m.C+m.M)*math.Log(2*(m.C+m.M))
}

// NormLogLike returns LogLike(t) − LogLike(T0). It is 0 at T0.
func (m BSM2) NormLogLike(t float64) float64 {
	return m.LogLike(t) - m.LogLike(m.T0)
}

// Gradient returns the partial derivatives of NormLogLike(t) with respect to
// C and M, T0 and D2 held fixed.
func (m BSM2) Gradient(t float64) [2]float64 {
	c, mm := m.C, m.M
	z := m.Z()
	r := m.R()
	tt := m.ThetaTilde(t)
	v := m.V(t)
	dt := t - m.T0
	sz := math.Sqrt(z)

	dc := (r*dt/(c-mm) + dt*(z/(c+mm)-z/c)/((c-mm)*sz)) * v
	dm := (r*dt/(c-mm) - dt*(z/(c+mm)-z/mm)/((c-mm)*sz)) * v

	return [2]float64{
		(dc+1/tt+1)*c/(c+mm+v) - (dc+1/tt-1)*mm/(c+mm-v) - math.Log(2*c) + math.Log(c+mm+v) - 1,
		-(dm+1/tt-1)*c/(c+mm+v) + (dm+1/tt+1)*mm/(c+mm-v) + math.Log(c+mm-v) - math.Log(2*mm) - 1,
	}
}

// ToBSM converts the model to its four-parameter form. A negative offset is
// clamped to zero.
func (m BSM2) ToBSM() BSM {
	out := BSM{C: m.C, M: m.M, R: m.R(), B: m.B()}
	if out.B < 0 {
		out.B = 0
	}

	return out
}

// CheckAt verifies the model is well defined at t: Z, R, ThetaTilde and V
// finite and positive, C > M > 0, and C+M−V > 0. The returned error wraps
// ErrInvalidModel and lists every violated condition.
func (m BSM2) CheckAt(t float64) error {
	var errs []error

	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	z, r, tt, v := m.Z(), m.R(), m.ThetaTilde(t), m.V(t)

	check(m.C > 0, "c=%g not positive", m.C)
	check(m.M > 0, "m=%g not positive", m.M)
	check(m.C > m.M, "c=%g not greater than m=%g", m.C, m.M)
	check(isFinite(z) && z > 0, "z=%g not finite and positive", z)
	check(isFinite(r) && r > 0, "r=%g not finite and positive", r)
	check(isFinite(tt) && tt > 0, "theta_tilde(%g)=%g not finite and positive", t, tt)
	check(isFinite(v) && v > 0, "v(%g)=%g not finite and positive", t, v)
	check(m.C+m.M-v > 0, "c+m-v=%g not positive at t=%g", m.C+m.M-v, t)

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrInvalidModel, errors.Join(errs...))
}

// validFor reports whether the model's log-likelihood is defined at every
// branch length in ts.
func (m BSM2) validFor(ts []float64) bool {
	if !(m.C > m.M && m.M > 0) {
		return false
	}

	for _, t := range ts {
		v := m.V(t)
		if !isFinite(v) || m.C+m.M-v <= 0 {
			return false
		}
	}

	return true
}
