package lcfit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// KLDivergence measures how far a fitted log-likelihood profile lnl2 is from
// the true profile lnl1, both sampled at the same branch lengths.
//
// Each profile is turned into a probability vector by exponentiating and
// normalizing (log-sum-exp), and the Kullback-Leibler divergence
// D(p1 ‖ p2) is returned in bits.
//
// Returns ErrLengthMismatch when the profiles differ in length and
// ErrNoPoints when they are empty.
func KLDivergence(lnl1, lnl2 []float64) (float64, error) {
	if len(lnl1) != len(lnl2) {
		return math.NaN(), fmt.Errorf("%w: %d and %d values", ErrLengthMismatch, len(lnl1), len(lnl2))
	}

	if len(lnl1) == 0 {
		return math.NaN(), ErrNoPoints
	}

	return stat.KullbackLeibler(softmax(lnl1), softmax(lnl2)) / math.Ln2, nil
}

// softmax returns exp(lnl_i − logsumexp(lnl)).
func softmax(lnl []float64) []float64 {
	lse := floats.LogSumExp(lnl)

	p := make([]float64, len(lnl))
	for i, l := range lnl {
		p[i] = math.Exp(l - lse)
	}

	return p
}
