package lcfit

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Diagnostics counts the likelihood evaluations of one estimation.
type Diagnostics struct {
	// BracketCalls is the number of samples SelectPoints added while
	// searching for a bracket.
	BracketCalls int `yaml:"bracket_calls" json:"bracket_calls"`

	// MLCalls is the number of evaluations made by the estimator itself: the
	// caller's initial samples, the restart seed and every refinement sample.
	MLCalls int `yaml:"ml_calls" json:"ml_calls"`
}

// Total returns the number of likelihood evaluations.
func (d Diagnostics) Total() int {
	return d.BracketCalls + d.MLCalls
}

// Counters receives the likelihood-call counts of estimations. Implementations
// must be safe for concurrent use when shared by concurrent estimations.
type Counters interface {
	AddBracketCalls(n int)
	AddMLCalls(n int)
	ObserveOutcome(o Outcome)
}

// PrometheusCounters exports estimation counts as Prometheus counters.
type PrometheusCounters struct {
	bracketCalls prometheus.Counter
	mlCalls      prometheus.Counter
	outcomes     *prometheus.CounterVec
}

// NewPrometheusCounters creates the counters and registers them with reg.
//
// Metrics, all prefixed with namespace:
// - likelihood_bracket_calls_total
// - likelihood_ml_calls_total
// - estimations_total{outcome}
func NewPrometheusCounters(reg prometheus.Registerer, namespace string) (*PrometheusCounters, error) {
	c := &PrometheusCounters{
		bracketCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "likelihood_bracket_calls_total",
			Help:      "Likelihood evaluations made while searching for a bracket.",
		}),
		mlCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "likelihood_ml_calls_total",
			Help:      "Likelihood evaluations made by the ML estimator.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimations_total",
			Help:      "ML estimations by outcome.",
		}, []string{"outcome"}),
	}

	for _, collector := range []prometheus.Collector{c.bracketCalls, c.mlCalls, c.outcomes} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register lcfit counters: %w", err)
		}
	}

	return c, nil
}

// AddBracketCalls implements Counters.
func (c *PrometheusCounters) AddBracketCalls(n int) {
	c.bracketCalls.Add(float64(n))
}

// AddMLCalls implements Counters.
func (c *PrometheusCounters) AddMLCalls(n int) {
	c.mlCalls.Add(float64(n))
}

// ObserveOutcome implements Counters.
func (c *PrometheusCounters) ObserveOutcome(o Outcome) {
	c.outcomes.WithLabelValues(o.String()).Inc()
}
