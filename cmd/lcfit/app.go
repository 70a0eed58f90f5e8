package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/thalesfsp/lcfit"
)

// stdinArg is the argument selecting stdin as input.
const stdinArg = "-"

// Sentinel errors for the CLI.
var (
	ErrNoTarget        = errors.New("document has no target curve")
	ErrAmbiguousTarget = errors.New("document has more than one target curve")
)

// app holds the state shared by all commands.
type app struct {
	configPath string
	output     string

	cfg      *lcfit.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	counters *lcfit.PrometheusCounters
}

func (a *app) init(stderr io.Writer) error {
	cfg, err := lcfit.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()

		a.counters, err = lcfit.NewPrometheusCounters(a.registry, cfg.Metrics.Namespace)
		if err != nil {
			return err
		}
	}

	return nil
}

// estimatorConfig returns the configured EstimatorConfig wired to the
// app's logger and counters.
func (a *app) estimatorConfig() lcfit.EstimatorConfig {
	config := a.cfg.EstimatorConfig()
	config.Logger = a.logger

	if a.counters != nil {
		config.Counters = a.counters
	}

	return config
}

// writeMetrics writes the gathered counters to path in the Prometheus text
// format. A no-op when metrics are disabled or path is empty.
func (a *app) writeMetrics(path string) error {
	if a.registry == nil || path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	return nil
}

// readDoc decodes the YAML document named by arg into v.
func readDoc(arg string, stdin io.Reader, v any) error {
	var r io.Reader = stdin

	if arg != stdinArg {
		f, err := os.Open(arg)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", arg, err)
		}
		defer f.Close()

		r = f
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", arg, err)
	}

	return nil
}

// writeDoc encodes v as YAML to the output file, or to stdout.
func (a *app) writeDoc(stdout io.Writer, v any) error {
	w := stdout

	if a.output != "" {
		f, err := os.Create(a.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		w = f
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	return enc.Close()
}

// targetDoc describes a synthetic log-likelihood: a BSM or a BSM2 curve plus
// a constant offset.
type targetDoc struct {
	BSM    *lcfit.BSM  `yaml:"bsm,omitempty"`
	BSM2   *lcfit.BSM2 `yaml:"bsm2,omitempty"`
	Offset float64     `yaml:"offset,omitempty"`
}

func (d targetDoc) logLike() (lcfit.LogLikeFunc, error) {
	switch {
	case d.BSM != nil && d.BSM2 != nil:
		return nil, ErrAmbiguousTarget
	case d.BSM != nil:
		model := *d.BSM

		return func(t float64) float64 { return model.LogLike(t) + d.Offset }, nil
	case d.BSM2 != nil:
		model := *d.BSM2

		return func(t float64) float64 { return model.LogLike(t) + d.Offset }, nil
	}

	return nil, ErrNoTarget
}
