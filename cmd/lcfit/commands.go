package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thalesfsp/lcfit"
)

//////
// Documents.
//////

// fitRequest is the input of fit.
type fitRequest struct {
	Points  []lcfit.Point `yaml:"points"`
	Weights []float64     `yaml:"weights,omitempty"`
	Model   lcfit.BSM     `yaml:"model"`
}

// fitResponse is the output of fit.
type fitResponse struct {
	Model lcfit.BSM `yaml:"model"`
	MLT   float64   `yaml:"ml_t"`
	Error string    `yaml:"error,omitempty"`
}

// pointRequest is the input of rescale and scale-factor.
type pointRequest struct {
	T     float64   `yaml:"t"`
	LL    float64   `yaml:"ll"`
	Model lcfit.BSM `yaml:"model"`
}

type rescaleResponse struct {
	Model lcfit.BSM `yaml:"model"`
}

type scaleFactorResponse struct {
	ScaleFactor float64 `yaml:"scale_factor"`
}

type mlTRequest struct {
	Model lcfit.BSM `yaml:"model"`
}

type mlTResponse struct {
	MLT float64 `yaml:"ml_t"`
}

// estimateRequest is the input of estimate. Target supplies the
// log-likelihood being maximized.
type estimateRequest struct {
	Target    targetDoc  `yaml:"target"`
	Ts        []float64  `yaml:"ts"`
	Model     *lcfit.BSM `yaml:"model,omitempty"`
	Tolerance *float64   `yaml:"tolerance,omitempty"`
}

type estimateResponse struct {
	T           float64           `yaml:"t"`
	Success     bool              `yaml:"success"`
	Outcome     string            `yaml:"outcome"`
	Iterations  int               `yaml:"iterations"`
	Ts          []float64         `yaml:"ts"`
	Points      []lcfit.Point     `yaml:"points"`
	Model       lcfit.BSM         `yaml:"model"`
	Offset      float64           `yaml:"offset"`
	Diagnostics lcfit.Diagnostics `yaml:"diagnostics"`
}

// bsm2Request is the input of bsm2. Alpha and Bounds override the autofit
// section of the config.
type bsm2Request struct {
	Target targetDoc                `yaml:"target"`
	Model  lcfit.BSM2               `yaml:"model"`
	Alpha  *float64                 `yaml:"alpha,omitempty"`
	Bounds *lcfit.Interval[float64] `yaml:"bounds,omitempty"`
}

type bsm2Response struct {
	Model       lcfit.BSM2 `yaml:"model"`
	BSM         lcfit.BSM  `yaml:"bsm"`
	InflectionT float64    `yaml:"inflection_t"`
	Error       string     `yaml:"error,omitempty"`
}

type klRequest struct {
	LnL1 []float64 `yaml:"lnl1"`
	LnL2 []float64 `yaml:"lnl2"`
}

type klResponse struct {
	KL float64 `yaml:"kl"`
}

//////
// Commands.
//////

func fitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fit file",
		Short: "Fit a BSM to samples",
		Long: `Fit a four-parameter BSM to log-likelihood samples, starting from the
given model. The model is first rescaled through the best sample.

Example document:
  points: [{t: 0.1, ll: -1300}, {t: 0.5, ll: -1250}, {t: 1.0, ll: -1270}]
  model: {c: 1500, m: 1000, r: 1, b: 0.5}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req fitRequest
			if err := readDoc(args[0], cmd.InOrStdin(), &req); err != nil {
				return err
			}

			resp, err := a.runFit(req)
			if err != nil {
				return err
			}

			return a.writeDoc(cmd.OutOrStdout(), resp)
		},
	}
}

func (a *app) runFit(req fitRequest) (*fitResponse, error) {
	if len(req.Points) == 0 {
		return nil, lcfit.ErrNoPoints
	}

	points := lcfit.NewPoints(req.Points...)
	best := points.Max()

	model := req.Model
	model.Rescale(best.T, best.LL)

	ts, lls := make([]float64, points.Len()), make([]float64, points.Len())
	for i := range ts {
		ts[i], lls[i] = points.At(i).T, points.At(i).LL
	}

	resp := &fitResponse{}

	fitErr := a.cfg.EstimatorConfig().Fitter.Fit(ts, lls, req.Weights, &model, a.cfg.Fitter.Iterations)
	if fitErr != nil {
		if !errors.Is(fitErr, lcfit.ErrFitNoProgress) && !errors.Is(fitErr, lcfit.ErrFitIterationLimit) {
			return nil, fitErr
		}

		a.logger.Warn("fit did not converge", "error", fitErr)
		resp.Error = fitErr.Error()
	}

	resp.Model = model
	resp.MLT = model.MLT()

	return resp, nil
}

func rescaleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rescale file",
		Short: "Rescale a BSM so that it passes through a sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req pointRequest
			if err := readDoc(args[0], cmd.InOrStdin(), &req); err != nil {
				return err
			}

			model := req.Model
			model.Rescale(req.T, req.LL)

			return a.writeDoc(cmd.OutOrStdout(), rescaleResponse{Model: model})
		},
	}
}

func scaleFactorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scale-factor file",
		Short: "Factor scaling a BSM through a sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req pointRequest
			if err := readDoc(args[0], cmd.InOrStdin(), &req); err != nil {
				return err
			}

			return a.writeDoc(cmd.OutOrStdout(), scaleFactorResponse{ScaleFactor: req.Model.ScaleFactor(req.T, req.LL)})
		},
	}
}

func mlTCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ml-t file",
		Short: "Branch length maximizing a BSM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req mlTRequest
			if err := readDoc(args[0], cmd.InOrStdin(), &req); err != nil {
				return err
			}

			return a.writeDoc(cmd.OutOrStdout(), mlTResponse{MLT: req.Model.MLT()})
		},
	}
}

func estimateCmd(a *app) *cobra.Command {
	var metricsFile string

	cmd := &cobra.Command{
		Use:   "estimate file",
		Short: "Iterative ML branch-length estimation against a target curve",
		Long: `Estimate the ML branch length of a target log-likelihood curve with the
iterative fit-and-sample loop.

Example document:
  target:
    bsm: {c: 1200, m: 300, r: 1, b: 0.2}
    offset: -10
  ts: [0.1, 0.5, 1.0, 1.5]
  model: {c: 1800, m: 400, r: 1, b: 0.5}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req estimateRequest
			if err := readDoc(args[0], cmd.InOrStdin(), &req); err != nil {
				return err
			}

			resp, err := a.runEstimate(req)
			if err != nil {
				return err
			}

			if err := a.writeMetrics(metricsFile); err != nil {
				return err
			}

			return a.writeDoc(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus counters to this file (requires metrics.enabled)")

	return cmd
}

func (a *app) runEstimate(req estimateRequest) (*estimateResponse, error) {
	logLike, err := req.Target.logLike()
	if err != nil {
		return nil, err
	}

	model := lcfit.DefaultBSM
	if req.Model != nil {
		model = *req.Model
	}

	config := a.estimatorConfig()
	if req.Tolerance != nil {
		config.Tolerance = *req.Tolerance
	}

	ts := append([]float64(nil), req.Ts...)

	result, err := lcfit.EstimateMLT(config, logLike, ts, &model)
	if err != nil {
		return nil, fmt.Errorf("estimate: %w", err)
	}

	return &estimateResponse{
		T:           result.T,
		Success:     result.Success,
		Outcome:     result.Outcome.String(),
		Iterations:  result.Iterations,
		Ts:          ts,
		Points:      result.Points,
		Model:       model,
		Offset:      result.Offset,
		Diagnostics: result.Diagnostics,
	}, nil
}

func bsm2Cmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bsm2 file",
		Short: "BSM2 auto-fit against a target curve",
		Long: `Fit the c and m of a BSM2 to a target log-likelihood curve with the
two-pass auto-fit. t0 and d2 of the model are kept.

Example document:
  target:
    bsm2: {c: 1200, m: 300, t0: 0.3, d2: -2000}
  model: {c: 1500, m: 1000, t0: 0.3, d2: -2000}
  alpha: 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req bsm2Request
			if err := readDoc(args[0], cmd.InOrStdin(), &req); err != nil {
				return err
			}

			resp, err := a.runBSM2(req)
			if err != nil {
				return err
			}

			return a.writeDoc(cmd.OutOrStdout(), resp)
		},
	}
}

func (a *app) runBSM2(req bsm2Request) (*bsm2Response, error) {
	logLike, err := req.Target.logLike()
	if err != nil {
		return nil, err
	}

	alpha := a.cfg.AutoFit.Alpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}

	bounds := a.cfg.AutoFit.Bounds
	if req.Bounds != nil {
		bounds = *req.Bounds
	}

	model := req.Model
	resp := &bsm2Response{}

	fitErr := lcfit.FitAuto(logLike, &model, bounds, alpha, a.cfg.Solver())
	if fitErr != nil {
		if !errors.Is(fitErr, lcfit.ErrFitNoProgress) && !errors.Is(fitErr, lcfit.ErrFitIterationLimit) {
			return nil, fitErr
		}

		a.logger.Warn("auto-fit did not converge", "error", fitErr)
		resp.Error = fitErr.Error()
	}

	resp.Model = model
	resp.BSM = model.ToBSM()
	resp.InflectionT = model.InflectionT()

	return resp, nil
}

func klCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kl file",
		Short: "KL divergence between two log-likelihood profiles, in bits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req klRequest
			if err := readDoc(args[0], cmd.InOrStdin(), &req); err != nil {
				return err
			}

			kl, err := lcfit.KLDivergence(req.LnL1, req.LnL2)
			if err != nil {
				return err
			}

			return a.writeDoc(cmd.OutOrStdout(), klResponse{KL: kl})
		},
	}
}
