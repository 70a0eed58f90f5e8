package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const quietConfig = "logging:\n  level: error\n"

// runCLI executes the root command with a config file holding cfg and
// returns what it wrote to stdout.
func runCLI(t *testing.T, cfg, stdin string, args ...string) (string, error) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "lcfit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	var out bytes.Buffer

	root := newRootCommand()
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(io.Discard)

	err := root.Execute()

	return out.String(), err
}

func writeDocFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestMLTFromStdin(t *testing.T) {
	out, err := runCLI(t, quietConfig, "model: {c: 1200, m: 300, r: 1, b: 0.2}\n", "ml-t", "-")
	require.NoError(t, err)

	var resp mlTResponse
	require.NoError(t, yaml.Unmarshal([]byte(out), &resp))
	assert.InDelta(t, 0.3108256237659907, resp.MLT, 1e-12)
}

func TestRescaleAndScaleFactor(t *testing.T) {
	doc := writeDocFile(t, "t: 0.4\nll: -1234.5\nmodel: {c: 1500, m: 1000, r: 1, b: 0.5}\n")

	out, err := runCLI(t, quietConfig, "", "scale-factor", doc)
	require.NoError(t, err)

	var factor scaleFactorResponse
	require.NoError(t, yaml.Unmarshal([]byte(out), &factor))
	assert.Positive(t, factor.ScaleFactor)

	out, err = runCLI(t, quietConfig, "", "rescale", doc)
	require.NoError(t, err)

	var rescaled rescaleResponse
	require.NoError(t, yaml.Unmarshal([]byte(out), &rescaled))
	assert.InDelta(t, 1500*factor.ScaleFactor, rescaled.Model.C, 1e-6)
	assert.InDelta(t, -1234.5, rescaled.Model.LogLike(0.4), 1e-6)
}

func TestFitCommand(t *testing.T) {
	doc := writeDocFile(t, `
points:
  - {t: 0.05, ll: -801.2009318191153}
  - {t: 0.1, ll: -779.5621613221394}
  - {t: 0.3, ll: -750.6540286939465}
  - {t: 0.5, ll: -761.7998130198841}
  - {t: 1.0, ll: -831.2965353924106}
  - {t: 1.5, ll: -898.8962042766323}
model: {c: 1500, m: 1000, r: 1, b: 0.5}
`)

	out, err := runCLI(t, quietConfig, "", "fit", doc)
	require.NoError(t, err)

	var resp fitResponse
	require.NoError(t, yaml.Unmarshal([]byte(out), &resp))

	assert.Empty(t, resp.Error)
	assert.InDelta(t, 1200, resp.Model.C, 1e-3)
	assert.InDelta(t, 300, resp.Model.M, 1e-3)
	assert.InDelta(t, 0.3108256237659907, resp.MLT, 1e-6)
}

func TestEstimateCommand(t *testing.T) {
	doc := writeDocFile(t, `
target:
  bsm: {c: 1200, m: 300, r: 1, b: 0.2}
  offset: 415.88830833596717
ts: [0.1, 0.5, 1.0, 1.5]
model: {c: 1800, m: 400, r: 1, b: 0.5}
`)

	metricsPath := filepath.Join(t.TempDir(), "lcfit.prom")
	cfg := quietConfig + "metrics:\n  enabled: true\n"

	out, err := runCLI(t, cfg, "", "estimate", doc, "--metrics-file", metricsPath)
	require.NoError(t, err)

	var resp estimateResponse
	require.NoError(t, yaml.Unmarshal([]byte(out), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "converged", resp.Outcome)
	assert.InDelta(t, 0.3108256237659907, resp.T, 1e-2)
	assert.Len(t, resp.Ts, 4)
	assert.Positive(t, resp.Diagnostics.MLCalls)

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "lcfit_likelihood_ml_calls_total")
	assert.Contains(t, string(metrics), `lcfit_estimations_total{outcome="converged"} 1`)
}

func TestEstimateCommandToOutputFile(t *testing.T) {
	doc := writeDocFile(t, "target:\n  bsm: {c: 1200, m: 300, r: 1, b: 0.2}\nts: [0.1, 0.5, 1.0]\ntolerance: 0.01\n")
	outPath := filepath.Join(t.TempDir(), "out.yaml")

	out, err := runCLI(t, quietConfig, "", "estimate", doc, "--output", outPath)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var resp estimateResponse
	require.NoError(t, yaml.Unmarshal(data, &resp))
	assert.NotEmpty(t, resp.Outcome)
}

func TestBSM2Command(t *testing.T) {
	doc := writeDocFile(t, `
target:
  bsm2: {c: 1200, m: 300, t0: 0.3, d2: -2000}
  offset: -5000
model: {c: 1500, m: 1000, t0: 0.3, d2: -2000}
alpha: 0
`)

	out, err := runCLI(t, quietConfig, "", "bsm2", doc)
	require.NoError(t, err)

	var resp bsm2Response
	require.NoError(t, yaml.Unmarshal([]byte(out), &resp))

	assert.Empty(t, resp.Error)
	assert.InDelta(t, 1200, resp.Model.C, 1e-5)
	assert.InDelta(t, 300, resp.Model.M, 1e-5)
	assert.InDelta(t, 0.6817786378582247, resp.InflectionT, 1e-6)
	assert.InDelta(t, 0.03179097531403491, resp.BSM.B, 1e-6)
}

func TestKLCommand(t *testing.T) {
	stdin := `
lnl1: [-8.23386308827751, -7.89628369560472, -7.46488078438082, -7.0040373619371]
lnl2: [-8.50881870037115, -7.01490663616462, -6.96466932063068, -7.32206267643069]
`

	out, err := runCLI(t, quietConfig, stdin, "kl", "-")
	require.NoError(t, err)

	var resp klResponse
	require.NoError(t, yaml.Unmarshal([]byte(out), &resp))
	assert.InDelta(t, 0.1806762, resp.KL, 1e-5)
}

func TestCommandErrors(t *testing.T) {
	_, err := runCLI(t, quietConfig, "ts: [0.1, 0.5, 1.0]\n", "estimate", "-")
	require.ErrorIs(t, err, ErrNoTarget)

	ambiguous := "target:\n  bsm: {c: 1200, m: 300, r: 1, b: 0.2}\n  bsm2: {c: 1200, m: 300, t0: 0.3, d2: -2000}\nts: [0.1, 0.5, 1.0]\n"
	_, err = runCLI(t, quietConfig, ambiguous, "estimate", "-")
	require.ErrorIs(t, err, ErrAmbiguousTarget)

	_, err = runCLI(t, quietConfig, "model: {c: 1200, m: 300, r: 1, b: 0.2}\nbogus: 1\n", "ml-t", "-")
	require.Error(t, err, "unknown fields are rejected")

	_, err = runCLI(t, quietConfig, "lnl1: [-1, -2]\nlnl2: [-1]\n", "kl", "-")
	require.Error(t, err)

	_, err = runCLI(t, "fitter:\n  method: bfgs\n", "model: {c: 1200, m: 300, r: 1, b: 0.2}\n", "ml-t", "-")
	require.Error(t, err, "invalid config is rejected")

	_, err = runCLI(t, quietConfig, "", "ml-t", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
