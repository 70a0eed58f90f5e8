package lcfit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".lcfit"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for lcfit settings.
const envPrefix = "LCFIT"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Fitter methods.
const (
	FitterLevenbergMarquardt = "lm"
	FitterNelderMead         = "nelder-mead"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Defaults not carried by DefaultConfig.
const (
	DefaultAutoFitAlpha   = 0.0
	DefaultAutoFitMinT    = 1e-6
	DefaultAutoFitMaxT    = 10.0
	DefaultLogLevel       = "info"
	DefaultLogFormat      = LogFormatText
	DefaultMetricsEnabled = false
	DefaultMetricsNS      = "lcfit"
)

// Config is the file/env configuration of lcfit.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Estimator EstimatorSettings `mapstructure:"estimator"`
	Fitter    FitterSettings    `mapstructure:"fitter"`
	AutoFit   AutoFitSettings   `mapstructure:"autofit"`
	Logging   LoggingSettings   `mapstructure:"logging"`
	Metrics   MetricsSettings   `mapstructure:"metrics"`
}

// EstimatorSettings holds the ML estimator knobs.
type EstimatorSettings struct {
	Tolerance        float64   `mapstructure:"tolerance"`
	MaxIterations    int       `mapstructure:"max_iterations"`
	DefaultStart     []float64 `mapstructure:"default_start"`
	DefaultMaxPoints int       `mapstructure:"default_max_points"`
	BoundaryFloor    float64   `mapstructure:"boundary_floor"`
}

// FitterSettings selects the least-squares fitter.
type FitterSettings struct {
	Method     string `mapstructure:"method"`
	Iterations int    `mapstructure:"iterations"`
}

// AutoFitSettings holds the BSM2 auto-fit knobs.
type AutoFitSettings struct {
	Alpha  float64           `mapstructure:"alpha"`
	Bounds Interval[float64] `mapstructure:"bounds"`
}

// LoggingSettings configures the slog handler.
type LoggingSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsSettings configures the Prometheus counters.
type MetricsSettings struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidMaxIterations indicates the round budget is not positive.
	ErrInvalidMaxIterations = errors.New("estimator.max_iterations must be positive")
	// ErrInvalidDefaultStart indicates the restart seed is unusable.
	ErrInvalidDefaultStart = errors.New("estimator.default_start must hold at least 3 positive branch lengths")
	// ErrInvalidMaxPoints indicates the bracket budget is smaller than the seed.
	ErrInvalidMaxPoints = errors.New("estimator.default_max_points must exceed the seed size")
	// ErrInvalidFitterMethod indicates an unknown fitter.
	ErrInvalidFitterMethod = errors.New("fitter.method must be lm or nelder-mead")
	// ErrInvalidFitterIterations indicates the fitter bound is not positive.
	ErrInvalidFitterIterations = errors.New("fitter.iterations must be positive")
	// ErrInvalidAlpha indicates a negative weighting exponent.
	ErrInvalidAlpha = errors.New("autofit.alpha must be non-negative")
	// ErrInvalidLogFormat indicates an unknown log format.
	ErrInvalidLogFormat = errors.New("logging.format must be text or json")
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path and
// must exist. Otherwise, the config file is searched in CWD and $HOME, and a
// missing file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	def := DefaultConfig()

	viperCfg.SetDefault("estimator.tolerance", def.Tolerance)
	viperCfg.SetDefault("estimator.max_iterations", def.MaxIterations)
	viperCfg.SetDefault("estimator.default_start", def.DefaultStart)
	viperCfg.SetDefault("estimator.default_max_points", def.DefaultMaxPoints)
	viperCfg.SetDefault("estimator.boundary_floor", def.BoundaryFloor)

	viperCfg.SetDefault("fitter.method", FitterLevenbergMarquardt)
	viperCfg.SetDefault("fitter.iterations", def.FitIterations)

	viperCfg.SetDefault("autofit.alpha", DefaultAutoFitAlpha)
	viperCfg.SetDefault("autofit.bounds.min", DefaultAutoFitMinT)
	viperCfg.SetDefault("autofit.bounds.max", DefaultAutoFitMaxT)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("metrics.enabled", DefaultMetricsEnabled)
	viperCfg.SetDefault("metrics.namespace", DefaultMetricsNS)
}

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	estimatorErr := c.validateEstimator()
	if estimatorErr != nil {
		return estimatorErr
	}

	switch c.Fitter.Method {
	case FitterLevenbergMarquardt, FitterNelderMead:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidFitterMethod, c.Fitter.Method)
	}

	if c.Fitter.Iterations <= 0 {
		return ErrInvalidFitterIterations
	}

	if c.AutoFit.Alpha < 0 {
		return ErrInvalidAlpha
	}

	if !c.AutoFit.Bounds.Valid() {
		return fmt.Errorf("%w: autofit.bounds [%g, %g]", ErrInvalidInterval, c.AutoFit.Bounds.Min, c.AutoFit.Bounds.Max)
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}

	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return ErrInvalidLogFormat
	}

	return nil
}

func (c *Config) validateEstimator() error {
	e := c.Estimator

	if e.Tolerance < 0 {
		return ErrInvalidTolerance
	}

	if e.MaxIterations <= 0 {
		return ErrInvalidMaxIterations
	}

	if len(e.DefaultStart) < 3 {
		return ErrInvalidDefaultStart
	}

	for _, t := range e.DefaultStart {
		if t <= 0 {
			return ErrInvalidDefaultStart
		}
	}

	if e.DefaultMaxPoints <= len(e.DefaultStart) {
		return ErrInvalidMaxPoints
	}

	return nil
}

// EstimatorConfig converts the settings to an EstimatorConfig. Logger, Counters
// and ProgressChan are left for the caller to set.
func (c *Config) EstimatorConfig() EstimatorConfig {
	config := DefaultConfig()

	config.Tolerance = c.Estimator.Tolerance
	config.MaxIterations = c.Estimator.MaxIterations
	config.DefaultStart = append([]float64(nil), c.Estimator.DefaultStart...)
	config.DefaultMaxPoints = c.Estimator.DefaultMaxPoints
	config.BoundaryFloor = c.Estimator.BoundaryFloor
	config.FitIterations = c.Fitter.Iterations
	config.Fitter = c.newFitter()

	return config
}

// Solver returns the configured BSM2 weighted solver.
func (c *Config) Solver() WeightedSolver {
	if c.Fitter.Method == FitterNelderMead {
		return NelderMead{MaxIterations: c.Fitter.Iterations}
	}

	return LevenbergMarquardt{MaxIterations: c.Fitter.Iterations}
}

func (c *Config) newFitter() Fitter {
	if c.Fitter.Method == FitterNelderMead {
		return NelderMead{MaxIterations: c.Fitter.Iterations}
	}

	return LevenbergMarquardt{MaxIterations: c.Fitter.Iterations}
}

// NewLogger builds the configured slog logger writing to w.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	if c.Logging.Format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}

	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("logging.level: %w", err)
	}

	return level, nil
}
