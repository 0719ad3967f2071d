// Package types provides core types and configurations for da-engine
package types

import (
	"fmt"
)

// Method represents supported analysis schemes
type Method string

const (
	MethodEnKF   Method = "enkf"
	MethodSqrtKF Method = "sqrtkf"
)

// ParseMethod validates a method name
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodEnKF, MethodSqrtKF:
		return Method(s), nil
	default:
		return "", fmt.Errorf("unsupported method: %q (supported: enkf, sqrtkf)", s)
	}
}

// ErrorModelKind represents how measurement errors are obtained
type ErrorModelKind string

const (
	ErrorModelEnsemble   ErrorModelKind = "ensemble"
	ErrorModelCovariance ErrorModelKind = "covariance"
	ErrorModelStddev     ErrorModelKind = "stddev"
	ErrorModelPercent    ErrorModelKind = "percent"
)

// RunStatus represents the current state of an analysis run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// TruncationConfig controls how many singular modes the analysis retains.
// Exactly one of EnergyPercent or Threshold may be set; when neither is set
// the engine falls back to the default energy percent.
type TruncationConfig struct {
	// EnergyPercent keeps modes whose share of the squared singular value
	// spectrum is at least this percentage.
	EnergyPercent *float64 `json:"energyPercent,omitempty" yaml:"energyPercent,omitempty"`
	// Threshold keeps modes whose squared singular value is at least this.
	Threshold *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// ErrorModel describes the measurement error source for cycles that do not
// carry an explicit error ensemble.
type ErrorModel struct {
	Kind ErrorModelKind `json:"kind" yaml:"kind"`
	// Stddev is the absolute error standard deviation (kind "stddev").
	Stddev float64 `json:"stddev,omitempty" yaml:"stddev,omitempty"`
	// Percent scales the per-row spread of the predictions (kind "percent").
	Percent float64 `json:"percent,omitempty" yaml:"percent,omitempty"`
	// CovariancePath points at an m-by-m covariance matrix (kind "covariance").
	CovariancePath string `json:"covariancePath,omitempty" yaml:"covariancePath,omitempty"`
}

// Cycle represents a single assimilation cycle: one set of input matrices
// and the output path the analysed ensemble is written to.
type Cycle struct {
	Name                      string `json:"name" yaml:"name"`
	StatePath                 string `json:"statePath" yaml:"statePath"`
	PredictionsPath           string `json:"predictionsPath" yaml:"predictionsPath"`
	ObservationsPath          string `json:"observationsPath,omitempty" yaml:"observationsPath,omitempty"`
	PerturbedObservationsPath string `json:"perturbedObservationsPath,omitempty" yaml:"perturbedObservationsPath,omitempty"`
	ErrorEnsemblePath         string `json:"errorEnsemblePath,omitempty" yaml:"errorEnsemblePath,omitempty"`
	OutputPath                string `json:"outputPath" yaml:"outputPath"`
}

// InputPaths returns the cycle's input files, for watching and validation.
func (c *Cycle) InputPaths() []string {
	paths := []string{c.StatePath, c.PredictionsPath}
	for _, p := range []string{c.ObservationsPath, c.PerturbedObservationsPath, c.ErrorEnsemblePath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// SchedulingConfig controls how cycles are executed
type SchedulingConfig struct {
	// Parallelization caps the number of cycles analysed concurrently.
	Parallelization int `json:"parallelization" yaml:"parallelization"`
}

// NotificationConfig controls desktop notifications
type NotificationConfig struct {
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level LogLevel `json:"level,omitempty" yaml:"level,omitempty"`
	File  string   `json:"file,omitempty" yaml:"file,omitempty"`
}

// EngineConfig is the root configuration for da-engine
type EngineConfig struct {
	Version       string              `json:"version" yaml:"version"`
	Method        Method              `json:"method" yaml:"method"`
	Seed          uint64              `json:"seed,omitempty" yaml:"seed,omitempty"`
	Inflation     float64             `json:"inflation,omitempty" yaml:"inflation,omitempty"`
	Truncation    *TruncationConfig   `json:"truncation,omitempty" yaml:"truncation,omitempty"`
	ErrorModel    *ErrorModel         `json:"errorModel,omitempty" yaml:"errorModel,omitempty"`
	Cycles        []Cycle             `json:"cycles" yaml:"cycles"`
	Scheduling    *SchedulingConfig   `json:"scheduling,omitempty" yaml:"scheduling,omitempty"`
	Notifications *NotificationConfig `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Logging       *LoggingConfig      `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// Cycle returns the named cycle, or an error listing what exists.
func (c *EngineConfig) Cycle(name string) (*Cycle, error) {
	names := make([]string, 0, len(c.Cycles))
	for i := range c.Cycles {
		if c.Cycles[i].Name == name {
			return &c.Cycles[i], nil
		}
		names = append(names, c.Cycles[i].Name)
	}
	return nil, fmt.Errorf("unknown cycle %q (configured: %v)", name, names)
}

// NotificationsEnabled reports whether desktop notifications are on.
// Default is off; watch mode flips the default on.
func (c *EngineConfig) NotificationsEnabled() bool {
	if c.Notifications == nil || c.Notifications.Enabled == nil {
		return false
	}
	return *c.Notifications.Enabled
}
