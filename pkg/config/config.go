// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/daengine/daengine/pkg/assim"
	"github.com/daengine/daengine/pkg/types"
)

// DefaultFileName is the config file looked up when none is given.
const DefaultFileName = "daengine.config.json"

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadConfig loads and validates a configuration file. JSON is tried first,
// then YAML.
func (m *Manager) LoadConfig(path string) (*types.EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg types.EngineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		var yerr error
		cfg = types.EngineConfig{}
		if yerr = yaml.Unmarshal(data, &cfg); yerr != nil {
			return nil, fmt.Errorf("failed to parse config as JSON (%v) or YAML (%v)", err, yerr)
		}
	}

	if err := m.ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(cfg *types.EngineConfig) error {
	if cfg.Version != "1.0" {
		return fmt.Errorf("unsupported config version: %q", cfg.Version)
	}

	if _, err := types.ParseMethod(string(cfg.Method)); err != nil {
		return err
	}

	if cfg.Inflation < 0 {
		return fmt.Errorf("inflation must be non-negative, got %g", cfg.Inflation)
	}

	if t := cfg.Truncation; t != nil {
		if t.EnergyPercent != nil && t.Threshold != nil {
			return fmt.Errorf("truncation: energyPercent and threshold are mutually exclusive")
		}
		if t.EnergyPercent != nil && (*t.EnergyPercent <= 0 || *t.EnergyPercent > 100) {
			return fmt.Errorf("truncation: energyPercent must be in (0, 100], got %g", *t.EnergyPercent)
		}
		if t.Threshold != nil && *t.Threshold <= 0 {
			return fmt.Errorf("truncation: threshold must be positive, got %g", *t.Threshold)
		}
	}

	if em := cfg.ErrorModel; em != nil {
		if err := m.validateErrorModel(em); err != nil {
			return fmt.Errorf("errorModel: %w", err)
		}
	}

	if len(cfg.Cycles) == 0 {
		return fmt.Errorf("no cycles defined")
	}
	names := make(map[string]bool)
	for i := range cfg.Cycles {
		c := &cfg.Cycles[i]
		if c.Name == "" {
			return fmt.Errorf("cycle %d: name is required", i)
		}
		if names[c.Name] {
			return fmt.Errorf("duplicate cycle name: %s", c.Name)
		}
		names[c.Name] = true
		if err := m.validateCycle(c, cfg); err != nil {
			return fmt.Errorf("cycle %q: %w", c.Name, err)
		}
	}

	if s := cfg.Scheduling; s != nil && s.Parallelization < 0 {
		return fmt.Errorf("scheduling: parallelization must be non-negative")
	}

	return nil
}

func (m *Manager) validateErrorModel(em *types.ErrorModel) error {
	switch em.Kind {
	case types.ErrorModelStddev:
		if em.Stddev <= 0 {
			return fmt.Errorf("kind stddev requires a positive stddev")
		}
	case types.ErrorModelPercent:
		if em.Percent <= 0 {
			return fmt.Errorf("kind percent requires a positive percent")
		}
	case types.ErrorModelCovariance:
		if em.CovariancePath == "" {
			return fmt.Errorf("kind covariance requires covariancePath")
		}
	case types.ErrorModelEnsemble:
		// The ensemble path lives on the cycle.
	default:
		return fmt.Errorf("unknown kind: %q", em.Kind)
	}
	return nil
}

func (m *Manager) validateCycle(c *types.Cycle, cfg *types.EngineConfig) error {
	if c.StatePath == "" {
		return fmt.Errorf("statePath is required")
	}
	if c.PredictionsPath == "" {
		return fmt.Errorf("predictionsPath is required")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("outputPath is required")
	}
	if c.ObservationsPath == "" && c.PerturbedObservationsPath == "" {
		return fmt.Errorf("observationsPath or perturbedObservationsPath is required")
	}
	if cfg.ErrorModel != nil && cfg.ErrorModel.Kind == types.ErrorModelEnsemble && c.ErrorEnsemblePath == "" {
		return fmt.Errorf("errorEnsemblePath is required by the ensemble error model")
	}
	return nil
}

// RenderDefault returns the default configuration with the given method.
func RenderDefault(method string) (*types.EngineConfig, error) {
	m, err := types.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	cfg.Method = m
	return cfg, nil
}

// Default returns a default configuration with a single example cycle.
func Default() *types.EngineConfig {
	enabled := false
	energyPercent := assim.DefaultTruncationPercent

	return &types.EngineConfig{
		Version:   "1.0",
		Method:    types.MethodEnKF,
		Seed:      1,
		Inflation: 1.0,
		Truncation: &types.TruncationConfig{
			EnergyPercent: &energyPercent,
		},
		ErrorModel: &types.ErrorModel{
			Kind:    types.ErrorModelPercent,
			Percent: 0.05,
		},
		Cycles: []types.Cycle{
			{
				Name:             "cycle-1",
				StatePath:        "inputs/state.csv",
				PredictionsPath:  "inputs/predictions.csv",
				ObservationsPath: "inputs/observations.csv",
				OutputPath:       "outputs/analysis.csv",
			},
		},
		Scheduling: &types.SchedulingConfig{
			Parallelization: 2,
		},
		Notifications: &types.NotificationConfig{
			Enabled: &enabled,
		},
		Logging: &types.LoggingConfig{
			Level: types.LogLevelInfo,
		},
	}
}
