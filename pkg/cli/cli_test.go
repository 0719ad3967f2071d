package cli

import (
	"path/filepath"
	"testing"

	"github.com/daengine/daengine/pkg/config"
	"github.com/daengine/daengine/pkg/types"
)

func useProjectRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	oldRoot, oldCfg := projectRoot, cfgFile
	projectRoot, cfgFile = root, ""
	t.Cleanup(func() {
		projectRoot, cfgFile = oldRoot, oldCfg
	})
	return root
}

func TestRunInit(t *testing.T) {
	root := useProjectRoot(t)

	if err := runInit("enkf", false); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	path := filepath.Join(root, config.DefaultFileName)
	cfg, err := config.NewManager().LoadConfig(path)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Method != types.MethodEnKF {
		t.Errorf("expected method enkf, got %s", cfg.Method)
	}
}

func TestRunInitRefusesOverwrite(t *testing.T) {
	useProjectRoot(t)

	if err := runInit("enkf", false); err != nil {
		t.Fatalf("first runInit failed: %v", err)
	}
	if err := runInit("enkf", false); err == nil {
		t.Error("expected an error when the config already exists")
	}
	if err := runInit("sqrtkf", true); err != nil {
		t.Errorf("runInit with force should overwrite: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Method != types.MethodSqrtKF {
		t.Errorf("expected the forced init to switch methods, got %s", cfg.Method)
	}
}

func TestRunInitUnknownMethod(t *testing.T) {
	useProjectRoot(t)

	if err := runInit("3dvar", false); err == nil {
		t.Error("expected an error for an unknown method")
	}
}

func TestGetConfigPath(t *testing.T) {
	root := useProjectRoot(t)

	if got, want := getConfigPath(), filepath.Join(root, config.DefaultFileName); got != want {
		t.Errorf("getConfigPath() = %q, want %q", got, want)
	}

	cfgFile = "/tmp/custom.json"
	if got := getConfigPath(); got != "/tmp/custom.json" {
		t.Errorf("getConfigPath() with --config = %q", got)
	}
}

func TestLogLevel(t *testing.T) {
	oldVerbosity := verbosity
	t.Cleanup(func() { verbosity = oldVerbosity })

	cfg := &types.EngineConfig{Logging: &types.LoggingConfig{Level: types.LogLevelDebug}}

	verbosity = "info"
	if got := logLevel(cfg); got != "debug" {
		t.Errorf("config level should win over the default verbosity, got %q", got)
	}

	verbosity = "error"
	if got := logLevel(cfg); got != "error" {
		t.Errorf("an explicit verbosity should win, got %q", got)
	}

	verbosity = "info"
	if got := logLevel(nil); got != "info" {
		t.Errorf("expected the default verbosity, got %q", got)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	useProjectRoot(t)

	if _, err := loadConfig(); err == nil {
		t.Error("expected an error when no config exists")
	}
}
