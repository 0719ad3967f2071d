// Package state provides persistent run records for da-engine
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daengine/daengine/pkg/assim"
	"github.com/daengine/daengine/pkg/logger"
	"github.com/daengine/daengine/pkg/types"
)

// RunRecord is the persistent record of one analysis run.
type RunRecord struct {
	RunID         string          `json:"runId"`
	Cycle         string          `json:"cycle"`
	Method        types.Method    `json:"method"`
	Status        types.RunStatus `json:"status"`
	StartedAt     time.Time       `json:"startedAt"`
	Duration      time.Duration   `json:"duration,omitempty"`
	StateDim      int             `json:"stateDim,omitempty"`
	Observations  int             `json:"observations,omitempty"`
	EnsembleSize  int             `json:"ensembleSize,omitempty"`
	RetainedModes int             `json:"retainedModes,omitempty"`
	EnergyShare   float64         `json:"energyShare,omitempty"`
	OutputPath    string          `json:"outputPath,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
}

// Manager persists run records as JSON files under <root>/.daengine/runs.
type Manager struct {
	runDir string
	logger logger.Logger

	mu      sync.RWMutex
	records map[string]*RunRecord
}

// NewManager creates a run record manager rooted at projectRoot.
func NewManager(projectRoot string, log logger.Logger) *Manager {
	runDir := filepath.Join(projectRoot, ".daengine", "runs")

	if err := os.MkdirAll(runDir, 0o755); err != nil && log != nil {
		log.Error("failed to create run directory", logger.WithField("error", err))
	}

	return &Manager{
		runDir:  runDir,
		logger:  log,
		records: make(map[string]*RunRecord),
	}
}

// StartRun creates a record for a new run and persists it.
func (m *Manager) StartRun(cycle string, method types.Method) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &RunRecord{
		RunID:     uuid.NewString(),
		Cycle:     cycle,
		Method:    method,
		Status:    types.RunStatusRunning,
		StartedAt: time.Now(),
	}

	if err := m.saveRecord(rec); err != nil {
		return nil, fmt.Errorf("failed to save run record: %w", err)
	}

	m.records[rec.RunID] = rec
	return rec, nil
}

// CompleteRun marks a run as succeeded and stores its diagnostics.
func (m *Manager) CompleteRun(runID string, diag assim.Diagnostics, n, obs, size int, outputPath string) error {
	return m.update(runID, func(rec *RunRecord) {
		rec.Status = types.RunStatusSucceeded
		rec.Duration = time.Since(rec.StartedAt)
		rec.StateDim = n
		rec.Observations = obs
		rec.EnsembleSize = size
		rec.RetainedModes = diag.RetainedModes
		rec.EnergyShare = diag.EnergyShare
		rec.OutputPath = outputPath
		rec.LastError = ""
	})
}

// FailRun marks a run as failed.
func (m *Manager) FailRun(runID string, cause error) error {
	return m.update(runID, func(rec *RunRecord) {
		rec.Status = types.RunStatusFailed
		rec.Duration = time.Since(rec.StartedAt)
		rec.LastError = cause.Error()
	})
}

func (m *Manager) update(runID string, apply func(*RunRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[runID]
	if !ok {
		var err error
		rec, err = m.loadRecord(runID)
		if err != nil {
			return fmt.Errorf("run record not found: %s", runID)
		}
		m.records[runID] = rec
	}

	apply(rec)
	return m.saveRecord(rec)
}

// ReadRun reads a run record by ID.
func (m *Manager) ReadRun(runID string) (*RunRecord, error) {
	m.mu.RLock()
	if rec, ok := m.records[runID]; ok {
		m.mu.RUnlock()
		return rec, nil
	}
	m.mu.RUnlock()

	return m.loadRecord(runID)
}

// ListRuns returns all records, newest first. Corrupt files are skipped
// with a warning rather than failing the listing.
func (m *Manager) ListRuns() ([]*RunRecord, error) {
	entries, err := os.ReadDir(m.runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var records []*RunRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		rec, err := m.loadRecord(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			if m.logger != nil {
				m.logger.Warn("skipping unreadable run record",
					logger.WithField("file", entry.Name()),
					logger.WithField("error", err))
			}
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// CleanRuns removes all run records and returns how many were deleted.
func (m *Manager) CleanRuns() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list runs: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(m.runDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}

	m.records = make(map[string]*RunRecord)
	return removed, nil
}

func (m *Manager) recordPath(runID string) string {
	return filepath.Join(m.runDir, runID+".json")
}

func (m *Manager) saveRecord(rec *RunRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.recordPath(rec.RunID), data, 0o644)
}

func (m *Manager) loadRecord(runID string) (*RunRecord, error) {
	data, err := os.ReadFile(m.recordPath(runID))
	if err != nil {
		return nil, err
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt run record %s: %w", runID, err)
	}
	return &rec, nil
}
