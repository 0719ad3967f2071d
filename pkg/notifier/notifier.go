// Package notifier provides run notification functionality
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/daengine/daengine/pkg/logger"
)

// RunNotifier sends desktop notifications about analysis runs.
type RunNotifier struct {
	enabled bool
	logger  logger.Logger
}

// New creates a new run notifier
func New(enabled bool, log logger.Logger) *RunNotifier {
	return &RunNotifier{
		enabled: enabled,
		logger:  log,
	}
}

// NotifyRunSuccess notifies that an analysis run completed.
func (n *RunNotifier) NotifyRunSuccess(cycle string, duration time.Duration) {
	if !n.enabled {
		return
	}
	n.send("✅ Analysis Complete", fmt.Sprintf("%s analysed in %s", cycle, formatDuration(duration)))
}

// NotifyRunFailure notifies that an analysis run failed.
func (n *RunNotifier) NotifyRunFailure(cycle string, err error) {
	if !n.enabled {
		return
	}
	n.send("❌ Analysis Failed", fmt.Sprintf("%s: %v", cycle, err))
}

// NotifyInputsChanged notifies that watch mode picked up input changes.
func (n *RunNotifier) NotifyInputsChanged(cycles []string) {
	if !n.enabled || len(cycles) == 0 {
		return
	}
	n.send("🔁 Inputs Changed", fmt.Sprintf("re-running %d cycle(s)", len(cycles)))
}

func (n *RunNotifier) send(title, message string) {
	// beeep abstracts the platform notification mechanisms.
	if err := beeep.Notify(title, message, ""); err != nil {
		if n.logger != nil {
			n.logger.Debug("Failed to send notification", logger.WithField("error", err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
