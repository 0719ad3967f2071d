package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/daengine/daengine/internal/runner"
	"github.com/daengine/daengine/internal/watch"
	"github.com/daengine/daengine/pkg/logger"
	"github.com/daengine/daengine/pkg/notifier"
	"github.com/daengine/daengine/pkg/types"
)

func newWatchCmd() *cobra.Command {
	var settling time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch cycle inputs and re-run analysis on change",
		Long: `Start da-engine in watch mode. The input files of every configured cycle
are watched; when a file changes, the cycles that depend on it are re-run
once the change has settled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchMode(settling)
		},
	}

	cmd.Flags().DurationVar(&settling, "settling", 500*time.Millisecond, "delay before a change batch is acted on")

	return cmd
}

func runWatchMode(settling time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.CreateLogger(logFile(cfg), logLevel(cfg))

	// Watch mode notifies by default; an explicit config setting wins.
	notify := true
	if cfg.Notifications != nil && cfg.Notifications.Enabled != nil {
		notify = *cfg.Notifications.Enabled
	}
	n := notifier.New(notify, log)
	r := runner.New(cfg, projectRoot, log, n)

	// Map absolute input paths back to the cycles that read them.
	cyclesByInput := make(map[string][]types.Cycle)
	var inputs []string
	for _, cycle := range cfg.Cycles {
		for _, p := range cycle.InputPaths() {
			abs := p
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(projectRoot, abs)
			}
			if abs, err = filepath.Abs(abs); err != nil {
				return err
			}
			cyclesByInput[abs] = append(cyclesByInput[abs], cycle)
			inputs = append(inputs, abs)
		}
	}

	w, err := watch.New(inputs, settling, log)
	if err != nil {
		return err
	}
	defer w.Close()

	printInfo(fmt.Sprintf("watching %d input file(s) for %d cycle(s), Ctrl-C to stop",
		len(cyclesByInput), len(cfg.Cycles)))

	// Analyse everything once up front so the outputs start consistent.
	if err := r.RunAll(ctx); err != nil {
		log.Warn("initial analysis failed", logger.WithField("error", err))
	}

	err = w.Run(ctx, func(changed []string) {
		affected := make(map[string]types.Cycle)
		for _, file := range changed {
			for _, cycle := range cyclesByInput[file] {
				affected[cycle.Name] = cycle
			}
		}
		if len(affected) == 0 {
			return
		}

		var names []string
		var cycles []types.Cycle
		for name, cycle := range affected {
			names = append(names, name)
			cycles = append(cycles, cycle)
		}
		n.NotifyInputsChanged(names)
		log.Info(fmt.Sprintf("inputs changed, re-running %d cycle(s)", len(cycles)))

		if err := r.RunCycles(ctx, cycles); err != nil {
			log.Error("re-analysis failed", logger.WithField("error", err))
		}
	})
	if err != nil && ctx.Err() == nil {
		return err
	}

	printInfo("watch stopped")
	return nil
}
