package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daengine/daengine/internal/runner"
	"github.com/daengine/daengine/pkg/logger"
	"github.com/daengine/daengine/pkg/notifier"
	"github.com/daengine/daengine/pkg/types"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [cycle]",
		Short: "Run the configured assimilation cycles",
		Long: `Run assimilation for every configured cycle, or for a single cycle when a
name is given. Each cycle reads its input ensembles, computes the analysed
ensemble and writes it to the cycle's output path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cycleName := ""
			if len(args) > 0 {
				cycleName = args[0]
			}
			return runAnalyze(cycleName)
		},
	}

	return cmd
}

func runAnalyze(cycleName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.CreateLogger(logFile(cfg), logLevel(cfg))
	n := notifier.New(cfg.NotificationsEnabled(), log)
	r := runner.New(cfg, projectRoot, log, n)

	cycles := cfg.Cycles
	if cycleName != "" {
		cycle, err := cfg.Cycle(cycleName)
		if err != nil {
			return err
		}
		cycles = []types.Cycle{*cycle}
	}

	log.Info(fmt.Sprintf("running %d assimilation cycle(s)", len(cycles)),
		logger.WithField("method", string(cfg.Method)))

	if err := r.RunCycles(ctx, cycles); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	printSuccess(fmt.Sprintf("%d cycle(s) analysed", len(cycles)))
	return nil
}
