package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daengine/daengine/internal/state"
	"github.com/daengine/daengine/pkg/logger"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				printError(fmt.Sprintf("Configuration invalid: %v", err))
				return err
			}
			printSuccess(fmt.Sprintf("Configuration valid: %d cycle(s), method %s",
				len(cfg.Cycles), cfg.Method))
			return nil
		},
	}
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect analysis run records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded analysis runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Delete all run records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsClean()
		},
	})

	return cmd
}

func stateManager() *state.Manager {
	return state.NewManager(projectRoot, logger.CreateLogger("", verbosity))
}

func runRunsList() error {
	records, err := stateManager().ListRuns()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		printInfo("No runs recorded")
		return nil
	}

	fmt.Printf("%-36s  %-16s  %-8s  %-10s  %s\n", "RUN ID", "CYCLE", "METHOD", "STATUS", "STARTED")
	for _, rec := range records {
		fmt.Printf("%-36s  %-16s  %-8s  %-10s  %s\n",
			rec.RunID, rec.Cycle, rec.Method, rec.Status,
			rec.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runRunsShow(runID string) error {
	rec, err := stateManager().ReadRun(runID)
	if err != nil {
		return fmt.Errorf("failed to read run %s: %w", runID, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runRunsClean() error {
	removed, err := stateManager().CleanRuns()
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Removed %d run record(s)", removed))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("da-engine v%s\n", version)
		},
	}
}
