package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daengine/daengine/pkg/config"
)

func newInitCmd() *cobra.Command {
	var force bool
	var method string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new da-engine configuration",
		Long: `Initialize a new da-engine configuration file in the project root.
The generated file documents a single assimilation cycle; edit the input
paths and error model to match your ensembles.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(method, force)
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", "enkf", "analysis method (enkf, sqrtkf)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

func runInit(method string, force bool) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists. Use --force to overwrite")
	}

	cfg, err := config.RenderDefault(method)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printSuccess(fmt.Sprintf("Created configuration at %s", configPath))
	printInfo("Edit the cycle input paths and the error model before running analyze")

	return nil
}
