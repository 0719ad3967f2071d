// Package cli provides the command-line interface for da-engine
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daengine/daengine/pkg/config"
	"github.com/daengine/daengine/pkg/types"
)

var (
	cfgFile     string
	projectRoot string
	verbosity   string
	version     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "daengine",
	Short: "Ensemble data assimilation engine",
	Long: `da-engine - ensemble Kalman analysis for model states and parameters

da-engine reads ensembles of model states and predictions, assimilates
observations with the EnKF or square-root Kalman schemes, and writes the
analysed ensembles back out. It also provides Gaussian-mixture anamorphosis
for non-Gaussian fields.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("da-engine v%s\n", version)
			return
		}
		// If no subcommand, show help
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	// Initialize the root command explicitly (avoiding init())
	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags.
func initializeRootCommand() {
	cobra.OnInitialize(initViper)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: daengine.config.json)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")

	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	// Add subcommands
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newTransformCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initViper() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(projectRoot)
		viper.SetConfigName("daengine.config")
		viper.SetConfigType("json")
	}

	viper.SetEnvPrefix("DAENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbosity == "debug" {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
}

// Helper functions

func printSuccess(message string) {
	fmt.Printf("%s %s\n", color.GreenString("[da-engine]"), message)
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("[da-engine]"), message)
}

func printInfo(message string) {
	fmt.Printf("%s %s\n", color.CyanString("[da-engine]"), message)
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(projectRoot, config.DefaultFileName)
}

func loadConfig() (*types.EngineConfig, error) {
	manager := config.NewManager()
	cfg, err := manager.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func logLevel(cfg *types.EngineConfig) string {
	if verbosity != "" && verbosity != "info" {
		return verbosity
	}
	if cfg != nil && cfg.Logging != nil && cfg.Logging.Level != "" {
		return string(cfg.Logging.Level)
	}
	return verbosity
}

func logFile(cfg *types.EngineConfig) string {
	if cfg != nil && cfg.Logging != nil {
		return cfg.Logging.File
	}
	return ""
}
