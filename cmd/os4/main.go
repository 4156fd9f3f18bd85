package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"os4/internal/config"
	"os4/internal/logging"
	"os4/internal/rom"
	"os4/internal/system"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dbPath     string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "os4",
	Short: "os4 - HP-41 OS4 shell and key dispatch runtime",
	Long: `os4 runs the OS4 operating system extension on a simulated HP-41:
a shell stack, key dispatch, a buffer store, secondary functions and
semi-merged argument entry, with a demo ROM holding an RPN calculator.

Run without arguments to start the interactive calculator.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The TUI owns the terminal; stderr logging would tear its frames.
		if cmd.Use == "os4" {
			logger = zap.NewNop()
			return nil
		}

		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInteractive,
}

// keysCmd presses keys and prints the display after each
var keysCmd = &cobra.Command{
	Use:   "keys [key...]",
	Short: "Press keys and print the display after each one",
	Long: `Runs each key through the read-key cycle of a fresh system and prints
the key legend and the display. Keys are legends ("ENTER", "LN"), shifted
legends ("^LN" or "E^X") or row/column codes ("15", "-15").

Example:
  os4 keys 1 2 ENTER 3 +
  os4 keys CATALOG 0 1 SST R/S`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKeys,
}

// catalogCmd renders a catalog
var catalogCmd = &cobra.Command{
	Use:   "catalog [n]",
	Short: "Render catalog n (default 1, the function catalog)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalog,
}

// versionCmd prints the API version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the OS4 API version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "os4 API %s\n", system.APIVersion)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "os4.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Snapshot database (overrides store.database_path)")

	catalogCmd.Flags().Bool("raw", false, "Print the markdown without rendering")
	keysCmd.Flags().Bool("save", false, "Save a snapshot after the last key")

	rootCmd.AddCommand(keysCmd, catalogCmd, versionCmd, snapshotsCmd)
}

// loadConfig reads the config file and applies the command line overrides,
// then routes category logging into the CLI logger when verbose.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Store.DatabasePath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	if err := logging.Initialize(cfg.Logging.Options()); err != nil {
		return nil, err
	}
	if verbose && logger != nil {
		logging.SetBase(logger.Named("os4"))
	}
	return cfg, nil
}

// bootSystem loads the config and boots a system with the demo ROM.
func bootSystem(ctx context.Context) (*system.System, *rom.Demo, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	demo := rom.New()
	sys, err := system.Boot(ctx, cfg, demo.ROM)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("system booted",
		zap.String("config", configPath),
		zap.String("db", cfg.Store.DatabasePath),
		zap.Strings("shells", sys.Stack().Names()))
	return sys, demo, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.CloseAll()
}
