// =============================================================================
// CFE XML Extractor - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand is
// attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (cfe)
//   ├── extractCmd   (cfe extract)
//   ├── reconcileCmd (cfe reconcile)
//   └── versionCmd   (cfe version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads config.yaml (or --config), .env and environment overrides
//   2. Initializes slog, switching to debug with --verbose
//   3. Tags the command context with a fresh run id
//
// EXIT CODES:
//   0 - success
//   1 - any failure
//   2 - the owning company is not in the party directory
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/cfe-xml-extractor/internal/config"
	"github.com/ginjaninja78/cfe-xml-extractor/internal/directory"
	"github.com/ginjaninja78/cfe-xml-extractor/pkg/logger"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// appConfig is loaded once in PersistentPreRunE.
var appConfig *config.MainConfig

// runID identifies the current invocation in logs and output names.
var runID string

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cfe",
	Short: "CFE XML Extractor - Flatten e-invoice XML batches into spreadsheets",
	Long: `CFE XML Extractor reads a zip archive (or folder) of Uruguayan electronic
fiscal documents (CFE), extracts one row per invoice line regardless of
namespace prefixes, and writes the consolidated dataset as an XLSX workbook.

It can also reconcile the counterparties found in the batch against the
party directory of your ERP (Odoo, its PostgreSQL database, or a file
export) and list the ones that are not registered yet.

Example Usage:
  cfe extract comprobantes.zip                  # Write ReporteXML_<rut>_<from>_<to>.xlsx
  cfe extract ./xml --out reporte.xlsx          # Process a folder
  cfe reconcile comprobantes.zip --company 2199 # List unknown counterparties`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadMainConfig(cfgFile)
		if err != nil {
			return err
		}
		appConfig = cfg

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger.Init(&logger.Config{Level: level, Format: cfg.LogFormat})

		ctx, id := logger.NewRun(cmd.Context())
		runID = id
		cmd.SetContext(ctx)

		logger.Debug(ctx, "configuration loaded", "config", cfgFile, "workers", cfg.Workers)
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
// Ctrl-C cancels the running batch.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}
	if errors.Is(err, directory.ErrCompanyNotFound) {
		fmt.Fprintf(os.Stderr, "Company not found in the party directory: %v\n", err)
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// --config flag: a missing file means built-in defaults.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	// --verbose flag: forces debug logging.
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}
