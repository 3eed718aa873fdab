// =============================================================================
// Mineral Statistics ETL - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (like 'run', 'validate') are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (mcsetl)
//   ├── runCmd (mcsetl run)
//   ├── validateCmd (mcsetl validate)
//   └── versionCmd (mcsetl version)
//
// CONFIGURATION:
//   The root command owns the flags every subcommand shares:
//   1. --env-file: dotenv file with credentials and library locations
//   2. --tables: lookup-table YAML replacing the embedded defaults
//   3. --verbose: debug logging
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/mineral-stats-etl/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// envFile holds the path to the dotenv file. Overridden with --env-file.
var envFile string

// tablesFile holds the path to a lookup-table file. Empty uses the embedded
// defaults.
var tablesFile string

// verbose enables debug logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mcsetl",
	Short: "Mineral Statistics ETL - world production tables to a SharePoint workbook",
	Long: `mcsetl downloads the yearly Mineral Commodity Summaries world-data releases
from ScienceBase, normalizes the production tables of both schema vintages
into one (Country, Commodity, Year, Value) table, and uploads it as an Excel
workbook to a SharePoint document library.

Key Features:
  - Release list, allow-lists and name maps kept in a YAML lookup table
  - Legacy per-commodity CSVs and the consolidated current-schema CSV
  - Validation report on the merged table
  - Dry runs that build the workbook without authenticating

Example Usage:
  mcsetl run                          # Fetch, normalize and upload
  mcsetl run --dry-run --output x.xlsx # Build the workbook locally only
  mcsetl run --release 2025           # Process a single release
  mcsetl validate                     # Check settings and lookup tables`,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},

	SilenceUsage: true,
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// ==========================================================================
	// PERSISTENT FLAGS
	// ==========================================================================

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		".env",
		"Path to the dotenv file with credentials (a missing file is ignored)",
	)

	rootCmd.PersistentFlags().StringVar(
		&tablesFile,
		"tables",
		"",
		"Path to a lookup-table YAML file (default: embedded tables)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadConfiguration loads the environment settings and the lookup tables
// named by the persistent flags.
func loadConfiguration(envPath, tablesPath string) (*config.Settings, *config.Tables, error) {
	settings, err := config.LoadSettings(envPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	tables, err := config.LoadTables(tablesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load lookup tables: %w", err)
	}
	return settings, tables, nil
}
