// =============================================================================
// Mineral Statistics ETL - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks the configuration
// without touching the network.
//
// COMMAND USAGE:
//   mcsetl validate [--strict]
//
// CHECKS:
//   1. The lookup tables parse and list at least one release
//   2. Keys defined more than once in a lookup map (last definition wins)
//   3. Allow-list entries without a display-name mapping
//   4. Settings the upload step needs but that are empty
//
// Findings 2 to 4 are warnings. --strict turns them into a failure. Country
// keys carrying spaces or non-breaking spaces are listed for reference only:
// legacy country names are matched without trimming.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// strict makes any finding fail the command.
var strict bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check settings and lookup tables without processing",
	Long: `The validate command loads the environment settings and lookup tables and
reports duplicate lookup keys, allow-list entries that have no display-name
mapping and settings that the upload step requires but that are empty.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return executeValidate(cmd.OutOrStdout(), envFile, tablesFile, strict)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(
		&strict,
		"strict",
		false,
		"Fail when any warning is found",
	)
}

// executeValidate prints the configuration report to w.
func executeValidate(w io.Writer, envPath, tablesPath string, strictMode bool) error {
	settings, tables, err := loadConfiguration(envPath, tablesPath)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "=== Configuration Check ===")
	source := tablesPath
	if source == "" {
		source = "(embedded)"
	}
	fmt.Fprintf(w, "Lookup tables:   %s\n", source)
	fmt.Fprintf(w, "Releases:        %d\n", len(tables.Releases))
	for _, r := range tables.Releases {
		fmt.Fprintf(w, "  %s\n", r)
	}
	fmt.Fprintf(w, "Legacy years:    %s\n", joinInts(tables.Legacy.Years))
	fmt.Fprintf(w, "Current years:   %s\n", joinInts(tables.Current.Years))
	fmt.Fprintf(w, "Legacy files:    %d\n", len(tables.Legacy.Files))
	fmt.Fprintf(w, "Countries:       %d\n", tables.Countries.Len())
	fmt.Fprintf(w, "Output file:     %s\n", tables.OutputFileName)
	printSection(w, "Country keys matched with their spacing", spacedKeys(tables.Countries.Keys()))

	findings := 0
	findings += printSection(w, "Duplicate lookup keys", tables.Duplicates())
	findings += printSection(w, "Entries without a display name", tables.Unmapped())
	findings += printSection(w, "Missing settings", settings.Missing())

	if findings == 0 {
		fmt.Fprintln(w, "\nConfiguration is valid.")
		return nil
	}
	fmt.Fprintf(w, "\n%d warning(s).\n", findings)
	if strictMode {
		return fmt.Errorf("configuration has %d warning(s)", findings)
	}
	return nil
}

func printSection(w io.Writer, title string, lines []string) int {
	if len(lines) == 0 {
		return 0
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, l := range lines {
		fmt.Fprintf(w, "  - %s\n", l)
	}
	return len(lines)
}

// spacedKeys quotes the keys that have surrounding or non-breaking spaces.
func spacedKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		if k != strings.TrimSpace(k) || strings.ContainsRune(k, '\u00a0') {
			out = append(out, fmt.Sprintf("%q", k))
		}
	}
	return out
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
