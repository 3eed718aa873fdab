// =============================================================================
// Mineral Statistics ETL - Run Command
// =============================================================================
//
// This file defines the 'run' command, which executes the whole job.
//
// COMMAND USAGE:
//   mcsetl run [flags]
//
// FLAGS:
//   --dry-run      : Build the workbook but skip authentication and upload
//   --output       : Also write the workbook to this local file
//   --archive-dir  : Move a local file about to be overwritten here first
//   --summary-dir  : Write a run summary log to this directory
//   --release      : Process only this release year (repeatable)
//
// PROCESSING PIPELINE:
//   1. Load settings and lookup tables
//   2. Fetch, normalize, merge, validate and encode (internal/pipeline)
//   3. Save the local copy, if requested
//   4. Authenticate
//   5. Upload the workbook
//   6. Print the summary
//
// EXIT STATUS:
//   Non-zero when configuration cannot be loaded, a release cannot be
//   fetched, the merged table fails validation, authentication fails or the
//   upload is rejected.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/mineral-stats-etl/internal/auth"
	"github.com/ginjaninja78/mineral-stats-etl/internal/logging"
	"github.com/ginjaninja78/mineral-stats-etl/internal/pipeline"
	"github.com/ginjaninja78/mineral-stats-etl/internal/sciencebase"
	"github.com/ginjaninja78/mineral-stats-etl/internal/sharepoint"
	"github.com/ginjaninja78/mineral-stats-etl/internal/validation"
	"github.com/ginjaninja78/mineral-stats-etl/pkg/utils"
)

// errInvalidTable is returned when the merged table fails validation.
var errInvalidTable = errors.New("merged table failed validation, upload refused")

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// runOptions collects everything a run depends on.
type runOptions struct {
	EnvFile    string
	TablesFile string
	Verbose    bool
	DryRun     bool
	Output     string
	ArchiveDir string
	SummaryDir string
	Releases   []int
}

var runFlags runOptions

// =============================================================================
// RUN COMMAND DEFINITION
// =============================================================================

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the releases, build the production table and upload it",
	Long: `The run command downloads the world-data archive of every configured release,
normalizes the production tables, merges them into one table and uploads the
resulting workbook to the configured document library.

A release that cannot be fetched aborts the run. A CSV member that cannot be
used is skipped with a warning and processing continues.

With --dry-run the workbook is built (and written with --output) but no token
is requested and nothing is uploaded.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		opts := runFlags
		opts.EnvFile = envFile
		opts.TablesFile = tablesFile
		opts.Verbose = verbose
		return executeRun(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(
		&runFlags.DryRun,
		"dry-run",
		false,
		"Build the workbook but skip authentication and upload",
	)

	runCmd.Flags().StringVar(
		&runFlags.Output,
		"output",
		"",
		"Also write the workbook to this local file",
	)

	runCmd.Flags().StringVar(
		&runFlags.ArchiveDir,
		"archive-dir",
		"",
		"Move an existing --output file here before overwriting it",
	)

	runCmd.Flags().StringVar(
		&runFlags.SummaryDir,
		"summary-dir",
		"",
		"Write a run summary log to this directory",
	)

	runCmd.Flags().IntSliceVar(
		&runFlags.Releases,
		"release",
		nil,
		"Process only this release year (repeatable)",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// executeRun runs the job. Progress goes to the log on stderr, the final
// summary to stdout.
func executeRun(ctx context.Context, opts runOptions, stdout, stderr io.Writer) error {
	startTime := time.Now()
	runID := uuid.New().String()
	log := logging.With(logging.New(stderr, opts.Verbose), "run", runID)

	record := utils.RunSummary{RunID: runID, StartTime: startTime}
	defer func() {
		if opts.SummaryDir == "" {
			return
		}
		record.EndTime = time.Now()
		if path, err := utils.WriteSummaryLog(record, opts.SummaryDir); err != nil {
			log.Warn("Failed to write run summary: %v", err)
		} else {
			log.Info("Run summary written to %s", path)
		}
	}()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	settings, tables, err := loadConfiguration(opts.EnvFile, opts.TablesFile)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: BUILD THE TABLE
	// =========================================================================

	client := sciencebase.NewClient(settings.ScienceBaseURL, log)
	p := pipeline.New(tables, client, log)
	p.SetRunID(runID)
	if err := p.Select(opts.Releases); err != nil {
		return err
	}

	summary, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	fillRecord(&record, summary)

	if !summary.Report.IsValid {
		log.Error("Validation failed:\n%s", validation.FormatIssues(summary.Report.Issues, 20))
	} else if summary.Report.WarningCount > 0 {
		log.Warn("Validation warnings:\n%s", validation.FormatIssues(summary.Report.Issues, 20))
	}

	fileName := utils.OutputFileName(tables.OutputFileName, map[string]string{"run": runID})

	// =========================================================================
	// STEP 3: LOCAL COPY
	// =========================================================================

	if opts.Output != "" {
		fm := utils.NewFileManager(filepath.Dir(opts.Output), opts.ArchiveDir)
		path, archived, err := fm.Save(filepath.Base(opts.Output), summary.Workbook)
		if err != nil {
			return fmt.Errorf("failed to write workbook: %w", err)
		}
		if archived != "" {
			log.Info("Previous workbook archived to %s", archived)
		}
		log.Info("Workbook written to %s", path)
		record.OutputFile = path
	}

	if opts.DryRun {
		log.Info("Dry run: skipping authentication and upload")
		printSummary(stdout, summary, fileName, nil)
		return nil
	}

	if !summary.Report.IsValid {
		record.UploadError = errInvalidTable.Error()
		return errInvalidTable
	}

	// =========================================================================
	// STEP 4: AUTHENTICATE
	// =========================================================================

	authenticator := auth.New(auth.Config{
		AuthorityHost: settings.AuthorityHost,
		TenantID:      settings.TenantID,
		ClientID:      settings.ClientID,
		ClientSecret:  settings.ClientSecret,
		Username:      settings.Username,
		Password:      settings.Password,
		Resource:      settings.SiteURL,
	})
	token, err := authenticator.Token(ctx)
	if err != nil {
		var authErr *auth.Error
		if errors.As(err, &authErr) {
			log.Error("Failed to obtain token: %s - %s", authErr.Code, authErr.Description)
		} else {
			log.Error("Failed to obtain token: %v", err)
		}
		log.Error("Upload skipped: authentication token missing")
		record.UploadError = "authentication token missing"
		return fmt.Errorf("authentication failed: %w", err)
	}
	log.Info("Token obtained")

	// =========================================================================
	// STEP 5: UPLOAD
	// =========================================================================

	if len(summary.Observations) == 0 {
		log.Error("%v", sharepoint.ErrEmptyTable)
		record.UploadError = sharepoint.ErrEmptyTable.Error()
		return sharepoint.ErrEmptyTable
	}

	target := sharepoint.Target{
		SiteURL:  settings.SiteURL,
		SitePath: settings.SitePath,
		Library:  settings.Library,
		Folder:   settings.Folder,
		FileName: fileName,
	}
	result := sharepoint.NewUploader(log, runID).UploadBytes(ctx, token, target, summary.Workbook)
	if !result.Success {
		record.UploadError = result.Error.Error()
		return result.Error
	}
	record.UploadedURL = result.FileURL

	// =========================================================================
	// STEP 6: PRINT SUMMARY
	// =========================================================================

	printSummary(stdout, summary, fileName, result)
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// fillRecord copies the pipeline outcome into the run summary log record.
func fillRecord(record *utils.RunSummary, summary *pipeline.Summary) {
	record.Observations = len(summary.Observations)
	record.Absent = summary.Report.Absent
	record.Warnings = append(append([]string(nil), summary.TableWarnings...), summary.Warnings()...)
	for _, issue := range summary.Report.Issues {
		record.Issues = append(record.Issues, issue.Error())
	}
	for _, r := range summary.Releases {
		record.Releases = append(record.Releases, utils.ReleaseInfo{
			Year:    r.Release.Year,
			Title:   r.Title,
			Schema:  string(r.Release.Schema),
			Files:   r.Files,
			Rows:    r.Rows,
			Skipped: len(r.Skipped),
		})
	}
}

// printSummary prints the end-of-run report.
func printSummary(w io.Writer, summary *pipeline.Summary, fileName string, upload *sharepoint.Result) {
	fmt.Fprintln(w, "=== Processing Complete ===")
	for _, r := range summary.Releases {
		fmt.Fprintf(w, "  %d (%s): %d rows from %d file(s), %d skipped\n",
			r.Release.Year, r.Release.Schema, r.Rows, r.Files, len(r.Skipped))
	}
	fmt.Fprintf(w, "Observations:    %d\n", len(summary.Observations))
	fmt.Fprintf(w, "Absent values:   %d\n", summary.Report.Absent)
	fmt.Fprintf(w, "Warnings:        %d\n", len(summary.Warnings())+len(summary.TableWarnings))
	fmt.Fprintf(w, "Validation:      %s\n", summary.Report.Summary())
	fmt.Fprintf(w, "Workbook:        %s (%d bytes)\n", fileName, len(summary.Workbook))
	if upload != nil {
		fmt.Fprintf(w, "Uploaded to:     %s\n", upload.FileURL)
	} else {
		fmt.Fprintln(w, "Uploaded to:     (not uploaded)")
	}
	fmt.Fprintf(w, "Time elapsed:    %s\n", summary.ProcessingTime)
}
