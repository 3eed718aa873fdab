// =============================================================================
// Mineral Statistics ETL - Pipeline
// =============================================================================
//
// This module orchestrates one run, from the release catalog to the encoded
// workbook. Upload is left to the caller so that a dry run is a matter of
// not calling it.
//
// PIPELINE:
//   1. Report duplicate lookup keys
//   2. For every configured release, in order:
//        a. Fetch the item and download its world archives
//        b. Normalize each archive with the release's schema strategy
//   3. Merge all rows into the final table
//   4. Validate the table
//   5. Encode the workbook
//
// Steps run sequentially. A failed fetch or an unreadable archive aborts the
// run; problems confined to one CSV member are warnings.
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ginjaninja78/mineral-stats-etl/internal/archive"
	"github.com/ginjaninja78/mineral-stats-etl/internal/config"
	"github.com/ginjaninja78/mineral-stats-etl/internal/logging"
	"github.com/ginjaninja78/mineral-stats-etl/internal/merge"
	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
	"github.com/ginjaninja78/mineral-stats-etl/internal/normalize"
	"github.com/ginjaninja78/mineral-stats-etl/internal/sciencebase"
	"github.com/ginjaninja78/mineral-stats-etl/internal/spreadsheet"
	"github.com/ginjaninja78/mineral-stats-etl/internal/validation"
)

// Fetcher retrieves the archives of a release.
type Fetcher interface {
	FetchArchives(ctx context.Context, release model.Release) (*sciencebase.Item, []archive.Archive, error)
}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// ReleaseStats describes what one release contributed.
type ReleaseStats struct {
	Release model.Release

	// Title is the catalog title of the release item.
	Title string

	// Archives is the number of world archives downloaded.
	Archives int

	// Files is the number of CSV members that produced rows.
	Files int

	// Rows is the number of canonical rows produced.
	Rows int

	// Skipped lists the members that produced nothing.
	Skipped []string

	// Warnings holds the normalizer diagnostics.
	Warnings []string
}

// Summary is the outcome of a run.
type Summary struct {
	// RunID identifies the run in logs and request headers.
	RunID string

	// Observations is the merged table.
	Observations []model.Observation

	// Workbook is the encoded table.
	Workbook []byte

	// Releases holds per-release statistics, in processing order.
	Releases []ReleaseStats

	// Report is the validation report of the merged table.
	Report *validation.Report

	// TableWarnings lists duplicate keys found in the lookup tables.
	TableWarnings []string

	// ProcessingTime is the time taken by the run.
	ProcessingTime time.Duration
}

// Warnings returns every normalizer diagnostic of the run.
func (s *Summary) Warnings() []string {
	var out []string
	for _, r := range s.Releases {
		out = append(out, r.Warnings...)
	}
	return out
}

// =============================================================================
// PIPELINE STRUCTURE
// =============================================================================

// Pipeline runs the extraction for a set of releases.
type Pipeline struct {
	tables   *config.Tables
	fetcher  Fetcher
	logger   logging.Logger
	releases []model.Release
	runID    string
}

// New creates a Pipeline over every release configured in tables.
//
// PARAMETERS:
//   - tables: The lookup tables, including the release list.
//   - fetcher: Source of release archives.
//   - logger: Destination of progress and diagnostics. Nil discards them.
func New(tables *config.Tables, fetcher Fetcher, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{
		tables:   tables,
		fetcher:  fetcher,
		logger:   logger,
		releases: tables.Releases,
	}
}

// SetRunID sets the identifier reported in the Summary.
func (p *Pipeline) SetRunID(id string) {
	p.runID = id
}

// Select restricts the run to the given release years, keeping the
// configured order. An empty list keeps every release.
func (p *Pipeline) Select(years []int) error {
	if len(years) == 0 {
		p.releases = p.tables.Releases
		return nil
	}

	wanted := make(map[int]bool, len(years))
	for _, y := range years {
		if _, ok := p.tables.Release(y); !ok {
			return fmt.Errorf("release %d is not configured", y)
		}
		wanted[y] = true
	}

	var selected []model.Release
	for _, r := range p.tables.Releases {
		if wanted[r.Year] {
			selected = append(selected, r)
		}
	}
	p.releases = selected
	return nil
}

// Releases returns the releases the pipeline will process.
func (p *Pipeline) Releases() []model.Release {
	return p.releases
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline.
//
// RETURNS:
//   - The Summary of the run.
//   - An error if a release cannot be fetched or read, or the workbook cannot
//     be built.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	startTime := time.Now()
	summary := &Summary{RunID: p.runID}

	// =========================================================================
	// STEP 1: LOOKUP TABLES
	// =========================================================================

	summary.TableWarnings = p.tables.Duplicates()
	for _, w := range summary.TableWarnings {
		p.logger.Warn("Lookup table: %s", w)
	}

	// =========================================================================
	// STEP 2: FETCH AND NORMALIZE
	// =========================================================================

	var results [][]model.Row
	for _, release := range p.releases {
		stats, rows, err := p.processRelease(ctx, release)
		if err != nil {
			return nil, err
		}
		summary.Releases = append(summary.Releases, stats)
		results = append(results, rows)
	}

	// =========================================================================
	// STEP 3: MERGE
	// =========================================================================

	summary.Observations = merge.Merge(results...)
	p.logger.Info("Merged %d observations from %d release(s)", len(summary.Observations), len(summary.Releases))

	// =========================================================================
	// STEP 4: VALIDATE
	// =========================================================================

	summary.Report = validation.Validate(summary.Observations, p.windows())
	p.logger.Info("Validation: %s", summary.Report.Summary())

	// =========================================================================
	// STEP 5: ENCODE
	// =========================================================================

	workbook, err := spreadsheet.Encode(summary.Observations)
	if err != nil {
		return nil, fmt.Errorf("failed to build workbook: %w", err)
	}
	summary.Workbook = workbook
	summary.ProcessingTime = time.Since(startTime)

	return summary, nil
}

// processRelease fetches and normalizes one release.
func (p *Pipeline) processRelease(ctx context.Context, release model.Release) (ReleaseStats, []model.Row, error) {
	stats := ReleaseStats{Release: release}

	normalizer, err := normalize.ForSchema(release.Schema, p.tables, p.logger)
	if err != nil {
		return stats, nil, err
	}

	item, archives, err := p.fetcher.FetchArchives(ctx, release)
	if err != nil {
		return stats, nil, fmt.Errorf("release %d: %w", release.Year, err)
	}
	stats.Title = item.Title
	stats.Archives = len(archives)
	if len(archives) == 0 {
		stats.Warnings = append(stats.Warnings,
			fmt.Sprintf("Release %d has no world archive, nothing extracted", release.Year))
	}

	var rows []model.Row
	for _, arc := range archives {
		result, err := normalizer.Normalize(arc)
		if err != nil {
			return stats, nil, fmt.Errorf("release %d: %w", release.Year, err)
		}
		rows = append(rows, result.Rows...)
		stats.Files += result.Files
		stats.Skipped = append(stats.Skipped, result.Skipped...)
		stats.Warnings = append(stats.Warnings, result.Warnings...)
	}
	stats.Rows = len(rows)

	p.logger.Info("Release %d (%s schema): %d rows from %d file(s), %d skipped",
		release.Year, normalizer.Name(), stats.Rows, stats.Files, len(stats.Skipped))
	return stats, rows, nil
}

// windows returns the union of the year windows, sorted.
func (p *Pipeline) windows() []int {
	seen := make(map[int]bool)
	var years []int
	for _, schema := range []model.Schema{model.SchemaLegacy, model.SchemaCurrent} {
		for _, y := range p.tables.Years(schema) {
			if !seen[y] {
				seen[y] = true
				years = append(years, y)
			}
		}
	}
	sort.Ints(years)
	return years
}
