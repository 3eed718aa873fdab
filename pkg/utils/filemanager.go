// =============================================================================
// Mineral Statistics ETL - File Manager Utility
// =============================================================================
//
// This module handles the local side of a run:
//   - Output file naming
//   - Saving the workbook, archiving the copy it replaces
//   - Writing the run summary log
//
// ARCHIVAL STRATEGY:
//   - A workbook about to be overwritten is moved to the archive directory
//     first, under a timestamped name
//   - With no archive directory configured, the old file is simply replaced
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkbookExtension is the extension every output file carries.
const WorkbookExtension = ".xlsx"

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager saves workbooks to a local directory.
type FileManager struct {
	// OutputDir is the directory workbooks are written to.
	OutputDir string

	// ArchiveDir receives the workbook being replaced. Empty disables
	// archival.
	ArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: archive/2025/01/15/ProdUSGS20-24_20250115_143022.xlsx
	UseTimestampSubdirs bool

	// now is replaced in tests.
	now func() time.Time
}

// NewFileManager creates a FileManager writing to outputDir.
func NewFileManager(outputDir, archiveDir string) *FileManager {
	return &FileManager{
		OutputDir:  outputDir,
		ArchiveDir: archiveDir,
		now:        time.Now,
	}
}

// Save writes data to name inside the output directory.
//
// PARAMETERS:
//   - name: The file name, see OutputFileName.
//   - data: The encoded workbook.
//
// RETURNS:
//   - The path written.
//   - The path the previous copy was archived to, empty if none.
//   - An error if any file operation fails.
func (fm *FileManager) Save(name string, data []byte) (string, string, error) {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	path := filepath.Join(fm.OutputDir, name)

	var archived string
	if fm.ArchiveDir != "" && FileExists(path) {
		var err error
		archived, err = fm.archive(path)
		if err != nil {
			return "", "", err
		}
	}

	if err := WriteFile(path, data); err != nil {
		return "", archived, err
	}
	return path, archived, nil
}

// archive moves an existing workbook to the archive directory.
func (fm *FileManager) archive(path string) (string, error) {
	archivePath := fm.getArchivePath(path)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(path, archivePath); err != nil {
		// Rename fails across devices; copy and delete instead.
		if err := copyFile(path, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}
	return archivePath, nil
}

// getArchivePath builds archive/[yyyy/mm/dd/]<base>_<timestamp><ext>.
func (fm *FileManager) getArchivePath(path string) string {
	now := time.Now()
	if fm.now != nil {
		now = fm.now()
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	name := fmt.Sprintf("%s_%s%s", base, now.Format("20060102_150405"), ext)

	dir := fm.ArchiveDir
	if fm.UseTimestampSubdirs {
		dir = filepath.Join(dir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
		)
	}
	return filepath.Join(dir, name)
}

// WriteFile writes data to path through a temporary file in the same
// directory, so a reader never sees a half-written workbook.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// OutputFileName expands the placeholders of an output file name.
//
// PARAMETERS:
//   - format: The file name, optionally with placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//               {year}      - Current year (YYYY)
//   - params: Extra placeholder values, e.g. {"run": "<run id>"}.
//
// RETURNS:
//   - The expanded name, always ending in .xlsx.
//
// EXAMPLE:
//   format: "ProdUSGS_{date}"
//   output: "ProdUSGS_20250115.xlsx"
func OutputFileName(format string, params map[string]string) string {
	return outputFileName(format, params, time.Now())
}

func outputFileName(format string, params map[string]string, now time.Time) string {
	replacements := map[string]string{
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
		"{year}":      now.Format("2006"),
	}
	if strings.Contains(format, "{uuid}") {
		replacements["{uuid}"] = uuid.New().String()
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), WorkbookExtension) {
		result += WorkbookExtension
	}
	return result
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary contains summary information about a run.
type RunSummary struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	Observations int
	Absent       int
	Releases     []ReleaseInfo
	Warnings     []string
	Issues       []string
	OutputFile   string
	UploadedURL  string
	UploadError  string
}

// ReleaseInfo describes one processed release.
type ReleaseInfo struct {
	Year    int
	Title   string
	Schema  string
	Files   int
	Rows    int
	Skipped int
}

// WriteSummaryLog writes a run summary to a text file in outputDir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", outputDir, err)
	}
	summaryFileName := fmt.Sprintf("run_summary_%s.txt", summary.StartTime.Format("20060102_150405"))
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	writeSummary(writer, summary)

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

func writeSummary(w io.Writer, summary RunSummary) {
	rule := "================================================================================\n"
	section := "--------------------------------------------------------------------------------\n"

	fmt.Fprintf(w, "Mineral Statistics ETL - Run Summary\n%s\n", rule)
	fmt.Fprintf(w, "Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String())

	fmt.Fprintf(w, "Statistics:\n"+
		"  Observations:   %d\n"+
		"  Absent values:  %d\n"+
		"  Warnings:       %d\n"+
		"  Issues:         %d\n\n",
		summary.Observations, summary.Absent, len(summary.Warnings), len(summary.Issues))

	if len(summary.Releases) > 0 {
		fmt.Fprintf(w, "Releases:\n%s", section)
		for _, r := range summary.Releases {
			fmt.Fprintf(w, "  %d  %-8s %s\n", r.Year, r.Schema, r.Title)
			fmt.Fprintf(w, "        files: %d  rows: %d  skipped: %d\n", r.Files, r.Rows, r.Skipped)
		}
		fmt.Fprintln(w)
	}

	if len(summary.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings:\n%s", section)
		for _, msg := range summary.Warnings {
			fmt.Fprintf(w, "  %s\n", msg)
		}
		fmt.Fprintln(w)
	}

	if len(summary.Issues) > 0 {
		fmt.Fprintf(w, "Validation Issues:\n%s", section)
		for _, msg := range summary.Issues {
			fmt.Fprintf(w, "  %s\n", msg)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Output:\n%s", section)
	if summary.OutputFile != "" {
		fmt.Fprintf(w, "  Local file:     %s\n", summary.OutputFile)
	}
	switch {
	case summary.UploadedURL != "":
		fmt.Fprintf(w, "  Uploaded to:    %s\n", summary.UploadedURL)
	case summary.UploadError != "":
		fmt.Fprintf(w, "  Upload failed:  %s\n", summary.UploadError)
	default:
		fmt.Fprintf(w, "  Not uploaded\n")
	}

	fmt.Fprintf(w, "%sEnd of Summary\n", rule)
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
