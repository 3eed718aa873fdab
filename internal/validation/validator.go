// =============================================================================
// Mineral Statistics ETL - Validation Engine
// =============================================================================
//
// This module checks the merged table before it is uploaded. It reports, it
// never alters: the table that is validated is the table that is uploaded.
//
// RULES:
//   - year_window:    the year is outside every configured window (error)
//   - duplicate_key:  the (country, commodity, year) triple appears more than
//                     once, usually because two releases overlap (warning)
//   - negative_value: a production figure is below zero (warning)
//   - empty_country:  the row has a value but no country (warning)
//
// Absent values are expected (withheld or unpublished figures) and are only
// counted.
//
// ERROR HANDLING:
//   - Issues are collected, not returned one by one
//   - Each issue carries the row number and the offending key
//   - Errors make the report invalid; warnings do not, unless
//     TreatWarningsAsErrors is set
//
// =============================================================================

package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names.
const (
	RuleYearWindow    = "year_window"
	RuleDuplicateKey  = "duplicate_key"
	RuleNegativeValue = "negative_value"
	RuleEmptyCountry  = "empty_country"
)

// =============================================================================
// VALIDATION ISSUE
// =============================================================================

// Issue is a single finding.
type Issue struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Rule is the rule that was violated.
	Rule string

	// Row is the zero-based position of the observation in the table. For
	// duplicate keys it is the position of the repeated occurrence.
	Row int

	// Key identifies the observation.
	Key model.Key

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (i *Issue) Error() string {
	return fmt.Sprintf("[%s] row %d (%s / %s / %d): %s",
		strings.ToUpper(i.Severity), i.Row, i.Key.Country, i.Key.Commodity, i.Key.Year, i.Message)
}

// =============================================================================
// VALIDATION REPORT
// =============================================================================

// Report contains the results of validation.
type Report struct {
	// IsValid is true if there are no errors.
	IsValid bool

	// Issues contains all findings, errors and warnings, in row order.
	Issues []*Issue

	// ErrorCount is the number of errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// Observations is the number of rows validated.
	Observations int

	// Absent is the number of rows without a value.
	Absent int

	// DuplicateKeys is the number of distinct keys seen more than once.
	DuplicateKeys int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options configures a Validator.
type Options struct {
	// Years is the set of acceptable observation years.
	Years []int

	// TreatWarningsAsErrors makes any warning invalidate the report.
	// Default: false
	TreatWarningsAsErrors bool
}

// Validator checks merged observations.
type Validator struct {
	options Options
	years   map[int]bool
}

// NewValidator creates a Validator accepting the given years.
func NewValidator(options Options) *Validator {
	years := make(map[int]bool, len(options.Years))
	for _, y := range options.Years {
		years[y] = true
	}
	return &Validator{options: options, years: years}
}

// Validate checks observations against years and returns the report.
//
// PARAMETERS:
//   - observations: The merged table.
//   - years: The acceptable observation years, usually the union of the
//     legacy and current windows.
//
// RETURNS:
//   - The validation report.
func Validate(observations []model.Observation, years []int) *Report {
	return NewValidator(Options{Years: years}).ValidateAll(observations)
}

// ValidateAll validates every observation.
func (v *Validator) ValidateAll(observations []model.Observation) *Report {
	report := &Report{
		IsValid:      true,
		Observations: len(observations),
	}

	seen := make(map[model.Key]int, len(observations))
	for i, o := range observations {
		key := o.Key()

		if !v.years[o.Year] {
			report.add(v.options, &Issue{
				Severity: SeverityError,
				Rule:     RuleYearWindow,
				Row:      i,
				Key:      key,
				Message:  fmt.Sprintf("year %d is outside the configured windows", o.Year),
			})
		}

		if o.Value == nil {
			report.Absent++
		} else {
			if *o.Value < 0 {
				report.add(v.options, &Issue{
					Severity: SeverityWarning,
					Rule:     RuleNegativeValue,
					Row:      i,
					Key:      key,
					Message:  fmt.Sprintf("negative production %g", *o.Value),
				})
			}
			if strings.TrimSpace(o.Country) == "" {
				report.add(v.options, &Issue{
					Severity: SeverityWarning,
					Rule:     RuleEmptyCountry,
					Row:      i,
					Key:      key,
					Message:  "value without a country",
				})
			}
		}

		seen[key]++
		if seen[key] == 2 {
			report.DuplicateKeys++
		}
		if seen[key] > 1 {
			report.add(v.options, &Issue{
				Severity: SeverityWarning,
				Rule:     RuleDuplicateKey,
				Row:      i,
				Key:      key,
				Message:  fmt.Sprintf("occurrence %d of this key, rows are kept as-is", seen[key]),
			})
		}
	}

	return report
}

func (r *Report) add(options Options, issue *Issue) {
	r.Issues = append(r.Issues, issue)
	if issue.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
		return
	}
	r.WarningCount++
	if options.TreatWarningsAsErrors {
		r.IsValid = false
	}
}

// ByRule counts issues per rule.
func (r *Report) ByRule() map[string]int {
	counts := make(map[string]int)
	for _, i := range r.Issues {
		counts[i.Rule]++
	}
	return counts
}

// Summary returns a one-line description of the report.
func (r *Report) Summary() string {
	counts := r.ByRule()
	rules := make([]string, 0, len(counts))
	for rule := range counts {
		rules = append(rules, rule)
	}
	sort.Strings(rules)

	parts := make([]string, 0, len(rules))
	for _, rule := range rules {
		parts = append(parts, fmt.Sprintf("%s=%d", rule, counts[rule]))
	}

	s := fmt.Sprintf("%d observations, %d without value, %d error(s), %d warning(s)",
		r.Observations, r.Absent, r.ErrorCount, r.WarningCount)
	if len(parts) > 0 {
		s += " [" + strings.Join(parts, " ") + "]"
	}
	return s
}

// FormatIssues formats issues for display or logging. At most limit issues
// are listed; zero lists all of them.
func FormatIssues(issues []*Issue, limit int) string {
	if len(issues) == 0 {
		return "No validation issues."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d issue(s):\n", len(issues)))

	for i, issue := range issues {
		if limit > 0 && i == limit {
			builder.WriteString(fmt.Sprintf("... and %d more\n", len(issues)-limit))
			break
		}
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, issue.Error()))
	}

	return builder.String()
}
