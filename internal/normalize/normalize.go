// =============================================================================
// Mineral Statistics ETL - Normalizers
// =============================================================================
//
// A normalizer turns the CSV members of one release archive into canonical
// rows: display names for countries and commodities, values in metric tons,
// one row per (country, commodity, year) and only the years of the release
// vintage's window.
//
// STRATEGIES:
//   - Legacy:  per-commodity files with one production column per year.
//   - Current: one consolidated file with COUNTRY, COMMODITY and UNIT_MEAS.
//
// The strategy is chosen from the release's schema, see ForSchema.
//
// =============================================================================

package normalize

import (
	"fmt"

	"github.com/ginjaninja78/mineral-stats-etl/internal/archive"
	"github.com/ginjaninja78/mineral-stats-etl/internal/config"
	"github.com/ginjaninja78/mineral-stats-etl/internal/logging"
	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
)

// Normalizer converts a release archive into canonical rows.
type Normalizer interface {
	// Name identifies the strategy in logs.
	Name() string

	// Normalize reads every relevant member of arc. Problems with a single
	// member are recorded as warnings and the member is skipped; only an
	// unreadable archive is an error.
	Normalize(arc archive.Archive) (*Result, error)
}

// Result is the outcome of normalizing one archive.
type Result struct {
	// Rows holds the canonical rows in production order.
	Rows []model.Row

	// Warnings holds operator diagnostics, one per line.
	Warnings []string

	// Files is the number of members that produced rows.
	Files int

	// Skipped lists the members that were read but produced nothing.
	Skipped []string
}

// warn records and logs a diagnostic.
func (r *Result) warn(log logging.Logger, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	log.Warn("%s", msg)
}

// skip records a member that produced no rows.
func (r *Result) skip(log logging.Logger, member, format string, args ...interface{}) {
	r.Skipped = append(r.Skipped, member)
	r.warn(log, format, args...)
}

// ForSchema returns the normalizer for a release vintage.
//
// PARAMETERS:
//   - schema: The release's table layout.
//   - tables: The lookup tables.
//   - log: Destination of operator diagnostics. Nil discards them.
//
// RETURNS:
//   - The matching Normalizer.
//   - An error if the schema is unknown.
func ForSchema(schema model.Schema, tables *config.Tables, log logging.Logger) (Normalizer, error) {
	if log == nil {
		log = logging.Discard()
	}
	switch schema {
	case model.SchemaLegacy:
		return NewLegacy(tables, log), nil
	case model.SchemaCurrent:
		return NewCurrent(tables, log), nil
	default:
		return nil, fmt.Errorf("no normalizer for schema %q", schema)
	}
}
