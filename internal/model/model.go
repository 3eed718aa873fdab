// =============================================================================
// Mineral Statistics ETL - Shared Types
// =============================================================================
//
// This package contains the types passed between the pipeline stages. Keeping
// them here avoids import cycles between:
//   - normalize
//   - merge
//   - validation
//   - spreadsheet
//
// =============================================================================

package model

import "fmt"

// =============================================================================
// RELEASES
// =============================================================================

// Schema identifies the table layout used by a release vintage.
type Schema string

const (
	// SchemaLegacy is the per-commodity CSV layout with one column per year
	// (prod_t_2021, prod_kt_2022, ...). Used through the 2024 release.
	SchemaLegacy Schema = "legacy"

	// SchemaCurrent is the consolidated CSV layout with explicit COUNTRY,
	// COMMODITY and UNIT_MEAS columns. Used from the 2025 release on.
	SchemaCurrent Schema = "current"
)

// Valid reports whether s names a known schema.
func (s Schema) Valid() bool {
	return s == SchemaLegacy || s == SchemaCurrent
}

// Release is a yearly snapshot published on the data repository.
type Release struct {
	// Year is the publication year of the release (e.g. 2024).
	Year int `yaml:"year"`

	// ItemID is the opaque repository identifier of the release item.
	ItemID string `yaml:"item_id"`

	// Schema selects the normalizer used for the release archives.
	Schema Schema `yaml:"schema"`
}

func (r Release) String() string {
	return fmt.Sprintf("%d (%s, %s)", r.Year, r.ItemID, r.Schema)
}

// =============================================================================
// ROWS
// =============================================================================

// Row is a single normalized observation as produced by a normalizer.
// Value is always expressed in metric tons; nil means the source had no
// parseable figure.
type Row struct {
	Country   string
	Commodity string
	Year      int
	Value     *float64

	// Unit is only set by the current-schema normalizer. It is dropped when
	// rows are merged.
	Unit string
}

// Observation is a row of the final merged table.
type Observation struct {
	Country   string
	Commodity string
	Year      int
	Value     *float64
}

// Key identifies the (country, commodity, year) triple of an observation.
type Key struct {
	Country   string
	Commodity string
	Year      int
}

// Key returns the identifying triple of the observation.
func (o Observation) Key() Key {
	return Key{Country: o.Country, Commodity: o.Commodity, Year: o.Year}
}

// Float returns a pointer to v. It is a convenience for building rows.
func Float(v float64) *float64 {
	return &v
}
