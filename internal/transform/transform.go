// =============================================================================
// Mineral Statistics ETL - Cell Transformations
// =============================================================================
//
// This module provides the cell-level transformations shared by the legacy
// and current-schema normalizers.
//
// TRANSFORMATION TYPES:
//   - Numeric cleaning: strip footnote markers and separators, parse figures
//   - Name lookup: map raw tokens to display names, raw value as fallback
//   - Year extraction: pull the year out of a production column name
//   - Unit conversion: kilotonnes and "thousand metric tons" to metric tons
//
// =============================================================================

package transform

import (
	"regexp"
	"strconv"
	"strings"
)

// KilotonneFactor converts thousand metric tons to metric tons.
const KilotonneFactor = 1000

// Unit strings of the current schema, after NormalizeUnit.
const (
	UnitMetricTons         = "metric tons"
	UnitThousandMetricTons = "thousand metric tons"
)

var (
	nonNumeric  = regexp.MustCompile(`[^\d\.\-]`)
	yearPattern = regexp.MustCompile(`\d{4}`)
)

// =============================================================================
// NUMERIC CLEANING
// =============================================================================

// CleanNumeric removes every character except digits, dots and minus signs
// and parses what remains. Anything that does not parse is absent.
//
// EXAMPLE:
//   "1,234e"  -> 1234
//   "W"       -> nil
//   "-12.5"   -> -12.5
func CleanNumeric(raw string) *float64 {
	return parse(nonNumeric.ReplaceAllString(raw, ""))
}

// ParseNumber parses a figure written with optional thousands separators.
// Surrounding whitespace is ignored; anything else that does not parse is
// absent.
//
// EXAMPLE:
//   " 12,000 " -> 12000
//   "NA"       -> nil
func ParseNumber(raw string) *float64 {
	return parse(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
}

func parse(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// =============================================================================
// NAME LOOKUP
// =============================================================================

// Mapper is a string lookup table.
type Mapper interface {
	Get(key string) (string, bool)
}

// Lookup maps key through m. When key is not mapped, fallback is returned
// unchanged.
func Lookup(m Mapper, key, fallback string) string {
	if v, ok := m.Get(key); ok {
		return v
	}
	return fallback
}

// Country maps a raw country token to its display name. The key is the
// lower-cased token, trimmed first when trim is set; an unmapped token is
// returned exactly as it appeared in the source.
func Country(m Mapper, raw string, trim bool) string {
	key := raw
	if trim {
		key = strings.TrimSpace(key)
	}
	return Lookup(m, strings.ToLower(key), raw)
}

// =============================================================================
// YEARS AND UNITS
// =============================================================================

// ExtractYear returns the first run of four digits in a column name.
//
// EXAMPLE:
//   "prod_kt_est_2022" -> 2022
//   "PROD_2023"        -> 2023
func ExtractYear(column string) (int, bool) {
	m := yearPattern.FindString(column)
	if m == "" {
		return 0, false
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return year, true
}

// IsKilotonneColumn reports whether a legacy production column holds
// kilotonnes.
func IsKilotonneColumn(column string) bool {
	return strings.Contains(strings.ToLower(column), "_kt_")
}

// ScaleKilotonnes converts v to metric tons if column holds kilotonnes.
func ScaleKilotonnes(column string, v *float64) *float64 {
	if v == nil || !IsKilotonneColumn(column) {
		return v
	}
	scaled := *v * KilotonneFactor
	return &scaled
}

// NormalizeUnit trims and lower-cases a unit of measure. "thousand metric
// tons" values are scaled to metric tons and the unit rewritten; any other
// unit passes through with its value unchanged.
func NormalizeUnit(unit string, v *float64) (string, *float64) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit != UnitThousandMetricTons {
		return unit, v
	}
	if v == nil {
		return UnitMetricTons, nil
	}
	scaled := *v * KilotonneFactor
	return UnitMetricTons, &scaled
}

// Contains reports whether list holds value exactly.
func Contains(list []string, value string) bool {
	for _, s := range list {
		if s == value {
			return true
		}
	}
	return false
}

// ContainsInt reports whether list holds value.
func ContainsInt(list []int, value int) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
