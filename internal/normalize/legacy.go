package normalize

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/ginjaninja78/mineral-stats-etl/internal/archive"
	"github.com/ginjaninja78/mineral-stats-etl/internal/config"
	"github.com/ginjaninja78/mineral-stats-etl/internal/csvparser"
	"github.com/ginjaninja78/mineral-stats-etl/internal/logging"
	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
	"github.com/ginjaninja78/mineral-stats-etl/internal/transform"
)

// Column names of the legacy layout.
const (
	legacyCountryColumn = "Country"
	legacyTypeColumn    = "Type"
)

var (
	reportedColumn  = regexp.MustCompile(`(?i)^prod_(?:t|kt)_\d{4}$`)
	estimatedColumn = regexp.MustCompile(`(?i)^prod_(?:t|kt)_est_\d{4}$`)
)

// Legacy normalizes the per-commodity layout used through the 2024 release.
type Legacy struct {
	tables  *config.Tables
	log     logging.Logger
	allowed map[string]bool
}

// NewLegacy creates a legacy normalizer. Only members whose lower-cased base
// name is in the legacy allow-list are read.
func NewLegacy(tables *config.Tables, log logging.Logger) *Legacy {
	allowed := make(map[string]bool, len(tables.Legacy.Files))
	for _, f := range tables.Legacy.Files {
		allowed[f] = true
	}
	return &Legacy{tables: tables, log: log, allowed: allowed}
}

// Name implements Normalizer.
func (l *Legacy) Name() string {
	return string(model.SchemaLegacy)
}

// Normalize implements Normalizer.
func (l *Legacy) Normalize(arc archive.Archive) (*Result, error) {
	members, err := arc.Members()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, member := range members {
		base := archive.Base(member)
		if !l.allowed[base] {
			continue
		}

		data, err := arc.ReadMember(member)
		if err != nil {
			return nil, err
		}
		table, err := csvparser.Parse(member, bytes.NewReader(data), l.tables.Legacy.CSV)
		if err != nil {
			result.skip(l.log, member, "File %s could not be parsed, skipping: %v", member, err)
			continue
		}

		rows := l.normalizeTable(table, member, base, result)
		if len(rows) == 0 {
			if !transform.Contains(result.Skipped, member) {
				result.Skipped = append(result.Skipped, member)
			}
			continue
		}
		result.Files++
		result.Rows = append(result.Rows, rows...)
	}

	return result, nil
}

// normalizeTable reshapes one legacy table.
//
// PROCESS:
//   1. Narrow multi-type files to the commodity's preferred type
//   2. Pick the reported production columns, or the estimated ones
//   3. Clean every figure and convert kilotonne columns to tons
//   4. Unpivot to one row per country and year inside the window
func (l *Legacy) normalizeTable(table *csvparser.Table, member, base string, result *Result) []model.Row {
	if !table.Has(legacyCountryColumn) {
		result.skip(l.log, member, "File %s has no %s column, skipping", member, legacyCountryColumn)
		return nil
	}

	code := config.CommodityCode(base)

	if table.Has(legacyTypeColumn) {
		types := table.UniqueValues(legacyTypeColumn)
		if len(types) > 1 {
			if preferred, ok := l.tables.Legacy.PreferredTypes.Get(code); ok {
				filtered, err := table.FilterEqual(legacyTypeColumn, preferred)
				if err != nil {
					result.skip(l.log, member, "File %s: %v", member, err)
					return nil
				}
				table = filtered
				l.log.Info("File %s: multiple types found, keeping type %q", member, preferred)
			} else {
				result.warn(l.log, "File %s has multiple types and no preferred type configured: %s",
					member, strings.Join(types, ", "))
			}
		}
	}

	columns := productionColumns(table.Headers, reportedColumn)
	if len(columns) == 0 {
		columns = productionColumns(table.Headers, estimatedColumn)
		if len(columns) == 0 {
			result.skip(l.log, member, "No production column found in %s, skipping", member)
			return nil
		}
		result.warn(l.log, "Using ESTIMATED production in %s", member)
	}

	commodity := l.tables.Legacy.Commodities.Lookup(code)
	window := l.tables.Legacy.Years

	countries := table.Column(legacyCountryColumn)
	for i, raw := range countries {
		countries[i] = transform.Country(l.tables.Countries, raw, false)
	}

	var rows []model.Row
	for _, col := range columns {
		year, ok := transform.ExtractYear(col)
		if !ok || !transform.ContainsInt(window, year) {
			continue
		}
		for i, row := range table.Rows {
			value := transform.ScaleKilotonnes(col, transform.CleanNumeric(row[col]))
			if countries[i] == "" && value == nil {
				continue
			}
			rows = append(rows, model.Row{
				Country:   countries[i],
				Commodity: commodity,
				Year:      year,
				Value:     value,
			})
		}
	}

	l.log.Debug("File %s: %d rows for %s", member, len(rows), commodity)
	return rows
}

// productionColumns returns the headers matching pattern, ignoring note
// columns.
func productionColumns(headers []string, pattern *regexp.Regexp) []string {
	var columns []string
	for _, h := range headers {
		if pattern.MatchString(h) && !strings.Contains(strings.ToLower(h), "_notes") {
			columns = append(columns, h)
		}
	}
	return columns
}
