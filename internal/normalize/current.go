package normalize

import (
	"bytes"
	"strings"

	"github.com/ginjaninja78/mineral-stats-etl/internal/archive"
	"github.com/ginjaninja78/mineral-stats-etl/internal/config"
	"github.com/ginjaninja78/mineral-stats-etl/internal/csvparser"
	"github.com/ginjaninja78/mineral-stats-etl/internal/logging"
	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
	"github.com/ginjaninja78/mineral-stats-etl/internal/transform"
)

// Column names of the consolidated layout.
const (
	currentCountryColumn   = "COUNTRY"
	currentCommodityColumn = "COMMODITY"
	currentUnitColumn      = "UNIT_MEAS"
	currentProdPrefix      = "PROD_"
)

// Current normalizes the consolidated layout introduced with the 2025
// release. Every CSV member of the archive is read.
type Current struct {
	tables *config.Tables
	log    logging.Logger
}

// NewCurrent creates a current-schema normalizer.
func NewCurrent(tables *config.Tables, log logging.Logger) *Current {
	return &Current{tables: tables, log: log}
}

// Name implements Normalizer.
func (c *Current) Name() string {
	return string(model.SchemaCurrent)
}

// Normalize implements Normalizer.
func (c *Current) Normalize(arc archive.Archive) (*Result, error) {
	members, err := arc.Members()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, member := range members {
		if !strings.HasSuffix(member, ".csv") {
			continue
		}

		data, err := arc.ReadMember(member)
		if err != nil {
			return nil, err
		}
		table, err := csvparser.Parse(member, bytes.NewReader(data), c.tables.Current.CSV)
		if err != nil {
			result.skip(c.log, member, "File %s could not be parsed, skipping: %v", member, err)
			continue
		}

		rows, ok := c.normalizeTable(table, member, result)
		if !ok {
			continue
		}
		result.Files++
		result.Rows = append(result.Rows, rows...)
	}

	return result, nil
}

// normalizeTable reshapes one consolidated table. It returns false when the
// table does not have the expected columns.
func (c *Current) normalizeTable(table *csvparser.Table, member string, result *Result) ([]model.Row, bool) {
	if !table.Has(currentUnitColumn) {
		result.skip(c.log, member, "%s column not found in %s, skipping", currentUnitColumn, member)
		return nil, false
	}

	var columns []string
	for _, h := range table.Headers {
		if strings.HasPrefix(h, currentProdPrefix) {
			columns = append(columns, h)
		}
	}
	if len(columns) == 0 {
		result.skip(c.log, member, "No production column detected in %s, skipping", member)
		return nil, false
	}

	for _, required := range []string{currentCountryColumn, currentCommodityColumn} {
		if !table.Has(required) {
			result.skip(c.log, member, "%s column not found in %s, skipping", required, member)
			return nil, false
		}
	}

	window := c.tables.Current.Years
	allowed := c.tables.Current.Commodities

	var rows []model.Row
	scaled := 0
	for _, col := range columns {
		year, ok := transform.ExtractYear(col)
		if !ok || !transform.ContainsInt(window, year) {
			continue
		}
		for _, row := range table.Rows {
			raw := row[currentCommodityColumn]
			if !transform.Contains(allowed, raw) {
				continue
			}

			unit, value := transform.NormalizeUnit(row[currentUnitColumn], transform.ParseNumber(row[col]))
			if strings.EqualFold(strings.TrimSpace(row[currentUnitColumn]), transform.UnitThousandMetricTons) {
				scaled++
			}

			rows = append(rows, model.Row{
				Country:   transform.Country(c.tables.Countries, row[currentCountryColumn], true),
				Commodity: c.tables.Current.CommodityNames.Lookup(raw),
				Year:      year,
				Value:     value,
				Unit:      unit,
			})
		}
	}

	c.log.Debug("File %s: %d rows, %d converted from thousand metric tons", member, len(rows), scaled)
	return rows, true
}
