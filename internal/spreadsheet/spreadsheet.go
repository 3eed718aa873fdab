// =============================================================================
// Mineral Statistics ETL - Spreadsheet Encoding
// =============================================================================
//
// The merged table is uploaded as a single-sheet workbook built entirely in
// memory.
//
// LAYOUT:
//
//   | Column A | Column B  | Column C | Column D       |
//   |----------|-----------|----------|----------------|
//   | Country  | Commodity | Year     | Value          |
//   | Chile    | Cobre     | 2020     | 100            |
//   | Peru     | Cobre     | 2021     | (empty: absent)|
//
// There is no index column. Values are metric tons.
//
// =============================================================================

package spreadsheet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
)

// SheetName is the name of the only sheet in the workbook.
const SheetName = "Sheet1"

// Header is the header row of the sheet.
var Header = []string{"Country", "Commodity", "Year", "Value"}

// Encode serializes observations to an XLSX workbook.
//
// PARAMETERS:
//   - observations: The rows to write, in order.
//
// RETURNS:
//   - The workbook bytes.
//   - An error if the workbook cannot be built.
func Encode(observations []model.Observation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet writer: %w", err)
	}
	if err := sw.SetColWidth(1, 2, 28); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, o := range observations {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{o.Country, o.Commodity, o.Year, nil}
		if o.Value != nil {
			row[3] = *o.Value
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads a workbook written by Encode.
//
// PARAMETERS:
//   - data: The workbook bytes.
//
// RETURNS:
//   - The observations, in sheet order.
//   - An error if the workbook or its header is not as expected.
func Decode(data []byte) ([]model.Observation, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheetName)
	}
	if got := strings.Join(rows[0], ","); got != strings.Join(Header, ",") {
		return nil, fmt.Errorf("unexpected header %q", got)
	}

	observations := make([]model.Observation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		o, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		observations = append(observations, o)
	}
	return observations, nil
}

// parseRow converts a sheet row. GetRows drops trailing empty cells, so a
// row without a value is three cells long.
func parseRow(row []string) (model.Observation, error) {
	cells := make([]string, len(Header))
	copy(cells, row)

	year, err := strconv.Atoi(cells[2])
	if err != nil {
		return model.Observation{}, fmt.Errorf("invalid year %q", cells[2])
	}

	o := model.Observation{Country: cells[0], Commodity: cells[1], Year: year}
	if cells[3] != "" {
		v, err := strconv.ParseFloat(cells[3], 64)
		if err != nil {
			return model.Observation{}, fmt.Errorf("invalid value %q", cells[3])
		}
		o.Value = &v
	}
	return o, nil
}
