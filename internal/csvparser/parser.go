// =============================================================================
// Mineral Statistics ETL - CSV Parser Module
// =============================================================================
//
// This module turns a CSV member of a release archive into a Table. The
// published tables are not always clean, so the parser is lenient:
//   - Rows may have fewer or more fields than the header
//   - Quotes may appear inside unquoted fields
//   - A UTF-8 byte order mark may precede the header
//   - Older files may be encoded as Windows-1252 or ISO-8859-1
//
// Every cell is loaded as a string. Numeric interpretation is left to the
// normalizers, which know which columns hold figures.
//
// MISSING VALUES:
//   Cells holding one of the usual "not available" tokens (NA, N/A, NaN,
//   null, ...) are loaded as empty strings, so that callers only have one
//   representation of an absent cell to deal with.
//
// =============================================================================

package csvparser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/mineral-stats-etl/internal/config"
)

// naTokens are read as absent cells.
var naTokens = map[string]bool{
	"":          true,
	"#N/A":      true,
	"#N/A N/A":  true,
	"#NA":       true,
	"-1.#IND":   true,
	"-1.#QNAN":  true,
	"-NaN":      true,
	"-nan":      true,
	"1.#IND":    true,
	"1.#QNAN":   true,
	"<NA>":      true,
	"N/A":       true,
	"NA":        true,
	"NULL":      true,
	"NaN":       true,
	"None":      true,
	"n/a":       true,
	"nan":       true,
	"null":      true,
}

// IsMissing reports whether a raw cell value denotes an absent value.
func IsMissing(value string) bool {
	return naTokens[value]
}

// =============================================================================
// TABLE STRUCTURE
// =============================================================================

// Table is a parsed CSV member.
type Table struct {
	// Name is the member name the table was read from.
	Name string

	// Headers contains the column headers, trimmed, in file order.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	Rows []map[string]string

	frame dataframe.DataFrame
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Has reports whether the table has a column named col.
func (t *Table) Has(col string) bool {
	for _, h := range t.Headers {
		if h == col {
			return true
		}
	}
	return false
}

// Column returns every value of col, in row order.
func (t *Table) Column(col string) []string {
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[col]
	}
	return values
}

// UniqueValues returns the distinct non-empty values of col in first-seen
// order.
func (t *Table) UniqueValues(col string) []string {
	seen := make(map[string]bool)
	var unique []string

	for _, row := range t.Rows {
		value := row[col]
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		unique = append(unique, value)
	}

	return unique
}

// FilterEqual returns a table with only the rows whose col equals value
// exactly.
func (t *Table) FilterEqual(col, value string) (*Table, error) {
	if !t.Has(col) {
		return nil, fmt.Errorf("column %s not found in %s", col, t.Name)
	}
	if t.Len() == 0 {
		return t, nil
	}
	filtered := t.frame.Filter(dataframe.F{
		Colname:    col,
		Comparator: series.Eq,
		Comparando: value,
	})
	if filtered.Err != nil {
		return nil, fmt.Errorf("failed to filter %s on %s: %w", t.Name, col, filtered.Err)
	}
	if filtered.Nrow() == 0 {
		return &Table{Name: t.Name, Headers: t.Headers}, nil
	}
	return fromFrame(t.Name, filtered), nil
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV member and returns the parsed table.
//
// PARAMETERS:
//   - name: The member name, used in error messages.
//   - r: The member content.
//   - settings: Delimiter and encoding of the member.
//
// RETURNS:
//   - A pointer to the parsed Table.
//   - An error if the content cannot be decoded or has no header row.
//
// PARSING PROCESS:
//   1. Decode the content to UTF-8, dropping a byte order mark
//   2. Read every record, tolerating ragged rows
//   3. Pad or truncate records to the header width
//   4. Load the records into a string-typed data frame
func Parse(name string, r io.Reader, settings config.CSVSettings) (*Table, error) {
	dec, err := decoder(settings.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	csvReader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(dec.NewDecoder())))
	configureReader(csvReader, settings)

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV %s is empty", name)
	}

	headers := cleanHeaders(records[0])
	data := [][]string{headers}
	for _, rec := range records[1:] {
		if isRowEmpty(rec) {
			continue
		}
		data = append(data, fitRow(rec, len(headers)))
	}

	if len(data) == 1 {
		return &Table{Name: name, Headers: headers}, nil
	}

	df := dataframe.LoadRecords(data,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to load CSV %s: %w", name, df.Err)
	}

	return fromFrame(name, df), nil
}

// decoder returns the text decoder for an encoding name.
func decoder(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "UTF-8", "UTF8":
		return unicode.UTF8, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
}

// cleanHeaders trims header names and names empty ones after their position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	seen := make(map[string]int)

	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		if n, ok := seen[header]; ok {
			seen[header] = n + 1
			header = fmt.Sprintf("%s.%d", header, n+1)
		} else {
			seen[header] = 0
		}
		cleaned[i] = header
	}

	return cleaned
}

// fitRow pads short records with empty cells and drops surplus fields.
func fitRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// fromFrame converts a data frame back to a Table.
func fromFrame(name string, df dataframe.DataFrame) *Table {
	headers := df.Names()
	columns := make([][]string, len(headers))
	for i, h := range headers {
		columns[i] = df.Col(h).Records()
	}

	rows := make([]map[string]string, df.Nrow())
	for r := range rows {
		row := make(map[string]string, len(headers))
		for c, h := range headers {
			value := columns[c][r]
			if IsMissing(value) {
				value = ""
			}
			row[h] = value
		}
		rows[r] = row
	}

	return &Table{Name: name, Headers: headers, Rows: rows, frame: df}
}
