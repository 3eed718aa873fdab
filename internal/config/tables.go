// =============================================================================
// Mineral Statistics ETL - Lookup Tables
// =============================================================================
//
// The lookup tables are configuration data, not logic: release identifiers,
// member allow-lists, name maps and year windows change every year and are
// versioned in a YAML file. A default copy is embedded in the binary.
//
// DUPLICATE KEYS:
//   The raw name maps have historically carried the same key twice. Mappings
//   are therefore decoded in document order with "last definition wins", and
//   every overwrite is recorded so that it can be reported instead of being
//   silently preserved.
//
// =============================================================================

package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
)

//go:embed tables.yaml
var defaultTables []byte

// UnknownCommodity is the code given to members whose name does not follow
// the mcsYYYY-<code>_world.csv pattern.
const UnknownCommodity = "unknown"

var memberCodePattern = regexp.MustCompile(`mcs\d{4}-(.*?)_world\.csv`)

// =============================================================================
// TABLES STRUCTURE
// =============================================================================

// Tables holds every lookup table the normalizers and the command use.
type Tables struct {
	// OutputFileName is the name of the uploaded spreadsheet.
	// Placeholders understood by utils.OutputFileName may be used.
	OutputFileName string `yaml:"output_file_name"`

	// Releases lists the releases to process, in processing order.
	Releases []model.Release `yaml:"releases"`

	// Legacy holds the tables of the per-commodity (wide) schema.
	Legacy LegacyTables `yaml:"legacy"`

	// Current holds the tables of the consolidated schema.
	Current CurrentTables `yaml:"current"`

	// Countries maps lower-cased raw country tokens to display names.
	// Shared by both schemas.
	Countries LookupMap `yaml:"countries"`
}

// LegacyTables configures the legacy normalizer.
type LegacyTables struct {
	// Years is the window of observation years kept.
	Years []int `yaml:"years"`

	// Files is the allow-list of archive members, lower-case base names.
	Files []string `yaml:"files"`

	// Commodities maps the short code in the file name (coppe, alumi, ...)
	// to a display name.
	Commodities LookupMap `yaml:"commodities"`

	// PreferredTypes maps a commodity code to the Type value kept when a file
	// mixes several types of production figures.
	PreferredTypes LookupMap `yaml:"preferred_types"`

	// CSV holds the parse settings of the legacy members.
	CSV CSVSettings `yaml:"csv"`
}

// CurrentTables configures the current-schema normalizer.
type CurrentTables struct {
	// Years is the window of observation years kept.
	Years []int `yaml:"years"`

	// Commodities is the allow-list of raw COMMODITY values. Matching is
	// exact, whitespace included.
	Commodities []string `yaml:"commodities"`

	// CommodityNames maps raw COMMODITY values to display names.
	CommodityNames LookupMap `yaml:"commodity_names"`

	// CSV holds the parse settings of the consolidated members.
	CSV CSVSettings `yaml:"csv"`
}

// CSVSettings contains settings for parsing CSV members.
type CSVSettings struct {
	// Delimiter is the field separator. Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the member.
	// Supported: "UTF-8", "Windows-1252", "ISO-8859-1". Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// =============================================================================
// LOOKUP MAP
// =============================================================================

// Duplicate records a key that was defined more than once in a mapping.
type Duplicate struct {
	Key      string
	Line     int
	Previous string
	Value    string
}

// LookupMap is an insertion-ordered string map decoded from a YAML mapping.
// Repeated keys overwrite earlier ones and are listed in Duplicates.
type LookupMap struct {
	keys       []string
	values     map[string]string
	Duplicates []Duplicate
}

// NewLookupMap builds a map from key/value pairs. Repeated keys follow the
// same last-wins rule as the YAML decoder.
func NewLookupMap(pairs ...string) LookupMap {
	var m LookupMap
	for i := 0; i+1 < len(pairs); i += 2 {
		m.set(pairs[i], pairs[i+1], 0)
	}
	return m
}

// UnmarshalYAML implements yaml.Unmarshaler. It walks the mapping node
// directly so that duplicate keys reach us instead of failing the decode.
func (m *LookupMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	*m = LookupMap{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		var key, value string
		if err := keyNode.Decode(&key); err != nil {
			return fmt.Errorf("line %d: invalid key: %w", keyNode.Line, err)
		}
		if err := valueNode.Decode(&value); err != nil {
			return fmt.Errorf("line %d: invalid value for %q: %w", valueNode.Line, key, err)
		}
		m.set(key, value, keyNode.Line)
	}
	return nil
}

func (m *LookupMap) set(key, value string, line int) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if previous, ok := m.values[key]; ok {
		m.Duplicates = append(m.Duplicates, Duplicate{
			Key:      key,
			Line:     line,
			Previous: previous,
			Value:    value,
		})
		m.values[key] = value
		return
	}
	m.keys = append(m.keys, key)
	m.values[key] = value
}

// Get returns the value for key and whether it was present.
func (m LookupMap) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Lookup returns the value for key, or key itself when it is not mapped.
func (m LookupMap) Lookup(key string) string {
	if v, ok := m.values[key]; ok {
		return v
	}
	return key
}

// Keys returns the keys in first-definition order.
func (m LookupMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of distinct keys.
func (m LookupMap) Len() int {
	return len(m.keys)
}

// =============================================================================
// LOADING
// =============================================================================

// DefaultTables returns the embedded lookup tables.
func DefaultTables() (*Tables, error) {
	return parseTables(defaultTables)
}

// LoadTables loads lookup tables from path, or the embedded defaults when path
// is empty.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}
	return parseTables(data)
}

func parseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tables: %w", err)
	}
	applyTablesDefaults(&t)
	if err := validateTables(&t); err != nil {
		return nil, fmt.Errorf("invalid tables: %w", err)
	}
	return &t, nil
}

// applyTablesDefaults sets default values for any unset option.
func applyTablesDefaults(t *Tables) {
	if t.OutputFileName == "" {
		t.OutputFileName = "ProdUSGS20-24.xlsx"
	}
	for _, csv := range []*CSVSettings{&t.Legacy.CSV, &t.Current.CSV} {
		if csv.Delimiter == "" {
			csv.Delimiter = ","
		}
		if csv.Encoding == "" {
			csv.Encoding = "UTF-8"
		}
	}
	for i, f := range t.Legacy.Files {
		t.Legacy.Files[i] = strings.ToLower(strings.TrimSpace(f))
	}
}

func validateTables(t *Tables) error {
	if len(t.Releases) == 0 {
		return fmt.Errorf("no releases configured")
	}
	seen := make(map[int]bool)
	for _, r := range t.Releases {
		if r.ItemID == "" {
			return fmt.Errorf("release %d has no item_id", r.Year)
		}
		if !r.Schema.Valid() {
			return fmt.Errorf("release %d has unknown schema %q", r.Year, r.Schema)
		}
		if seen[r.Year] {
			return fmt.Errorf("release %d is listed twice", r.Year)
		}
		seen[r.Year] = true
	}
	if len(t.Legacy.Years) == 0 {
		return fmt.Errorf("legacy.years is empty")
	}
	if len(t.Current.Years) == 0 {
		return fmt.Errorf("current.years is empty")
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Years returns the year window configured for schema.
func (t *Tables) Years(schema model.Schema) []int {
	if schema == model.SchemaCurrent {
		return t.Current.Years
	}
	return t.Legacy.Years
}

// Release returns the configured release for year.
func (t *Tables) Release(year int) (model.Release, bool) {
	for _, r := range t.Releases {
		if r.Year == year {
			return r, true
		}
	}
	return model.Release{}, false
}

// Duplicates lists every overwritten key across all lookup maps, one line
// per key, prefixed with the table it belongs to.
func (t *Tables) Duplicates() []string {
	tables := []struct {
		name string
		m    LookupMap
	}{
		{"countries", t.Countries},
		{"legacy.commodities", t.Legacy.Commodities},
		{"legacy.preferred_types", t.Legacy.PreferredTypes},
		{"current.commodity_names", t.Current.CommodityNames},
	}
	var out []string
	for _, tbl := range tables {
		for _, d := range tbl.m.Duplicates {
			out = append(out, fmt.Sprintf("%s: key %q redefined at line %d (%q -> %q, last definition wins)",
				tbl.name, d.Key, d.Line, d.Previous, d.Value))
		}
	}
	return out
}

// Unmapped lists allow-list entries with no display-name mapping. Those pass
// through with their raw name, which is usually a mistake.
func (t *Tables) Unmapped() []string {
	var out []string
	for _, c := range t.Current.Commodities {
		if _, ok := t.Current.CommodityNames.Get(c); !ok {
			out = append(out, fmt.Sprintf("current.commodities: %q has no display name", c))
		}
	}
	for _, f := range t.Legacy.Files {
		code := CommodityCode(f)
		if _, ok := t.Legacy.Commodities.Get(code); !ok {
			out = append(out, fmt.Sprintf("legacy.files: %q (code %q) has no display name", f, code))
		}
	}
	return out
}

// CommodityCode derives the short commodity code from a legacy member name,
// e.g. "mcs2022-coppe_world.csv" gives "coppe".
func CommodityCode(member string) string {
	m := memberCodePattern.FindStringSubmatch(member)
	if m == nil {
		return UnknownCommodity
	}
	return m[1]
}
