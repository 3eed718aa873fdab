package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ginjaninja78/mineral-stats-etl/internal/archive"
	"github.com/ginjaninja78/mineral-stats-etl/internal/config"
	"github.com/ginjaninja78/mineral-stats-etl/internal/logging"
	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
)

// newArchive builds a world archive from name/content pairs.
func newArchive(t *testing.T, pairs ...string) archive.Archive {
	t.Helper()
	var names []string
	files := make(map[string][]byte)
	for i := 0; i+1 < len(pairs); i += 2 {
		names = append(names, pairs[i])
		files[pairs[i]] = []byte(pairs[i+1])
	}
	arc, err := archive.Build("MCS_World_Data.zip", names, files)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return arc
}

func defaultTables(t *testing.T) *config.Tables {
	t.Helper()
	tables, err := config.DefaultTables()
	if err != nil {
		t.Fatalf("DefaultTables: %v", err)
	}
	return tables
}

func legacyTables() *config.Tables {
	return &config.Tables{
		Legacy: config.LegacyTables{
			Years: []int{2020, 2021, 2022},
			Files: []string{
				"mcs2022-coppe_world.csv",
				"mcs2022-alumi_world.csv",
				"mcs2022-zinc_world.csv",
			},
			Commodities:    config.NewLookupMap("coppe", "Cobre", "alumi", "Alumínio"),
			PreferredTypes: config.NewLookupMap("alumi", "smelter production"),
			CSV:            config.CSVSettings{Delimiter: ",", Encoding: "UTF-8"},
		},
		Countries: config.NewLookupMap("chile", "Chile", "china", "China"),
	}
}

func run(t *testing.T, n Normalizer, arc archive.Archive) *Result {
	t.Helper()
	result, err := n.Normalize(arc)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return result
}

// =============================================================================
// LEGACY
// =============================================================================

func TestLegacySingleCommodityScenario(t *testing.T) {
	arc := newArchive(t,
		"MCS2022/mcs2022-coppe_world.csv",
		"Source,Country,Type,prod_t_2020,prod_t_2021,prod_t_2022,prod_t_2022_notes\n"+
			"MCS2022,Chile,Mine production,100,200,300,estimated\n",
		"MCS2022/mcs2022-gold_world.csv",
		"Country,prod_t_2020\nPeru,1\n",
	)

	result := run(t, NewLegacy(defaultTables(t), logging.Discard()), arc)

	want := []model.Row{
		{Country: "Chile", Commodity: "Cobre", Year: 2020, Value: model.Float(100)},
		{Country: "Chile", Commodity: "Cobre", Year: 2021, Value: model.Float(200)},
		{Country: "Chile", Commodity: "Cobre", Year: 2022, Value: model.Float(300)},
	}
	if diff := cmp.Diff(want, result.Rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
	if result.Files != 1 {
		t.Errorf("Files = %d, want 1 (unlisted member ignored)", result.Files)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestLegacyKilotonnesAreConverted(t *testing.T) {
	arc := newArchive(t,
		"mcs2022-coppe_world.csv",
		"Country,Prod_KT_2021,prod_t_2022\nChile,\"1,500\",7\nPeru,W,5\n",
	)
	result := run(t, NewLegacy(legacyTables(), logging.Discard()), arc)

	want := []model.Row{
		{Country: "Chile", Commodity: "Cobre", Year: 2021, Value: model.Float(1500000)},
		{Country: "Peru", Commodity: "Cobre", Year: 2021, Value: nil},
		{Country: "Chile", Commodity: "Cobre", Year: 2022, Value: model.Float(7)},
		{Country: "Peru", Commodity: "Cobre", Year: 2022, Value: model.Float(5)},
	}
	if diff := cmp.Diff(want, result.Rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestLegacyKilotonneScenario(t *testing.T) {
	arc := newArchive(t, "mcs2022-coppe_world.csv", "Country,prod_kt_2022\nChile,5\n")

	result := run(t, NewLegacy(legacyTables(), logging.Discard()), arc)

	if len(result.Rows) != 1 || *result.Rows[0].Value != 5000 {
		t.Errorf("rows = %+v, want one row with value 5000", result.Rows)
	}
}

func TestLegacyTypeHandling(t *testing.T) {
	tests := []struct {
		name      string
		member    string
		content   string
		wantRows  int
		wantWarns int
	}{
		{
			name:     "single type keeps every row",
			member:   "mcs2022-coppe_world.csv",
			content:  "Country,Type,prod_t_2020\nChile,Mine,1\nChina,Mine,2\n",
			wantRows: 2,
		},
		{
			name:     "no type values keeps every row",
			member:   "mcs2022-coppe_world.csv",
			content:  "Country,Type,prod_t_2020\nChile,,1\nChina,,2\n",
			wantRows: 2,
		},
		{
			name:     "no type column keeps every row",
			member:   "mcs2022-coppe_world.csv",
			content:  "Country,prod_t_2020\nChile,1\nChina,2\n",
			wantRows: 2,
		},
		{
			name:   "multiple types with a preferred type",
			member: "mcs2022-alumi_world.csv",
			content: "Country,Type,prod_t_2020\n" +
				"China,refinery production,10\n" +
				"China,smelter production,20\n" +
				"Chile,smelter production,30\n",
			wantRows: 2,
		},
		{
			name:   "multiple types without a preferred type",
			member: "mcs2022-zinc_world.csv",
			content: "Country,Type,prod_t_2020\n" +
				"China,Mine production,10\n" +
				"China,Refinery production,20\n",
			wantRows:  2,
			wantWarns: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &logging.Recorder{}
			result := run(t, NewLegacy(legacyTables(), rec), newArchive(t, tt.member, tt.content))

			if len(result.Rows) != tt.wantRows {
				t.Errorf("got %d rows, want %d", len(result.Rows), tt.wantRows)
			}
			if len(result.Warnings) != tt.wantWarns {
				t.Errorf("got warnings %v, want %d", result.Warnings, tt.wantWarns)
			}
			if rec.Count("warn") != tt.wantWarns {
				t.Errorf("logged %d warnings, want %d", rec.Count("warn"), tt.wantWarns)
			}
		})
	}
}

func TestLegacyPreferredTypeKeepsOnlyThatType(t *testing.T) {
	arc := newArchive(t, "mcs2022-alumi_world.csv",
		"Country,Type,prod_t_2020\n"+
			"China,refinery production,10\n"+
			"China,smelter production,20\n")

	result := run(t, NewLegacy(legacyTables(), logging.Discard()), arc)

	want := []model.Row{{Country: "China", Commodity: "Alumínio", Year: 2020, Value: model.Float(20)}}
	if diff := cmp.Diff(want, result.Rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestLegacyProductionColumnSelection(t *testing.T) {
	t.Run("reported columns win over estimates", func(t *testing.T) {
		arc := newArchive(t, "mcs2022-coppe_world.csv", "Country,prod_t_2020,prod_t_est_2021\nChile,1,2\n")
		result := run(t, NewLegacy(legacyTables(), logging.Discard()), arc)
		if len(result.Rows) != 1 || result.Rows[0].Year != 2020 {
			t.Errorf("rows = %+v", result.Rows)
		}
		if len(result.Warnings) != 0 {
			t.Errorf("unexpected warnings %v", result.Warnings)
		}
	})

	t.Run("estimates used and flagged when nothing is reported", func(t *testing.T) {
		arc := newArchive(t, "mcs2022-coppe_world.csv", "Country,prod_kt_est_2021,prod_kt_est_2021_notes\nChile,2,x\n")
		result := run(t, NewLegacy(legacyTables(), logging.Discard()), arc)
		want := []model.Row{{Country: "Chile", Commodity: "Cobre", Year: 2021, Value: model.Float(2000)}}
		if diff := cmp.Diff(want, result.Rows); diff != "" {
			t.Errorf("rows (-want +got):\n%s", diff)
		}
		if len(result.Warnings) != 1 {
			t.Errorf("warnings = %v, want one", result.Warnings)
		}
	})

	t.Run("file without production columns is skipped", func(t *testing.T) {
		arc := newArchive(t,
			"mcs2022-coppe_world.csv", "Country,reserves_t\nChile,1\n",
			"mcs2022-zinc_world.csv", "Country,prod_t_2020\nChina,4\n",
		)
		result := run(t, NewLegacy(legacyTables(), logging.Discard()), arc)
		if diff := cmp.Diff([]string{"mcs2022-coppe_world.csv"}, result.Skipped); diff != "" {
			t.Errorf("skipped (-want +got):\n%s", diff)
		}
		if len(result.Rows) != 1 || result.Rows[0].Commodity != "zinc" {
			t.Errorf("rows = %+v, want the zinc row with its raw code", result.Rows)
		}
	})
}

func TestLegacyYearWindowIsExact(t *testing.T) {
	arc := newArchive(t, "mcs2022-coppe_world.csv",
		"Country,prod_t_2018,prod_t_2019,prod_t_2020,prod_t_2021,prod_t_2022,prod_t_2023\nChile,1,2,3,4,5,6\n")

	result := run(t, NewLegacy(legacyTables(), logging.Discard()), arc)

	var years []int
	for _, r := range result.Rows {
		years = append(years, r.Year)
	}
	if diff := cmp.Diff([]int{2020, 2021, 2022}, years); diff != "" {
		t.Errorf("years (-want +got):\n%s", diff)
	}
}

func TestLegacyCountryFallbackAndEmptyRows(t *testing.T) {
	arc := newArchive(t, "mcs2022-coppe_world.csv",
		"Country,prod_t_2020\n"+
			"CHILE,1\n"+
			"Atlantis,2\n"+
			"Other,W\n"+
			",3\n"+
			",W\n")

	result := run(t, NewLegacy(legacyTables(), logging.Discard()), arc)

	want := []model.Row{
		{Country: "Chile", Commodity: "Cobre", Year: 2020, Value: model.Float(1)},
		{Country: "Atlantis", Commodity: "Cobre", Year: 2020, Value: model.Float(2)},
		{Country: "Other", Commodity: "Cobre", Year: 2020, Value: nil},
		{Country: "", Commodity: "Cobre", Year: 2020, Value: model.Float(3)},
	}
	if diff := cmp.Diff(want, result.Rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestLegacyCountryKeysWithNonBreakingSpaces(t *testing.T) {
	arc := newArchive(t, "MCS2022/mcs2022-coppe_world.csv",
		"Source,Country,Type,prod_t_2020\n"+
			"MCS2022,United\u00a0States,Mine production,10\n"+
			"MCS2022,Other countries\u00a0 ,Mine production,20\n"+
			"MCS2022,United States,Mine production,30\n")

	result := run(t, NewLegacy(defaultTables(t), logging.Discard()), arc)

	want := []model.Row{
		{Country: "Estados Unidos", Commodity: "Cobre", Year: 2020, Value: model.Float(10)},
		{Country: "Outros países", Commodity: "Cobre", Year: 2020, Value: model.Float(20)},
		{Country: "Estados Unidos", Commodity: "Cobre", Year: 2020, Value: model.Float(30)},
	}
	if diff := cmp.Diff(want, result.Rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

// =============================================================================
// CURRENT
// =============================================================================

func TestCurrentThousandMetricTonsScenario(t *testing.T) {
	arc := newArchive(t, "MCS2025_World_Data.csv",
		"COUNTRY,COMMODITY,UNIT_MEAS,PROD_2023\n"+
			"Chile,Copper ,Thousand Metric Tons,12\n")

	result := run(t, NewCurrent(defaultTables(t), logging.Discard()), arc)

	want := []model.Row{{Country: "Chile", Commodity: "Cobre", Year: 2023, Value: model.Float(12000), Unit: "metric tons"}}
	if diff := cmp.Diff(want, result.Rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestCurrentUnitsAndAllowList(t *testing.T) {
	arc := newArchive(t, "MCS2025_World_Data.csv",
		"COUNTRY,COMMODITY,UNIT_MEAS,PROD_2022,PROD_2023,PROD_2024,PROD_NOTES\n"+
			"United States ,Copper ,metric tons,1,2,3,x\n"+
			"Chile,Copper,metric tons,1,2,3,x\n"+
			" Atlantis ,Zinc,kilograms,\"4,000\",5,NA,x\n"+
			"China,Gold,metric tons,1,2,3,x\n")

	result := run(t, NewCurrent(defaultTables(t), logging.Discard()), arc)

	want := []model.Row{
		{Country: "Estados Unidos", Commodity: "Cobre", Year: 2023, Value: model.Float(2), Unit: "metric tons"},
		{Country: " Atlantis ", Commodity: "Zinco", Year: 2023, Value: model.Float(5), Unit: "kilograms"},
		{Country: "Estados Unidos", Commodity: "Cobre", Year: 2024, Value: model.Float(3), Unit: "metric tons"},
		{Country: " Atlantis ", Commodity: "Zinco", Year: 2024, Value: nil, Unit: "kilograms"},
	}
	if diff := cmp.Diff(want, result.Rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestCurrentSkipsMalformedMembers(t *testing.T) {
	arc := newArchive(t,
		"readme.txt", "not a table",
		"no_unit.csv", "COUNTRY,COMMODITY,PROD_2023\nChile,Zinc,1\n",
		"no_prod.csv", "COUNTRY,COMMODITY,UNIT_MEAS,RESERVES\nChile,Zinc,metric tons,1\n",
		"good.csv", "COUNTRY,COMMODITY,UNIT_MEAS,PROD_2024\nChile,Zinc,metric tons,9\n",
	)
	rec := &logging.Recorder{}

	result := run(t, NewCurrent(defaultTables(t), rec), arc)

	if diff := cmp.Diff([]string{"no_unit.csv", "no_prod.csv"}, result.Skipped); diff != "" {
		t.Errorf("skipped (-want +got):\n%s", diff)
	}
	if rec.Count("warn") != 2 {
		t.Errorf("logged %d warnings, want 2", rec.Count("warn"))
	}
	if result.Files != 1 || len(result.Rows) != 1 {
		t.Errorf("files=%d rows=%+v", result.Files, result.Rows)
	}
}

// =============================================================================
// STRATEGY SELECTION
// =============================================================================

func TestForSchema(t *testing.T) {
	tables := legacyTables()

	n, err := ForSchema(model.SchemaLegacy, tables, nil)
	if err != nil || n.Name() != "legacy" {
		t.Errorf("legacy: %v, %v", n, err)
	}
	n, err = ForSchema(model.SchemaCurrent, tables, nil)
	if err != nil || n.Name() != "current" {
		t.Errorf("current: %v, %v", n, err)
	}
	if _, err := ForSchema("modern", tables, nil); err == nil {
		t.Errorf("expected an error for an unknown schema")
	}
}

func TestCorruptArchiveIsAnError(t *testing.T) {
	n := NewLegacy(legacyTables(), logging.Discard())
	if _, err := n.Normalize(archive.Archive{Name: "bad.zip", Data: []byte("x")}); err == nil {
		t.Errorf("expected an error")
	}
}
