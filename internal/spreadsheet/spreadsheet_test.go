package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
)

func TestEncodeLayout(t *testing.T) {
	obs := []model.Observation{
		{Country: "Chile", Commodity: "Cobre", Year: 2020, Value: model.Float(100)},
		{Country: "Peru", Commodity: "Cobre", Year: 2021, Value: nil},
		{Country: "Estados Unidos", Commodity: "Lítio", Year: 2023, Value: model.Float(12000.5)},
	}

	data, err := Encode(obs)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if diff := cmp.Diff([]string{SheetName}, f.GetSheetList()); diff != "" {
		t.Errorf("sheets (-want +got):\n%s", diff)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	want := [][]string{
		{"Country", "Commodity", "Year", "Value"},
		{"Chile", "Cobre", "2020", "100"},
		{"Peru", "Cobre", "2021"},
		{"Estados Unidos", "Lítio", "2023", "12000.5"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}

	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(obs, back); diff != "" {
		t.Errorf("decoded (-want +got):\n%s", diff)
	}
}

func TestEncodeEmptyTableHasHeader(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(back) != 0 {
		t.Errorf("got %d rows", len(back))
	}
}

func TestDecodeRejectsForeignWorkbook(t *testing.T) {
	f := excelize.NewFile()
	if err := f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Pais", "Valor"}); err != nil {
		t.Fatal(err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(buf.Bytes()); err == nil {
		t.Errorf("expected a header error")
	}
	if _, err := Decode([]byte("not a workbook")); err == nil {
		t.Errorf("expected an open error")
	}
}
