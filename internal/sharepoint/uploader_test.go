package sharepoint

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ginjaninja78/mineral-stats-etl/internal/logging"
	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
	"github.com/ginjaninja78/mineral-stats-etl/internal/spreadsheet"
)

var table = []model.Observation{
	{Country: "Chile", Commodity: "Cobre", Year: 2020, Value: model.Float(100)},
}

func target(siteURL string) Target {
	return Target{
		SiteURL:  siteURL,
		SitePath: "/sites/Minerals",
		Library:  "Shared Documents",
		Folder:   "USGS",
		FileName: "ProdUSGS20-24.xlsx",
	}
}

func TestEndpoint(t *testing.T) {
	got := target("https://contoso.sharepoint.com").Endpoint()
	want := "https://contoso.sharepoint.com/sites/Minerals/_api/web/GetFolderByServerRelativeUrl('Shared Documents/USGS')/Files/add(url='ProdUSGS20-24.xlsx',overwrite=true)"
	if got != want {
		t.Errorf("Endpoint() =\n%s\nwant\n%s", got, want)
	}
}

func TestUploadCreated(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if !strings.HasPrefix(r.URL.Path, "/sites/Minerals/_api/web/GetFolderByServerRelativeUrl(") {
			t.Errorf("path = %s", r.URL.Path)
		}
		headers := map[string]string{
			"Authorization":     "Bearer tok",
			"Accept":            "application/json;odata=verbose",
			"Content-Type":      "application/octet-stream",
			"Client-Request-Id": "run-1",
		}
		for k, v := range headers {
			if got := r.Header.Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"d":{"ServerRelativeUrl":"/sites/Minerals/Shared Documents/USGS/ProdUSGS20-24.xlsx"}}`)
	}))
	defer server.Close()

	u := NewUploader(nil, "run-1")
	result := u.Upload(context.Background(), "tok", target(server.URL), table)

	if !result.Success || result.Error != nil {
		t.Fatalf("result = %+v", result)
	}
	if result.FileURL != server.URL+"/sites/Minerals/Shared Documents/USGS/ProdUSGS20-24.xlsx" {
		t.Errorf("FileURL = %q", result.FileURL)
	}
	decoded, err := spreadsheet.Decode(received)
	if err != nil {
		t.Fatalf("uploaded body is not a workbook: %v", err)
	}
	if diff := cmp.Diff(table, decoded); diff != "" {
		t.Errorf("uploaded rows (-want +got):\n%s", diff)
	}
}

func TestUploadFailureIsReported(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json body", `{"error":{"code":"-2130575251","message":"denied"}}`, "\n  \"error\": {"},
		{"text body", "Forbidden", "Forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()
			rec := &logging.Recorder{}

			result := NewUploader(rec, "").Upload(context.Background(), "tok", target(server.URL), table)

			if result.Success || result.Error == nil || result.StatusCode != http.StatusForbidden {
				t.Errorf("result = %+v", result)
			}
			if !strings.Contains(result.Response, tt.want) {
				t.Errorf("Response = %q, want it to contain %q", result.Response, tt.want)
			}
			if rec.Count("error") == 0 {
				t.Errorf("failure not logged")
			}
		})
	}
}

func TestUploadConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	result := NewUploader(nil, "").Upload(context.Background(), "tok", target(url), table)
	if result.Success || result.Error == nil || result.StatusCode != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestUploadGuards(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()
	u := NewUploader(nil, "")

	noFolder := target(server.URL)
	noFolder.Folder = " "

	tests := []struct {
		name   string
		token  string
		target Target
		table  []model.Observation
		want   error
	}{
		{"blank token", "", target(server.URL), table, ErrMissingParameter},
		{"blank folder", "tok", noFolder, table, ErrMissingParameter},
		{"empty table", "tok", target(server.URL), nil, ErrEmptyTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := u.Upload(context.Background(), tt.token, tt.target, tt.table)
			if !errors.Is(result.Error, tt.want) {
				t.Errorf("Error = %v, want %v", result.Error, tt.want)
			}
		})
	}
	if calls != 0 {
		t.Errorf("guards made %d requests", calls)
	}
}
