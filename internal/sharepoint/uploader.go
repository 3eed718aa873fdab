// =============================================================================
// Mineral Statistics ETL - Document Library Uploader
// =============================================================================
//
// Uploads the final workbook to a folder of a SharePoint document library
// through the REST API:
//
//   POST {site root}{site path}/_api/web/
//        GetFolderByServerRelativeUrl('{library}/{folder}')/Files/
//        add(url='{file name}',overwrite=true)
//
// The body is the workbook itself. A 200 or 201 answer carries the created
// file's server-relative URL in d.ServerRelativeUrl.
//
// ERROR HANDLING:
//   Upload problems never panic and never abort the process on their own:
//   they are returned in the Result and logged. Guard failures (blank
//   parameter, empty table) make no network call at all.
//
// =============================================================================

package sharepoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/ginjaninja78/mineral-stats-etl/internal/logging"
	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
	"github.com/ginjaninja78/mineral-stats-etl/internal/spreadsheet"
)

var (
	// ErrMissingParameter is returned when the token or a target field is
	// blank.
	ErrMissingParameter = errors.New("sharepoint: token, site URL, site path, library, folder and file name are all required")

	// ErrEmptyTable is returned when there is nothing to upload.
	ErrEmptyTable = errors.New("sharepoint: the table to upload is empty")
)

// Target is the destination of an upload.
type Target struct {
	// SiteURL is the site root, e.g. https://contoso.sharepoint.com
	SiteURL string

	// SitePath is the site below the root, e.g. /sites/Minerals
	SitePath string

	// Library is the document library, e.g. Shared Documents
	Library string

	// Folder is the folder inside the library.
	Folder string

	// FileName is the name the workbook is stored under.
	FileName string
}

// Endpoint returns the "add file" URL of the target.
func (t Target) Endpoint() string {
	return fmt.Sprintf("%s%s/_api/web/GetFolderByServerRelativeUrl('%s/%s')/Files/add(url='%s',overwrite=true)",
		t.SiteURL, t.SitePath, t.Library, t.Folder, t.FileName)
}

func (t Target) complete() bool {
	for _, v := range []string{t.SiteURL, t.SitePath, t.Library, t.Folder, t.FileName} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Result is the outcome of an upload.
type Result struct {
	// Success is true for a 200 or 201 answer.
	Success bool

	// StatusCode is the HTTP status, zero if no request completed.
	StatusCode int

	// FileURL is the absolute URL of the stored file, when the answer
	// carried one.
	FileURL string

	// Response is the answer body, pretty-printed when it is JSON.
	Response string

	// Bytes is the size of the uploaded workbook.
	Bytes int

	// Error describes why the upload did not succeed.
	Error error
}

// Uploader posts workbooks to a document library.
type Uploader struct {
	HTTP *http.Client
	Log  logging.Logger

	// RequestID is sent as client-request-id so that the upload can be
	// traced on the server side.
	RequestID string
}

// NewUploader creates an Uploader.
func NewUploader(log logging.Logger, requestID string) *Uploader {
	if log == nil {
		log = logging.Discard()
	}
	return &Uploader{HTTP: &http.Client{}, Log: log, RequestID: requestID}
}

// Upload encodes observations and uploads them to target.
//
// PARAMETERS:
//   - ctx: Cancels the request.
//   - token: Bearer token for the site.
//   - target: Destination folder and file name.
//   - observations: The table to upload.
//
// RETURNS:
//   - The upload Result. Result.Error is set on any failure.
func (u *Uploader) Upload(ctx context.Context, token string, target Target, observations []model.Observation) *Result {
	if strings.TrimSpace(token) == "" || !target.complete() {
		u.Log.Error("%v", ErrMissingParameter)
		return &Result{Error: ErrMissingParameter}
	}
	if len(observations) == 0 {
		u.Log.Error("%v", ErrEmptyTable)
		return &Result{Error: ErrEmptyTable}
	}

	data, err := spreadsheet.Encode(observations)
	if err != nil {
		u.Log.Error("Failed to build the workbook: %v", err)
		return &Result{Error: err}
	}
	return u.UploadBytes(ctx, token, target, data)
}

// UploadBytes uploads an already encoded workbook to target.
func (u *Uploader) UploadBytes(ctx context.Context, token string, target Target, data []byte) *Result {
	if strings.TrimSpace(token) == "" || !target.complete() {
		u.Log.Error("%v", ErrMissingParameter)
		return &Result{Error: ErrMissingParameter}
	}
	if len(data) == 0 {
		u.Log.Error("%v", ErrEmptyTable)
		return &Result{Error: ErrEmptyTable}
	}

	result := &Result{Bytes: len(data)}
	endpoint := target.Endpoint()

	u.Log.Info("Uploading '%s' to folder '%s'", target.FileName, target.Folder)
	u.Log.Debug("API URL: %s", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		result.Error = fmt.Errorf("sharepoint: failed to build request: %w", err)
		u.Log.Error("%v", result.Error)
		return result
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json;odata=verbose")
	req.Header.Set("Content-Type", "application/octet-stream")
	if u.RequestID != "" {
		req.Header.Set("client-request-id", u.RequestID)
	}

	resp, err := u.HTTP.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("sharepoint: connection error during upload: %w", err)
		u.Log.Error("%v", result.Error)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Error = fmt.Errorf("sharepoint: failed to read response: %w", err)
		u.Log.Error("%v", result.Error)
		return result
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		result.Success = true
		u.Log.Info("File '%s' uploaded. Status code: %d", target.FileName, resp.StatusCode)
		if path := serverRelativeURL(body); path != "" {
			result.FileURL = target.SiteURL + path
			u.Log.Info("File URL: %s", result.FileURL)
		}
		return result
	}

	result.Response = formatBody(body)
	result.Error = fmt.Errorf("sharepoint: upload failed with status %d", resp.StatusCode)
	u.Log.Error("Upload failed. Status code: %d", resp.StatusCode)
	u.Log.Error("Server response:\n%s", result.Response)
	return result
}

// serverRelativeURL extracts d.ServerRelativeUrl from a verbose OData
// answer.
func serverRelativeURL(body []byte) string {
	var envelope struct {
		D struct {
			ServerRelativeURL string `json:"ServerRelativeUrl"`
		} `json:"d"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.D.ServerRelativeURL
}

// formatBody pretty-prints a JSON body and returns anything else as text.
func formatBody(body []byte) string {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(body)
	}
	return string(pretty)
}
