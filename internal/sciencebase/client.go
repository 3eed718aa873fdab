// Package sciencebase fetches release items and their world archives from
// the ScienceBase catalog.
//
// An item is read from {base}/catalog/item/{id}?format=json. Its "files"
// list names every attachment with a direct download URL; the world data
// archives are the attachments whose name ends in .zip and contains "world".
package sciencebase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/ginjaninja78/mineral-stats-etl/internal/archive"
	"github.com/ginjaninja78/mineral-stats-etl/internal/logging"
	"github.com/ginjaninja78/mineral-stats-etl/internal/model"
)

const userAgent = "mcsetl/1.0"

// File is an attachment of a catalog item.
type File struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// IsWorldArchive reports whether f is a world data archive.
func (f File) IsWorldArchive() bool {
	name := strings.ToLower(f.Name)
	return strings.HasSuffix(name, ".zip") && strings.Contains(name, "world")
}

// Item is a catalog item.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Files []File `json:"files"`
}

// Client talks to the catalog.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Log     logging.Logger
}

// NewClient creates a client for the catalog at baseURL.
func NewClient(baseURL string, log logging.Logger) *Client {
	if log == nil {
		log = logging.Discard()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
		Log:     log,
	}
}

// Item fetches the metadata of a catalog item.
func (c *Client) Item(ctx context.Context, id string) (*Item, error) {
	endpoint := fmt.Sprintf("%s/catalog/item/%s?format=json", c.BaseURL, url.PathEscape(id))
	body, err := c.get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %s: %w", id, err)
	}

	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("failed to decode item %s: %w", id, err)
	}
	if item.ID == "" {
		item.ID = id
	}
	return &item, nil
}

// Download reads the full content at rawURL.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	return c.get(ctx, rawURL, "")
}

// FetchArchives fetches the item of a release and downloads every world
// archive attached to it. A failed item fetch or download aborts, so a release
// is never processed partially.
//
// RETURNS:
//   - The item, for its title.
//   - The archives, in attachment order. An item with no world archive is
//     logged as a warning and yields none.
func (c *Client) FetchArchives(ctx context.Context, release model.Release) (*Item, []archive.Archive, error) {
	item, err := c.Item(ctx, release.ItemID)
	if err != nil {
		return nil, nil, err
	}
	c.Log.Info("PROCESSING RELEASE: %s", item.Title)

	var archives []archive.Archive
	for _, f := range item.Files {
		if !f.IsWorldArchive() {
			continue
		}
		c.Log.Info("Downloading ZIP: %s", strings.ToLower(f.Name))
		data, err := c.Download(ctx, f.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}
		c.Log.Debug("Downloaded %s (%d bytes)", f.Name, len(data))
		archives = append(archives, archive.Archive{Name: f.Name, Data: data})
	}

	if len(archives) == 0 {
		c.Log.Warn("No world archive attached to release %d (%s)", release.Year, release.ItemID)
	}
	return item, archives, nil
}

func (c *Client) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("request failed (%s): %s", resp.Status, snippet(body))
	}
	return body, nil
}

// snippet shortens a response body for error messages.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
