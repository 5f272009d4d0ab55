package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPClient talks to the hosted record store's REST API. Endpoints follow
// the table-API convention: GET/POST {base}/{baseID}/{table} and
// GET/PATCH/DELETE {base}/{baseID}/{table}/{recordID}, bearer-token auth.
type HTTPClient struct {
	APIKey  string
	BaseURL string // https://api.example.com/v0
	BaseID  string
	HTTP    *http.Client
}

// NewHTTPClient creates a record store client.
func NewHTTPClient(apiKey, baseURL, baseID string) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.airtable.com/v0"
	}
	return &HTTPClient{
		APIKey:  apiKey,
		BaseURL: baseURL,
		BaseID:  baseID,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// List fetches records from a table, following pagination offsets until
// the query's MaxRecords (or the table end) is reached.
func (c *HTTPClient) List(ctx context.Context, table string, q Query) ([]Record, error) {
	var out []Record
	offset := ""
	for {
		params := url.Values{}
		if q.Formula != "" {
			params.Set("filterByFormula", q.Formula)
		}
		if q.MaxRecords > 0 {
			params.Set("maxRecords", strconv.Itoa(q.MaxRecords))
		}
		if offset != "" {
			params.Set("offset", offset)
		}
		endpoint := c.tableURL(table)
		if enc := params.Encode(); enc != "" {
			endpoint += "?" + enc
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Records...)

		if page.Offset == "" || (q.MaxRecords > 0 && len(out) >= q.MaxRecords) {
			break
		}
		offset = page.Offset
	}
	if q.MaxRecords > 0 && len(out) > q.MaxRecords {
		out = out[:q.MaxRecords]
	}
	return out, nil
}

// Get fetches a single record by ID.
func (c *HTTPClient) Get(ctx context.Context, table, id string) (Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodGet, c.tableURL(table)+"/"+url.PathEscape(id), nil, &rec)
	return rec, err
}

// Create inserts a record and returns it with the store-assigned ID.
func (c *HTTPClient) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodPost, c.tableURL(table), map[string]any{"fields": fields, "typecast": true}, &rec)
	return rec, err
}

// Update patches the given fields, leaving the rest untouched.
func (c *HTTPClient) Update(ctx context.Context, table, id string, fields Fields) (Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodPatch, c.tableURL(table)+"/"+url.PathEscape(id), map[string]any{"fields": fields, "typecast": true}, &rec)
	return rec, err
}

// Delete removes a record.
func (c *HTTPClient) Delete(ctx context.Context, table, id string) error {
	return c.do(ctx, http.MethodDelete, c.tableURL(table)+"/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", c.BaseURL, url.PathEscape(c.BaseID), url.PathEscape(table))
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("record store request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("record store %s %s: HTTP %d: %s", method, endpoint, resp.StatusCode, truncate(string(data), 200))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode record store response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
