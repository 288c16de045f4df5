// internal/adapter/search/client.go

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"roomscope/internal/domain/room"
)

// Client calls the remote room search service over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a search client. The timeout bounds each page request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP creates a search client with a caller-supplied http.Client
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Search requests one page of rooms from GET {base}/rooms/search
func (c *Client) Search(ctx context.Context, q room.SearchQuery) (room.SearchPage, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(q.Center.Lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(q.Center.Lng, 'f', -1, 64))
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("size", strconv.Itoa(q.PageSize))
	params.Set("radius", strconv.FormatFloat(q.RadiusMeters, 'f', -1, 64))
	if q.Category != "" {
		params.Set("category", string(q.Category))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rooms/search?"+params.Encode(), nil)
	if err != nil {
		return room.SearchPage{}, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return room.SearchPage{}, fmt.Errorf("error calling search service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return room.SearchPage{}, fmt.Errorf("search service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page room.SearchPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return room.SearchPage{}, fmt.Errorf("error decoding search response: %w", err)
	}

	return page, nil
}
