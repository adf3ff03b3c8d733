package gamma

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://gamma-api.polymarket.com"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// ListOpenMarkets returns the open up/down markets of a series that close
// within the horizon. Zero markets is a normal result, not an error.
func (c *Client) ListOpenMarkets(ctx context.Context, seriesSlug string, horizon time.Duration) ([]Market, error) {
	query := url.Values{}
	query.Set("closed", "false")
	query.Set("active", "true")
	query.Set("limit", "100")
	query.Set("order", "endDate")
	query.Set("ascending", "true")
	body, err := c.doRequest(ctx, "/markets", query)
	if err != nil {
		return nil, err
	}
	all, err := parseMarkets(body)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	cutoff := now.Add(horizon)
	out := make([]Market, 0, 4)
	for _, m := range all {
		if !strings.HasPrefix(m.Slug, seriesSlug) {
			continue
		}
		if m.EndTime.IsZero() || m.EndTime.Before(now) || m.EndTime.After(cutoff) {
			continue
		}
		if m.UpTokenID == "" || m.DownTokenID == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ListResolvedMarkets returns closed markets of a series whose end time falls
// within the lookback window, newest first.
func (c *Client) ListResolvedMarkets(ctx context.Context, seriesSlug string, sinceDays int) ([]Market, error) {
	if sinceDays <= 0 {
		sinceDays = 1
	}
	query := url.Values{}
	query.Set("closed", "true")
	query.Set("limit", strconv.Itoa(sinceDays * 48))
	query.Set("order", "endDate")
	query.Set("ascending", "false")
	body, err := c.doRequest(ctx, "/markets", query)
	if err != nil {
		return nil, err
	}
	all, err := parseMarkets(body)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().Add(-time.Duration(sinceDays) * 24 * time.Hour)
	out := make([]Market, 0, len(all))
	for _, m := range all {
		if !strings.HasPrefix(m.Slug, seriesSlug) {
			continue
		}
		if m.EndTime.IsZero() || m.EndTime.Before(cutoff) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
