package clob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Auth carries CLOB trading credentials. An empty APIKey means the client is
// read-only: quote and book reads still work, submissions are refused.
type Auth struct {
	APIKey     string
	APISecret  string
	Passphrase string
	Address    string
}

type Client struct {
	host       string
	dataHost   string
	httpClient *http.Client
	auth       Auth
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string, auth Auth) *Client {
	if host == "" {
		host = "https://clob.polymarket.com"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		dataHost:   "https://data-api.polymarket.com",
		httpClient: httpClient,
		auth:       auth,
	}
}

// ReadOnly reports whether the client lacks trading credentials. Callers must
// check this before submission instead of relying on a rejected request.
func (c *Client) ReadOnly() bool {
	return c == nil || strings.TrimSpace(c.auth.APIKey) == ""
}

func (c *Client) doRequest(ctx context.Context, host, path string, query url.Values) ([]byte, error) {
	fullURL := host + path
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

func (c *Client) GetMidpoint(ctx context.Context, tokenID string) (Decimal, error) {
	if tokenID == "" {
		return Decimal{}, fmt.Errorf("token_id is required")
	}
	query := url.Values{}
	query.Set("token_id", tokenID)
	body, err := c.doRequest(ctx, c.host, "/midpoint", query)
	if err != nil {
		return Decimal{}, err
	}
	return parseMid(body)
}

func (c *Client) GetBook(ctx context.Context, tokenID string) (*OrderBook, error) {
	if tokenID == "" {
		return nil, fmt.Errorf("token_id is required")
	}
	query := url.Values{}
	query.Set("token_id", tokenID)
	body, err := c.doRequest(ctx, c.host, "/book", query)
	if err != nil {
		return nil, err
	}
	return parseOrderBook(body)
}

// GetPositions returns the holder's current positions from the data API,
// normalized from the upstream's loosely-typed rows.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	addr := strings.TrimSpace(c.auth.Address)
	if addr == "" {
		return nil, fmt.Errorf("address is required for positions")
	}
	query := url.Values{}
	query.Set("user", addr)
	body, err := c.doRequest(ctx, c.dataHost, "/positions", query)
	if err != nil {
		return nil, err
	}
	return parsePositions(body)
}
