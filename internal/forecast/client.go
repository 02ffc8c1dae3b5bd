// Package forecast calls the external AI forecast endpoint and decodes its
// payload into a strict typed intermediate. Absent or null numeric fields stay
// nil so the caller can apply documented defaults instead of propagating NaN.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"agripulse-api/internal/models"
)

// ErrMalformed marks provider responses that could not be decoded.
var ErrMalformed = errors.New("malformed provider response")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=forecast_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Payload is the provider's forecast as received, before any derivation.
// Pointer numerics distinguish "absent" from zero.
type Payload struct {
	Price              *float64         `json:"price"`
	Trend              string           `json:"trend"`
	PriceChange        *float64         `json:"priceChange"`
	Analysis           string           `json:"analysis"`
	Recommendations    []string         `json:"recommendations"`
	Features           []models.Feature `json:"features"`
	NextWeekProjection *float64         `json:"nextWeekProjection"`
	Confidence         *float64         `json:"confidence"`
}

type request struct {
	Commodity string `json:"commodity"`
	Unit      string `json:"unit"`
}

// Client is a client for the forecast provider endpoint.
type Client struct {
	url        string
	apiKey     string
	commodity  string
	unit       string
	timeout    time.Duration
	httpClient HTTPClient
}

// Option is a configuration option for the forecast client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds each Fetch call. This is distinct from any
// transport-level timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCommodity sets the commodity named in the request body.
func WithCommodity(commodity, unit string) Option {
	return func(c *Client) {
		if commodity != "" {
			c.commodity = commodity
		}
		if unit != "" {
			c.unit = unit
		}
	}
}

// New creates a forecast client. url and apiKey may be empty; use Configured
// to check before calling Fetch.
func New(url, apiKey string, options ...Option) *Client {
	c := &Client{
		url:       url,
		apiKey:    apiKey,
		commodity: "copra",
		unit:      "kg",
		timeout:   12 * time.Second,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Configured reports whether the endpoint and credential are both set.
func (c *Client) Configured() bool {
	return c.url != "" && c.apiKey != ""
}

// Fetch requests a structured forecast payload. The call is bounded by the
// client timeout regardless of the parent context.
func (c *Client) Fetch(ctx context.Context) (*Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(request{Commodity: c.commodity, Unit: c.unit})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, raw)
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &payload, nil
}
