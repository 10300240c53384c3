package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// PlaceResolverClient implements EnrichmentProvider against the place
// resolver HTTP API.
type PlaceResolverClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewPlaceResolverClient creates a client that issues at most ratePerSec calls
// per second. A non-positive rate disables spacing.
func NewPlaceResolverClient(baseURL, apiKey string, ratePerSec float64) *PlaceResolverClient {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &PlaceResolverClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

type resolveResponse struct {
	MID  string `json:"mid"`
	Name string `json:"name"`
}

// ResolvePlace makes one attempt; failures are returned, never retried.
func (c *PlaceResolverClient) ResolvePlace(ctx context.Context, placeURL string) (PlaceDetails, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return PlaceDetails{}, fmt.Errorf("place resolver rate wait: %w", err)
	}

	q := url.Values{}
	q.Set("url", placeURL)

	var resp resolveResponse
	if err := c.doRequest(ctx, "/v1/places/resolve?"+q.Encode(), &resp); err != nil {
		return PlaceDetails{}, fmt.Errorf("place resolver: %w", err)
	}
	return PlaceDetails{
		MID:  strings.TrimSpace(resp.MID),
		Name: strings.TrimSpace(resp.Name),
	}, nil
}

func (c *PlaceResolverClient) doRequest(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
