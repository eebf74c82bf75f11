// Package rescueapi provides a client for the rescue operations backend:
// shelters, rescue teams, victims, messages, team assignment, disaster alert
// broadcasts and ward boundary GeoJSON.
package rescueapi

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

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dispatch-console/internal/metrics"
	"github.com/sells-group/dispatch-console/internal/resilience"
)

// Client defines the rescue backend operations.
type Client interface {
	// Shelters lists shelter records as the backend returns them.
	Shelters(ctx context.Context) ([]map[string]any, error)
	// Teams lists rescue team records.
	Teams(ctx context.Context) ([]map[string]any, error)
	// Victims lists victim records.
	Victims(ctx context.Context) ([]map[string]any, error)
	// Messages lists inbound messages.
	Messages(ctx context.Context) ([]map[string]any, error)
	// AssignTeam sends a team to a coordinate and returns the updated team record.
	AssignTeam(ctx context.Context, teamID string, lat, lng float64) (map[string]any, error)
	// UnassignTeam clears a team's assignment.
	UnassignTeam(ctx context.Context, teamID string) error
	// SendAlert broadcasts a disaster alert to the given contact numbers.
	SendAlert(ctx context.Context, message string, numbers []string) (map[string]any, error)
	// StaticBoundaries fetches the full ward FeatureCollection.
	StaticBoundaries(ctx context.Context) ([]byte, error)
	// Boundaries fetches the ward FeatureCollection for a viewport.
	Boundaries(ctx context.Context, zoom int, b Bounds) ([]byte, error)
}

// Bounds is a viewport box. It marshals to the corner-object shape the
// boundaries endpoint expects.
type Bounds struct {
	South float64
	West  float64
	North float64
	East  float64
}

type corner struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MarshalJSON encodes the box as {"_southWest":{...},"_northEast":{...}}.
func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SouthWest corner `json:"_southWest"`
		NorthEast corner `json:"_northEast"`
	}{
		SouthWest: corner{Lat: b.South, Lng: b.West},
		NorthEast: corner{Lat: b.North, Lng: b.East},
	})
}

// Option configures the rescue backend client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithToken forwards a bearer token on every request.
func WithToken(token string) Option {
	return func(c *httpClient) {
		c.token = token
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

// WithRetry sets the retry policy used for reads.
func WithRetry(p resilience.RetryPolicy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	retry   resilience.RetryPolicy
}

// NewClient creates a rescue backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(10), 5),
		retry:   resilience.RetryPolicy{Attempts: 3, Initial: 250 * time.Millisecond, Jitter: 0.2},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewBreaker(resilience.BreakerConfig{
			OnChange: func(from, to resilience.State) {
				zap.L().Warn("rescueapi: circuit state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	return c
}

func (c *httpClient) Shelters(ctx context.Context) ([]map[string]any, error) {
	return c.list(ctx, "shelters", "/api/shelters")
}

func (c *httpClient) Teams(ctx context.Context) ([]map[string]any, error) {
	return c.list(ctx, "teams", "/api/rescue-ops/teams")
}

func (c *httpClient) Victims(ctx context.Context) ([]map[string]any, error) {
	return c.list(ctx, "victims", "/api/victims")
}

func (c *httpClient) Messages(ctx context.Context) ([]map[string]any, error) {
	return c.list(ctx, "messages", "/api/messages/")
}

func (c *httpClient) AssignTeam(ctx context.Context, teamID string, lat, lng float64) (map[string]any, error) {
	body := map[string]float64{"latitude": lat, "longitude": lng}
	path := "/api/rescue-ops/teams/" + url.PathEscape(teamID) + "/assign"

	raw, err := c.send(ctx, "assign", http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return decodeObject(raw, "assign")
}

func (c *httpClient) UnassignTeam(ctx context.Context, teamID string) error {
	path := "/api/rescue-ops/teams/" + url.PathEscape(teamID) + "/unassign"
	_, err := c.send(ctx, "unassign", http.MethodPost, path, nil)
	return err
}

func (c *httpClient) SendAlert(ctx context.Context, message string, numbers []string) (map[string]any, error) {
	if numbers == nil {
		numbers = []string{}
	}
	body := struct {
		DisasterName string   `json:"disaster_name"`
		Numbers      []string `json:"numbers"`
	}{DisasterName: message, Numbers: numbers}

	raw, err := c.send(ctx, "alert", http.MethodPost, "/api/disaster_alert", body)
	if err != nil {
		return nil, err
	}
	return decodeObject(raw, "alert")
}

func (c *httpClient) StaticBoundaries(ctx context.Context) ([]byte, error) {
	return c.read(ctx, "static_boundaries", "/api/map/mumbai-map")
}

func (c *httpClient) Boundaries(ctx context.Context, zoom int, b Bounds) ([]byte, error) {
	box, err := json.Marshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "rescueapi: encode bounds")
	}
	q := url.Values{}
	q.Set("zoom", strconv.Itoa(zoom))
	q.Set("bounds", string(box))
	return c.read(ctx, "boundaries", "/api/map/boundaries?"+q.Encode())
}

func (c *httpClient) list(ctx context.Context, endpoint, path string) ([]map[string]any, error) {
	raw, err := c.read(ctx, endpoint, path)
	if err != nil {
		return nil, err
	}
	return decodeList(raw, endpoint)
}

// read performs a GET with retries on transient failures.
func (c *httpClient) read(ctx context.Context, endpoint, path string) ([]byte, error) {
	p := c.retry
	p.Name = endpoint
	return resilience.Retry(ctx, p, func(ctx context.Context) ([]byte, error) {
		return c.send(ctx, endpoint, http.MethodGet, path, nil)
	})
}

// send performs one request through the limiter and the breaker. Mutations
// call it directly and are never retried.
func (c *httpClient) send(ctx context.Context, endpoint, method, path string, payload any) ([]byte, error) {
	started := time.Now()
	body, err := resilience.DoValue(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, method, path, payload)
	})
	metrics.ObserveBackend(endpoint, started, err)
	if err != nil {
		zap.L().Debug("rescueapi: request failed",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.Error(err),
		)
	}
	return body, err
}

func (c *httpClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rescueapi: rate limit wait")
		}
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, eris.Wrap(err, "rescueapi: encode request")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "rescueapi: create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("rescueapi: %s %s", method, path))
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "rescueapi: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, data)
		if resilience.TransientStatus(resp.StatusCode) {
			return nil, resilience.Transient(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}
	return data, nil
}

// decodeList accepts a bare JSON array or an object wrapping one under
// "data", "items" or "results".
func decodeList(raw []byte, endpoint string) ([]map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []map[string]any{}, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, eris.Wrapf(err, "rescueapi: decode %s", endpoint)
	}

	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		for _, key := range []string{"data", "items", "results", endpoint} {
			if arr, ok := t[key].([]any); ok {
				items = arr
				break
			}
		}
		if items == nil {
			return nil, eris.Errorf("rescueapi: decode %s: no record list in response", endpoint)
		}
	default:
		return nil, eris.Errorf("rescueapi: decode %s: unexpected %T", endpoint, v)
	}

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func decodeObject(raw []byte, endpoint string) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, eris.Wrapf(err, "rescueapi: decode %s", endpoint)
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"result": v}, nil
}
