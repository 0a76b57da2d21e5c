package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 4 << 20
)

// Client calls the OpenWeatherMap REST API. Each call is a single attempt
// bounded by the HTTP client's timeout.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	now func() time.Time
}

// NewClient returns a client for baseURL. An empty baseURL means
// DefaultBaseURL and a non-positive timeout means DefaultTimeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// Current returns the current weather for city.
func (c *Client) Current(ctx context.Context, city string) (Snapshot, error) {
	var payload owmCurrent
	if err := c.get(ctx, "/weather", city, &payload); err != nil {
		return Snapshot{}, err
	}
	s, err := payload.snapshot(c.now())
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return s, nil
}

// Forecast returns the 5-day, 3-hour step forecast for city.
func (c *Client) Forecast(ctx context.Context, city string) (Forecast, error) {
	var payload owmForecast
	if err := c.get(ctx, "/forecast", city, &payload); err != nil {
		return Forecast{}, err
	}
	f, err := payload.forecast()
	if err != nil {
		return Forecast{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return f, nil
}

func (c *Client) get(ctx context.Context, path, city string, v any) error {
	if c.APIKey == "" {
		return ErrNotConfigured
	}

	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	u.RawQuery = url.Values{
		"q":     {city},
		"appid": {c.APIKey},
		"units": {"metric"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		// *url.Error carries the request URL, and with it the API key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("%w: get %s: %v", ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrCityNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: get %s: status %d", ErrUpstream, path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return nil
}
