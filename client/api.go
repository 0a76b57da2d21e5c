// Package client talks to the weather server's REST API and keeps the
// client-side auth and weather state that a front end renders.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Weather struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Temperature int     `json:"temperature"`
	FeelsLike   int     `json:"feelsLike"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	Pressure    float64 `json:"pressure"`
	Visibility  float64 `json:"visibility"`
	Timestamp   string  `json:"timestamp"`
}

type ForecastItem struct {
	Datetime    string  `json:"datetime"`
	Temperature int     `json:"temperature"`
	FeelsLike   int     `json:"feelsLike"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	Pressure    float64 `json:"pressure"`
}

type Forecast struct {
	City     string         `json:"city"`
	Country  string         `json:"country"`
	Forecast []ForecastItem `json:"forecast"`
}

type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// APIError is a non-2xx response. Title and Message are the body's "error"
// and "message" fields.
type APIError struct {
	Status  int    `json:"-"`
	Title   string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	switch {
	case e.Title != "" && e.Message != "":
		return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Message)
	case e.Title != "":
		return fmt.Sprintf("%d %s", e.Status, e.Title)
	default:
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
}

// UserMessage picks the text to show for err: the response's message, else
// its error title, else fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Title != "" {
			return apiErr.Title
		}
	}
	return fallback
}

// API is a cookie-holding HTTP client for the server's endpoints.
type API struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPI returns a client for the server at baseURL. If httpClient is nil a
// client with a cookie jar is created; a client without a jar gets one.
func NewAPI(baseURL string, httpClient *http.Client) (*API, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

func (a *API) Register(ctx context.Context, username, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := a.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

func (a *API) Login(ctx context.Context, username, password string) (AuthResponse, error) {
	var out AuthResponse
	err := a.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	return out, err
}

func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me returns the user of the current session.
func (a *API) Me(ctx context.Context) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := a.do(ctx, http.MethodGet, "/api/auth/me", nil, &out)
	return out.User, err
}

func (a *API) CurrentWeather(ctx context.Context, city string) (Weather, error) {
	var out struct {
		Weather Weather `json:"weather"`
	}
	err := a.do(ctx, http.MethodGet, "/api/weather/current/"+url.PathEscape(city), nil, &out)
	return out.Weather, err
}

func (a *API) Forecast(ctx context.Context, city string) (Forecast, error) {
	var out Forecast
	err := a.do(ctx, http.MethodGet, "/api/weather/forecast/"+url.PathEscape(city), nil, &out)
	return out, err
}

func (a *API) Health(ctx context.Context) (Health, error) {
	var out Health
	err := a.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		// A body that is not JSON still yields the status.
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
