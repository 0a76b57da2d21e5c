package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronmore/go-weather/config"
	"github.com/cameronmore/go-weather/logging"
	"github.com/cameronmore/go-weather/sessions"
	"github.com/cameronmore/go-weather/store"
	"github.com/cameronmore/go-weather/users"
	"github.com/cameronmore/go-weather/weather"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubFetcher struct{}

func (stubFetcher) Current(_ context.Context, city string) (weather.Snapshot, error) {
	if strings.ToLower(city) != "london" {
		return weather.Snapshot{}, weather.ErrCityNotFound
	}
	return weather.Snapshot{City: "London", Country: "GB", Temperature: 12}, nil
}

func (stubFetcher) Forecast(_ context.Context, city string) (weather.Forecast, error) {
	if strings.ToLower(city) != "london" {
		return weather.Forecast{}, weather.ErrCityNotFound
	}
	return weather.Forecast{City: "London", Country: "GB", Forecast: []weather.ForecastItem{{Datetime: "2024-05-01 12:00:00"}}}, nil
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Environment = config.EnvTest
	cfg.SessionSecret = testSecret
	return cfg
}

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	s, err := New(cfg, openStore(t), logging.Discard(), WithWeatherFetcher(stubFetcher{}))
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func do(t *testing.T, c *http.Client, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestNew_RejectsShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.SessionSecret = "short"
	_, err := New(cfg, openStore(t), logging.Discard())
	assert.ErrorIs(t, err, sessions.ErrSecretTooShort)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testConfig())
	resp, body := do(t, newClient(t), http.MethodGet, srv.URL+"/health", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body["status"])
	ts, err := time.Parse(time.RFC3339Nano, body["timestamp"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestRootAndNotFound(t *testing.T) {
	srv := newTestServer(t, testConfig())
	c := newClient(t)

	resp, body := do(t, c, http.MethodGet, srv.URL+"/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Weather App API Server", body["message"])
	assert.Equal(t, "http://localhost:3000", body["frontend"])

	for _, path := range []string{"/nope", "/api/nope", "/api/auth/nope"} {
		resp, body = do(t, c, http.MethodGet, srv.URL+path, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Equal(t, "Route not found", body["error"], path)
	}

	resp, body = do(t, c, http.MethodDelete, srv.URL+"/health", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Route not found", body["error"])
}

func TestUnauthenticatedAccess(t *testing.T) {
	srv := newTestServer(t, testConfig())
	c := newClient(t)

	resp, body := do(t, c, http.MethodGet, srv.URL+"/api/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authenticated", body["error"])

	for _, path := range []string{"/api/weather/current/london", "/api/weather/forecast/london"} {
		resp, body = do(t, c, http.MethodGet, srv.URL+path, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.Equal(t, "Authentication required", body["error"], path)
	}
}

func TestEndToEnd(t *testing.T) {
	srv := newTestServer(t, testConfig())
	c := newClient(t)

	resp, body := do(t, c, http.MethodPost, srv.URL+"/api/auth/register",
		`{"username":"alice","email":"a@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotContains(t, body["user"], "password")

	resp, body = do(t, c, http.MethodGet, srv.URL+"/api/weather/current/london", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "London", body["weather"].(map[string]any)["city"])

	resp, body = do(t, c, http.MethodGet, srv.URL+"/api/weather/forecast/London", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "GB", body["country"])

	resp, body = do(t, c, http.MethodGet, srv.URL+"/api/weather/current/atlantis", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "City not found", body["error"])

	resp, _ = do(t, c, http.MethodPost, srv.URL+"/api/auth/logout", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, c, http.MethodGet, srv.URL+"/api/weather/current/london", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	anon := newClient(t)
	resp, body = do(t, anon, http.MethodPost, srv.URL+"/api/auth/login", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", body["message"])

	resp, body = do(t, anon, http.MethodPost, srv.URL+"/api/auth/login", `{"username":"alice","password":"secret1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "password")
}

func TestRequestIDAndSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, testConfig())
	c := newClient(t)

	resp, _ := do(t, c, http.MethodGet, srv.URL+"/health", "")
	assert.Len(t, resp.Header.Get(RequestIDHeader), 26, "ULID")
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "connect-src 'self' https://api.openweathermap.org")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/auth/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	s, err := New(testConfig(), openStore(t), logging.Discard(), WithWeatherFetcher(stubFetcher{}))
	require.NoError(t, err)
	big := `{"username":"` + strings.Repeat("a", MaxBodyBytes) + `","password":"x"}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Request body too large", body["error"])
}

func TestStaticFallbackInProduction(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600))

	cfg := testConfig()
	cfg.Environment = config.EnvProduction
	cfg.StaticDir = dir
	srv := newTestServer(t, cfg)
	c := newClient(t)

	for path, want := range map[string]string{
		"/":               "<html>app</html>",
		"/weather/london": "<html>app</html>",
		"/app.js":         "console.log(1)",
	} {
		resp, err := c.Get(srv.URL + path)
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, want, string(raw), path)
	}

	resp, body := do(t, c, http.MethodGet, srv.URL+"/api/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Route not found", body["error"])

	resp, _ = do(t, c, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Strict-Transport-Security"))
}

func TestServe_SweepsAndShutsDown(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	u := &users.User{Username: "old", Email: "old@x.com", PasswordHash: "x"}
	require.NoError(t, st.CreateUser(ctx, u))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, st.SaveSession(ctx, sessions.Session{
		ID: "stale", UserID: u.ID, CreatedAt: past, ExpiresAt: past.Add(time.Hour),
	}))

	s, err := New(testConfig(), st, logging.Discard(), WithWeatherFetcher(stubFetcher{}))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- s.Serve(runCtx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	_, err = st.LoadSessionByID(ctx, "stale")
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
