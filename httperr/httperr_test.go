package httperr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronmore/go-weather/logging"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindConflict, http.StatusBadRequest},
		{KindAuthentication, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindTooLarge, http.StatusRequestEntityTooLarge},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Status())
		})
	}
}

func TestResponder_RendersTypedError(t *testing.T) {
	rs := NewResponder(logging.Discard(), false)
	h := rs.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return NotFound("City not found", "Please check the city name and try again")
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	body := decodeBody(t, rec)
	assert.Equal(t, "City not found", body["error"])
	assert.Equal(t, "Please check the city name and try again", body["message"])
}

func TestResponder_OmitsEmptyMessage(t *testing.T) {
	rs := NewResponder(logging.Discard(), false)
	rec := httptest.NewRecorder()
	rs.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), Validation("All fields are required", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "All fields are required", body["error"])
	_, ok := body["message"]
	assert.False(t, ok)
}

func TestResponder_WrappedTypedError(t *testing.T) {
	rs := NewResponder(logging.Discard(), false)
	rec := httptest.NewRecorder()
	err := fmt.Errorf("outer: %w", Authentication("Not authenticated", ""))
	rs.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), err)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", decodeBody(t, rec)["error"])
}

func TestResponder_InternalDetailOnlyInDevelopment(t *testing.T) {
	cause := errors.New("disk on fire")

	for _, dev := range []bool{true, false} {
		t.Run(fmt.Sprintf("development=%v", dev), func(t *testing.T) {
			var logs bytes.Buffer
			log, err := logging.New(&logs, "debug", "text")
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			NewResponder(log, dev).Write(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", nil),
				Internal(cause, "Registration failed", ""))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "Registration failed", body["error"])
			if dev {
				assert.Equal(t, "disk on fire", body["message"])
			} else {
				assert.NotContains(t, rec.Body.String(), "disk on fire")
			}
			assert.Contains(t, logs.String(), "disk on fire")
		})
	}
}

func TestResponder_PlainErrorIsGeneric500(t *testing.T) {
	rs := NewResponder(logging.Discard(), false)
	rec := httptest.NewRecorder()
	rs.Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Something went wrong!", body["error"])
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Username string `json:"username"`
	}

	t.Run("valid", func(t *testing.T) {
		var p payload
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"alice"}`))
		require.NoError(t, DecodeJSON(r, &p))
		assert.Equal(t, "alice", p.Username)
	})

	t.Run("empty body", func(t *testing.T) {
		var p payload
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		require.NoError(t, DecodeJSON(r, &p))
		assert.Empty(t, p.Username)
	})

	t.Run("malformed", func(t *testing.T) {
		var p payload
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":`))
		err := DecodeJSON(r, &p)
		var he *Error
		require.ErrorAs(t, err, &he)
		assert.Equal(t, KindValidation, he.Kind)
		assert.Equal(t, "Invalid request body", he.Title)
	})

	t.Run("too large", func(t *testing.T) {
		var p payload
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"`+strings.Repeat("a", 64)+`"}`))
		r.Body = http.MaxBytesReader(rec, r.Body, 16)
		err := DecodeJSON(r, &p)
		var he *Error
		require.ErrorAs(t, err, &he)
		assert.Equal(t, KindTooLarge, he.Kind)
	})
}
