package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"

	"github.com/cameronmore/go-weather/httperr"
	"github.com/cameronmore/go-weather/logging"
)

const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// RequestID tags the request with the inbound X-Request-ID, or a fresh ULID,
// and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength || strings.ContainsAny(id, "\r\n") {
			id = ulid.Make().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// AccessLog logs one line per request, at error level for 5xx, warn for 4xx
// and info otherwise.
func AccessLog(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			}
			switch {
			case status >= http.StatusInternalServerError:
				log.Error(r.Context(), "response", args...)
			case status >= http.StatusBadRequest:
				log.Warn(r.Context(), "response", args...)
			default:
				log.Info(r.Context(), "response", args...)
			}
		})
	}
}

// Recoverer turns a panic into a JSON 500. The panic value is only shown to
// clients outside production.
func Recoverer(log logging.Logger, production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.Error(r.Context(), "request panic",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", p,
					"stack", string(debug.Stack()),
				)

				msg := "Internal server error"
				if !production {
					msg = fmt.Sprint(p)
				}
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, httperr.Body{Error: "Something went wrong!", Message: msg})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

var contentSecurityPolicy = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self' 'unsafe-inline' 'unsafe-eval'",
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com",
	"img-src 'self' data: https://openweathermap.org",
	"font-src 'self' https://fonts.gstatic.com",
	"connect-src 'self' https://api.openweathermap.org",
	"base-uri 'self'",
	"form-action 'self'",
	"frame-ancestors 'self'",
	"object-src 'none'",
}, "; ")

// SecurityHeaders sets the content security policy and the usual hardening
// headers.
func SecurityHeaders(production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", contentSecurityPolicy)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			if production {
				h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
