// Package httperr maps handler errors onto JSON error responses of the form
// {"error": "...", "message": "..."}.
package httperr

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/render"

	"github.com/cameronmore/go-weather/logging"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindNotFound
	KindConflict
	KindTooLarge
)

// Status returns the HTTP status code for the kind. Conflicts are reported as
// 400 to match what the web client expects on duplicate registration.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTooLarge:
		return "too_large"
	default:
		return "internal"
	}
}

// Error is an error with a client-facing title and optional message. Err is
// the underlying cause and is only exposed to clients in development.
type Error struct {
	Kind    Kind
	Title   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Title, e.Err)
	}
	return e.Title
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, title, message string) *Error {
	return &Error{Kind: kind, Title: title, Message: message}
}

// Wrap attaches err as the cause of a new Error.
func Wrap(kind Kind, err error, title, message string) *Error {
	return &Error{Kind: kind, Title: title, Message: message, Err: err}
}

func Validation(title, message string) *Error {
	return New(KindValidation, title, message)
}

func Authentication(title, message string) *Error {
	return New(KindAuthentication, title, message)
}

func NotFound(title, message string) *Error {
	return New(KindNotFound, title, message)
}

func Conflict(title, message string) *Error {
	return New(KindConflict, title, message)
}

func Internal(err error, title, message string) *Error {
	return Wrap(KindInternal, err, title, message)
}

// Body is the JSON shape of every error response.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HandlerFunc is an http.HandlerFunc that reports failures by returning them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Responder turns returned errors into responses and logs internal ones.
type Responder struct {
	Log         logging.Logger
	Development bool
}

func NewResponder(log logging.Logger, development bool) *Responder {
	return &Responder{Log: log, Development: development}
}

// Handle adapts h to an http.HandlerFunc.
func (rs *Responder) Handle(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			rs.Write(w, r, err)
		}
	}
}

// Write renders err. Errors that are not *Error become a generic 500.
func (rs *Responder) Write(w http.ResponseWriter, r *http.Request, err error) {
	var he *Error
	if !errors.As(err, &he) {
		he = Internal(err, "Something went wrong!", "")
	}

	body := Body{Error: he.Title, Message: he.Message}
	if he.Kind == KindInternal {
		rs.Log.Error(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		if body.Message == "" && he.Err != nil && rs.Development {
			body.Message = he.Err.Error()
		}
	}

	render.Status(r, he.Kind.Status())
	render.JSON(w, r, body)
}

// DecodeJSON decodes the request body into v. An empty body leaves v
// untouched. Oversized bodies map to KindTooLarge, anything else unreadable to
// a validation error.
func DecodeJSON(r *http.Request, v any) error {
	err := render.DecodeJSON(r.Body, v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return Wrap(KindTooLarge, err, "Request body too large", "")
	}
	return Wrap(KindValidation, err, "Invalid request body", "")
}
