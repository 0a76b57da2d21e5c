package weather

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/cameronmore/go-weather/httperr"
	"github.com/cameronmore/go-weather/logging"
)

// Fetcher is the upstream the handlers read from. *Client implements it.
type Fetcher interface {
	Current(ctx context.Context, city string) (Snapshot, error)
	Forecast(ctx context.Context, city string) (Forecast, error)
}

var _ Fetcher = (*Client)(nil)

type Handlers struct {
	Fetcher Fetcher
	Log     logging.Logger
	errs    *httperr.Responder
}

func NewHandlers(f Fetcher, log logging.Logger, errs *httperr.Responder) *Handlers {
	return &Handlers{Fetcher: f, Log: log, errs: errs}
}

type currentResponse struct {
	Weather Snapshot `json:"weather"`
}

// CurrentHandler serves GET /current/{city}.
func (h *Handlers) CurrentHandler(w http.ResponseWriter, r *http.Request) {
	h.errs.Handle(h.current)(w, r)
}

func (h *Handlers) current(w http.ResponseWriter, r *http.Request) error {
	city := chi.URLParam(r, "city")
	s, err := h.Fetcher.Current(r.Context(), city)
	if err != nil {
		return h.upstreamError(r.Context(), city, err, "Failed to fetch weather data")
	}
	render.JSON(w, r, currentResponse{Weather: s})
	return nil
}

// ForecastHandler serves GET /forecast/{city}.
func (h *Handlers) ForecastHandler(w http.ResponseWriter, r *http.Request) {
	h.errs.Handle(h.forecast)(w, r)
}

func (h *Handlers) forecast(w http.ResponseWriter, r *http.Request) error {
	city := chi.URLParam(r, "city")
	f, err := h.Fetcher.Forecast(r.Context(), city)
	if err != nil {
		return h.upstreamError(r.Context(), city, err, "Failed to fetch weather forecast")
	}
	render.JSON(w, r, f)
	return nil
}

func (h *Handlers) upstreamError(ctx context.Context, city string, err error, title string) error {
	switch {
	case errors.Is(err, ErrCityNotFound):
		return httperr.NotFound("City not found", "Please check the city name and try again")
	case errors.Is(err, ErrNotConfigured):
		return httperr.Internal(err, "Weather service not configured", "API key is missing")
	default:
		h.Log.Warn(ctx, "weather lookup failed", "city", city, "error", err)
		return httperr.Internal(err, title, "Please try again later")
	}
}
