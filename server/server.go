// Package server wires the auth and weather handlers into a chi router behind
// the shared middleware stack and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/cameronmore/go-weather/auth"
	"github.com/cameronmore/go-weather/config"
	"github.com/cameronmore/go-weather/httperr"
	"github.com/cameronmore/go-weather/logging"
	"github.com/cameronmore/go-weather/sessions"
	"github.com/cameronmore/go-weather/store"
	"github.com/cameronmore/go-weather/users"
	"github.com/cameronmore/go-weather/weather"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg      config.Config
	log      logging.Logger
	sessions *sessions.Manager
	auth     *auth.AuthContext
	weather  *weather.Handlers
	errs     *httperr.Responder
	router   chi.Router
	now      func() time.Time
}

type Option func(*options)

type options struct {
	fetcher weather.Fetcher
}

// WithWeatherFetcher replaces the OpenWeatherMap client.
func WithWeatherFetcher(f weather.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// New builds the server on top of an opened and migrated store.
func New(cfg config.Config, st store.Store, log logging.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		o.fetcher = weather.NewClient(cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey, cfg.WeatherTimeout)
	}

	mgr, err := sessions.NewManager(st, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}

	errs := httperr.NewResponder(log, cfg.IsDevelopment())
	s := &Server{
		cfg:      cfg,
		log:      log,
		sessions: mgr,
		auth:     auth.NewAuthContext(users.NewService(st), mgr, log.With("component", "auth"), errs),
		weather:  weather.NewHandlers(o.fetcher, log.With("component", "weather"), errs),
		errs:     errs,
		now:      time.Now,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	prod := s.cfg.IsProduction()

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(s.log))
	r.Use(Recoverer(s.log, prod))
	r.Use(SecurityHeaders(prod))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestSize(MaxBodyBytes))

	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.notFound)

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.LoadSession)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.auth.RegisterHandler)
			r.Post("/login", s.auth.LoginHandler)
			r.Post("/logout", s.auth.LogoutHandler)
			r.Get("/me", s.auth.MeHandler)
		})

		r.Route("/weather", func(r chi.Router) {
			r.Use(s.auth.RequireAuth)
			r.Get("/current/{city}", s.weather.CurrentHandler)
			r.Get("/forecast/{city}", s.weather.ForecastHandler)
		})
	})

	if prod && s.cfg.StaticDir != "" {
		r.Get("/*", spaHandler(s.cfg.StaticDir))
	} else {
		r.Get("/", s.root)
	}
	return r
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{
		Status:    "OK",
		Timestamp: s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}

type rootResponse struct {
	Message  string `json:"message"`
	Frontend string `json:"frontend"`
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, rootResponse{Message: "Weather App API Server", Frontend: s.cfg.FrontendURL})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.errs.Write(w, r, httperr.NotFound("Route not found", ""))
}

// spaHandler serves files from dir and falls back to index.html so that
// client-side routes resolve.
func spaHandler(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")
	return func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean("/" + r.URL.Path)
		if p != "/" {
			fi, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p)))
			if err == nil && !fi.IsDir() {
				files.ServeHTTP(w, r)
				return
			}
		}
		http.ServeFile(w, r, index)
	}
}

// Run sweeps expired sessions, listens on the configured port and serves
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. It shuts down gracefully when ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if n, err := s.sessions.Sweep(ctx); err != nil {
		s.log.Warn(ctx, "sweeping expired sessions failed", "error", err)
	} else {
		s.log.Info(ctx, "swept expired sessions", "deleted", n)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.cfg.WeatherTimeout + 20*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if sl, ok := s.log.(interface{ Slog() *slog.Logger }); ok {
		srv.ErrorLog = slog.NewLogLogger(sl.Slog().Handler(), slog.LevelError)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "server listening", "addr", ln.Addr().String(), "environment", s.cfg.Environment)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
