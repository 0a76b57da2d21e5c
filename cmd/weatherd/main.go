// Command weatherd serves the weather API and, in production, the built front
// end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cameronmore/go-weather/config"
	"github.com/cameronmore/go-weather/logging"
	"github.com/cameronmore/go-weather/server"
	"github.com/cameronmore/go-weather/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "weatherd: %v\n", err)
		os.Exit(2)
	}

	log, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "weatherd: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "exiting", "err", err)
		stop()
		os.Exit(1)
	}
	log.Info(ctx, "shutdown")
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	st, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if cfg.OpenWeatherAPIKey == "" {
		log.Warn(ctx, "OPENWEATHER_API_KEY is not set; weather requests will fail")
	}

	srv, err := server.New(cfg, st, log)
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}

	log.Info(ctx, "starting",
		"addr", cfg.Addr(),
		"environment", cfg.Environment,
		"database", cfg.DatabaseDriver,
		"frontend", cfg.FrontendURL,
	)
	return srv.Run(ctx)
}
